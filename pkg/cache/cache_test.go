package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRediser is an in-memory Rediser for unit tests.
type fakeRediser struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeRediser() *fakeRediser {
	return &fakeRediser{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRediser) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRediser) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRediser) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

type payload struct {
	Text  string `json:"text"`
	Score int    `json:"score"`
}

func TestCacheRoundTrip(t *testing.T) {
	rdb := newFakeRediser()
	c := New[payload](rdb, "response", 5*time.Minute)
	ctx := context.Background()

	_, found, err := c.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.False(t, found)

	want := payload{Text: "抱歉，我不需要。", Score: 3}
	require.NoError(t, c.Set(ctx, "fp1", want))

	got, found, err := c.Get(ctx, "fp1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)

	assert.Equal(t, 5*time.Minute, rdb.ttls["response:fp1"], "TTL is cache-level policy")
}

func TestCacheDelete(t *testing.T) {
	rdb := newFakeRediser()
	c := New[payload](rdb, "intent", time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", payload{Text: "x"}))
	require.NoError(t, c.Delete(ctx, "k"))

	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCacheCorruptEntryIsMiss(t *testing.T) {
	rdb := newFakeRediser()
	rdb.data["intent:bad"] = "{not json"
	c := New[payload](rdb, "intent", time.Hour)

	_, found, err := c.Get(context.Background(), "bad")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTextKeyStable(t *testing.T) {
	a := TextKey("您好，我是银行的")
	b := TextKey("您好，我是银行的")
	require.Equal(t, a, b)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, TextKey("另一句话"))
}
