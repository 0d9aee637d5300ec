package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644)
	require.NoError(t, err)
	return dir
}

func TestInitialize(t *testing.T) {
	t.Setenv("REDIS_PASSWORD", "secret")
	dir := writeConfig(t, `
redis:
  addr: "redis:6379"
  password: "{{.REDIS_PASSWORD}}"
engine:
  max_turns: 10
privacy:
  phone_salt: "test-salt"
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password, "env template must expand")
	assert.Equal(t, 10, cfg.Engine.MaxTurns, "user value overrides default")

	// Defaults fill everything the file omits.
	assert.Equal(t, 180*time.Second, cfg.Engine.MaxDuration)
	assert.Equal(t, 5*time.Minute, cfg.Redis.ResponseCacheTTL)
	assert.Equal(t, "analysis_results", cfg.Redis.ResultChannel)
	assert.Equal(t, 4, cfg.Pipeline.WorkerCount)
	assert.Equal(t, 3, cfg.Learning.MinPatternFrequency)
}

func TestInitializeMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	_, err := Initialize(context.Background(), dir)

	// Defaults alone fail validation: the phone salt has no default.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phone_salt")
}

func TestInitializeInvalidYAML(t *testing.T) {
	dir := writeConfig(t, `{{{`)

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestInitializeValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{
			name: "bad port",
			content: `
database:
  port: 99999
privacy:
  phone_salt: s
`,
			field: "port",
		},
		{
			name: "bad insight confidence",
			content: `
learning:
  insight_confidence: 1.5
privacy:
  phone_salt: s
`,
			field: "insight_confidence",
		},
		{
			name:    "missing salt",
			content: `engine: {max_turns: 8}`,
			field:   "phone_salt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeConfig(t, tt.content)
			_, err := Initialize(context.Background(), dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}
