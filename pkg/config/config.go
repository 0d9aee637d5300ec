// Package config loads, validates, and exposes the typed application
// configuration. Configuration is read once at startup; downstream
// components receive only the slice they need.
package config

import "time"

// Config is the umbrella configuration object returned by Initialize().
type Config struct {
	configDir string

	Redis         *RedisConfig         `yaml:"redis"`
	Database      *DatabaseConfig      `yaml:"database"`
	LLM           *LLMConfig           `yaml:"llm"`
	TextAnalytics *TextAnalyticsConfig `yaml:"text_analytics"`
	Engine        *EngineConfig        `yaml:"engine"`
	Pipeline      *PipelineConfig      `yaml:"pipeline"`
	Learning      *LearningConfig      `yaml:"learning"`
	Privacy       *PrivacyConfig       `yaml:"privacy"`
}

// RedisConfig covers the key-value store backing queues and caches.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// MaxQueueLength bounds each priority list; enqueues beyond it fail
	// with the queue-full error.
	MaxQueueLength int64 `yaml:"max_queue_length"`

	// ResponseCacheTTL is the single authoritative TTL for generated
	// responses. The other TTLs cover their respective caches.
	ResponseCacheTTL  time.Duration `yaml:"response_cache_ttl"`
	IntentCacheTTL    time.Duration `yaml:"intent_cache_ttl"`
	SentimentCacheTTL time.Duration `yaml:"sentiment_cache_ttl"`
	DialogueStateTTL  time.Duration `yaml:"dialogue_state_ttl"`
	AnalysisCacheTTL  time.Duration `yaml:"analysis_cache_ttl"`
	BatchTTL          time.Duration `yaml:"batch_ttl"`

	ResultChannel       string        `yaml:"result_channel"`
	DequeueBlockTimeout time.Duration `yaml:"dequeue_block_timeout"`
	StartupTimeout      time.Duration `yaml:"startup_timeout"`
}

// DatabaseConfig covers the Postgres connection and pool.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`

	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// LLMConfig covers the chat-completion endpoint.
type LLMConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// TextAnalyticsConfig covers the remote sentiment endpoint and the
// optional local model.
type TextAnalyticsConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	APIKey         string        `yaml:"api_key"`
	Language       string        `yaml:"language"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// LocalModelPath points at an optional term-weight model file; when
	// set, the local backend warms it in the background and serves first.
	LocalModelPath string `yaml:"local_model_path"`
}

// EngineConfig covers per-turn orchestration and termination thresholds.
type EngineConfig struct {
	MaxTurns             int           `yaml:"max_turns"`
	MaxDuration          time.Duration `yaml:"max_duration"`
	TurnDeadline         time.Duration `yaml:"turn_deadline"` // soft latency budget
	PersistenceThreshold float64       `yaml:"persistence_threshold"`
	FrustrationThreshold float64       `yaml:"frustration_threshold"`
	CacheConfidenceMin   float64       `yaml:"cache_confidence_min"`
}

// PipelineConfig covers the post-call worker pool.
type PipelineConfig struct {
	WorkerCount             int           `yaml:"worker_count"`
	MaxConcurrentAnalyses   int64         `yaml:"max_concurrent_analyses"`
	TaskTimeout             time.Duration `yaml:"task_timeout"`
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`
	HighPriorityRetries     int           `yaml:"high_priority_retries"`
	RetryBackoffBase        time.Duration `yaml:"retry_backoff_base"`
	CallbackRetries         int           `yaml:"callback_retries"`
}

// LearningConfig covers the learning system.
type LearningConfig struct {
	MinPatternFrequency int           `yaml:"min_pattern_frequency"`
	InsightConfidence   float64       `yaml:"insight_confidence"`
	AdaptationWindow    time.Duration `yaml:"adaptation_window"`
}

// PrivacyConfig covers phone-number hashing.
type PrivacyConfig struct {
	PhoneSalt string `yaml:"phone_salt"`
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}
