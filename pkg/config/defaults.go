package config

import "time"

// Defaults returns the built-in configuration. User YAML overrides these
// values field by field (mergo merge in the loader).
func Defaults() *Config {
	return &Config{
		Redis: &RedisConfig{
			Addr:                "localhost:6379",
			MaxQueueLength:      10000,
			ResponseCacheTTL:    5 * time.Minute,
			IntentCacheTTL:      time.Hour,
			SentimentCacheTTL:   time.Hour,
			DialogueStateTTL:    2 * time.Hour,
			AnalysisCacheTTL:    24 * time.Hour,
			BatchTTL:            24 * time.Hour,
			ResultChannel:       "analysis_results",
			DequeueBlockTimeout: 2 * time.Second,
			StartupTimeout:      5 * time.Second,
		},
		Database: &DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "ninja",
			Database:        "ninja",
			SSLMode:         "disable",
			MaxConns:        10,
			MinConns:        2,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 30 * time.Minute,
		},
		LLM: &LLMConfig{
			Model:          "gpt-4o-mini",
			RequestTimeout: 10 * time.Second,
		},
		TextAnalytics: &TextAnalyticsConfig{
			Language:       "zh-Hans",
			RequestTimeout: 3 * time.Second,
		},
		Engine: &EngineConfig{
			MaxTurns:             8,
			MaxDuration:          180 * time.Second,
			TurnDeadline:         300 * time.Millisecond,
			PersistenceThreshold: 0.8,
			FrustrationThreshold: 0.9,
			CacheConfidenceMin:   0.6,
		},
		Pipeline: &PipelineConfig{
			WorkerCount:             4,
			MaxConcurrentAnalyses:   8,
			TaskTimeout:             2 * time.Minute,
			GracefulShutdownTimeout: 30 * time.Second,
			HighPriorityRetries:     3,
			RetryBackoffBase:        500 * time.Millisecond,
			CallbackRetries:         2,
		},
		Learning: &LearningConfig{
			MinPatternFrequency: 3,
			InsightConfidence:   0.7,
			AdaptationWindow:    10 * time.Minute,
		},
		Privacy: &PrivacyConfig{},
	}
}
