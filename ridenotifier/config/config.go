// --- File: ridenotifier/config/config.go ---
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TokenTTL time.Duration
}

// PipelineConfig holds the Pub/Sub wiring for one trigger event stream.
type PipelineConfig struct {
	TopicID        string
	SubscriptionID string
	DLQTopicID     string
	ConsumerConfig *messagepipeline.GooglePubsubConsumerConfig
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID          string
	ListenAddr         string
	NumPipelineWorkers int

	Join PipelineConfig
	Chat PipelineConfig

	Redis RedisConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	if val := os.Getenv("PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("JOIN_SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "JOIN_SUBSCRIPTION_ID", "source", "env")
		cfg.Join.SubscriptionID = val
		cfg.Join.ConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	if val := os.Getenv("CHAT_SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "CHAT_SUBSCRIPTION_ID", "source", "env")
		cfg.Chat.SubscriptionID = val
		cfg.Chat.ConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	if val := os.Getenv("JOIN_DLQ_TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "JOIN_DLQ_TOPIC_ID", "source", "env")
		cfg.Join.DLQTopicID = val
	}
	if val := os.Getenv("CHAT_DLQ_TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "CHAT_DLQ_TOPIC_ID", "source", "env")
		cfg.Chat.DLQTopicID = val
	}
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_PIPELINE_WORKERS", "source", "env")
			cfg.NumPipelineWorkers = workers
		}
	}

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}
	if val := os.Getenv("REDIS_TOKEN_TTL"); val != "" {
		if ttl, err := time.ParseDuration(val); err == nil && ttl > 0 {
			cfg.Redis.TokenTTL = ttl
		}
	}

	// 2. Final Validation
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required (set via YAML or PROJECT_ID env var)")
	}
	if cfg.Join.SubscriptionID == "" {
		return nil, fmt.Errorf("join subscription_id is required (set via YAML or JOIN_SUBSCRIPTION_ID env var)")
	}
	if cfg.Chat.SubscriptionID == "" {
		return nil, fmt.Errorf("chat subscription_id is required (set via YAML or CHAT_SUBSCRIPTION_ID env var)")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}
	if cfg.Redis.TokenTTL <= 0 {
		cfg.Redis.TokenTTL = 24 * time.Hour
	}

	if cfg.Join.ConsumerConfig == nil {
		cfg.Join.ConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.Join.SubscriptionID)
	}
	if cfg.Chat.ConsumerConfig == nil {
		cfg.Chat.ConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.Chat.SubscriptionID)
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
