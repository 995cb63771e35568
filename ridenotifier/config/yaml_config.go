// --- File: ridenotifier/config/yaml_config.go ---
package config

import (
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
)

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
	TokenTTL string `yaml:"token_ttl"`
}

type YamlPipelineConfig struct {
	TopicID        string `yaml:"topic_id"`
	SubscriptionID string `yaml:"subscription_id"`
	DLQTopicID     string `yaml:"dlq_topic_id"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID          string             `yaml:"project_id"`
	ListenAddr         string             `yaml:"listen_addr"`
	Join               YamlPipelineConfig `yaml:"join"`
	Chat               YamlPipelineConfig `yaml:"chat"`
	RedisConfig        YamlRedisConfig    `yaml:"redis"`
	NumPipelineWorkers int                `yaml:"num_pipeline_workers"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ProjectID:  baseCfg.ProjectID,
		ListenAddr: baseCfg.ListenAddr,
		Join: PipelineConfig{
			TopicID:        baseCfg.Join.TopicID,
			SubscriptionID: baseCfg.Join.SubscriptionID,
			DLQTopicID:     baseCfg.Join.DLQTopicID,
		},
		Chat: PipelineConfig{
			TopicID:        baseCfg.Chat.TopicID,
			SubscriptionID: baseCfg.Chat.SubscriptionID,
			DLQTopicID:     baseCfg.Chat.DLQTopicID,
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
		},
		NumPipelineWorkers: baseCfg.NumPipelineWorkers,
	}

	if baseCfg.RedisConfig.TokenTTL != "" {
		if ttl, err := time.ParseDuration(baseCfg.RedisConfig.TokenTTL); err == nil {
			cfg.Redis.TokenTTL = ttl
		} else {
			logger.Warn("Ignoring unparsable redis token_ttl", "value", baseCfg.RedisConfig.TokenTTL)
		}
	}

	if cfg.Join.SubscriptionID != "" {
		cfg.Join.ConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.Join.SubscriptionID)
	}
	if cfg.Chat.SubscriptionID != "" {
		cfg.Chat.ConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.Chat.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"join_subscription_id", cfg.Join.SubscriptionID,
		"chat_subscription_id", cfg.Chat.SubscriptionID,
	)

	return cfg, nil
}
