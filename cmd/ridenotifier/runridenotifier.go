// --- File: cmd/ridenotifier/runridenotifier.go ---
package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"

	firebase "firebase.google.com/go/v4"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-ride-notifier/internal/platform/fcm"
	"github.com/tinywideclouds/go-ride-notifier/internal/storage/cache"
	fsStore "github.com/tinywideclouds/go-ride-notifier/internal/storage/firestore"
	"github.com/tinywideclouds/go-ride-notifier/pkg/dispatch"

	"github.com/tinywideclouds/go-ride-notifier/ridenotifier"
	"github.com/tinywideclouds/go-ride-notifier/ridenotifier/config"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gopkg.in/yaml.v3"
)

//go:embed local.yaml
var configFile []byte

func main() {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "go-ride-notifier")
	slog.SetDefault(logger)

	ctx := context.Background()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, _ := config.NewConfigFromYaml(&yamlCfg, logger)
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	// --- Infrastructure Clients ---
	psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		logger.Error("PubSub client failed", "err", err)
		os.Exit(1)
	}
	defer psClient.Close()

	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		logger.Error("Firestore client failed", "err", err)
		os.Exit(1)
	}
	defer fsClient.Close()

	// --- Stores (Decorated) ---
	store := fsStore.NewStore(fsClient, logger)
	var userStore dispatch.UserStore = store
	logger.Info("UserStore initialized", "type", "firestore")

	if cfg.Redis.Enabled {
		logger.Info("Initializing Redis Cache layer...", "addr", cfg.Redis.Addr)
		redisClient, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("Failed to connect to Redis", "err", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		userStore = cache.NewCachedUserStore(userStore, redisClient, cfg.Redis.TokenTTL)
		logger.Info("UserStore upgraded", "type", "redis_cached_firestore")
	}

	// --- Dispatcher (FCM) ---
	fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID})
	if err != nil {
		logger.Error("Failed to initialize Firebase App", "err", err)
		os.Exit(1)
	}
	fcmMessaging, err := fbApp.Messaging(ctx)
	if err != nil {
		logger.Error("Failed to create FCM messaging client", "err", err)
		os.Exit(1)
	}
	fcmDispatcher := fcm.NewDispatcher(fcmMessaging, logger)

	// --- Consumers & Service ---
	joinConsumer, err := newIngestionConsumer(ctx, cfg.ProjectID, &cfg.Join, psClient, logger)
	if err != nil {
		logger.Error("Join consumer failed", "err", err)
		os.Exit(1)
	}
	chatConsumer, err := newIngestionConsumer(ctx, cfg.ProjectID, &cfg.Chat, psClient, logger)
	if err != nil {
		logger.Error("Chat consumer failed", "err", err)
		os.Exit(1)
	}

	service, err := ridenotifier.New(
		cfg,
		joinConsumer,
		chatConsumer,
		fcmDispatcher,
		userStore,
		store,
		store,
		logger,
	)
	if err != nil {
		logger.Error("Service creation failed", "err", err)
		os.Exit(1)
	}

	logger.Info("Starting service...")
	if err := service.Start(ctx); err != nil {
		logger.Error("Service shutdown with error", "err", err)
		os.Exit(1)
	}
}

func newIngestionConsumer(
	ctx context.Context,
	projectID string,
	pipeCfg *config.PipelineConfig,
	psClient *pubsub.Client,
	logger *slog.Logger,
) (messagepipeline.MessageConsumer, error) {
	sub := convertPubsub(projectID, pipeCfg.SubscriptionID, "subscriptions")
	topicID := convertPubsub(projectID, pipeCfg.TopicID, "topics")
	dlt := convertPubsub(projectID, pipeCfg.DLQTopicID, "topics")

	subConfig := &pubsubpb.Subscription{
		Name:               sub,
		Topic:              topicID,
		AckDeadlineSeconds: 10,
		DeadLetterPolicy: &pubsubpb.DeadLetterPolicy{
			DeadLetterTopic:     dlt,
			MaxDeliveryAttempts: 5,
		},
		EnableMessageOrdering: false,
	}
	logger.Debug("Ensuring subscription exists", "sub", subConfig.Name, "topic", subConfig.Topic)
	_, err := psClient.SubscriptionAdminClient.CreateSubscription(ctx, subConfig)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			logger.Debug("Subscription already exists, skipping creation", "sub", subConfig.Name)
		} else {
			logger.Error("Failed to create subscription", "sub", subConfig.Name, "err", err)
			return nil, fmt.Errorf("could not create sub: %s", sub)
		}
	}

	consumerCfg := pipeCfg.ConsumerConfig
	if consumerCfg == nil {
		consumerCfg = messagepipeline.NewGooglePubsubConsumerDefaults(subConfig.Name)
	}
	return messagepipeline.NewGooglePubsubConsumer(consumerCfg, psClient, logger)
}

type PS string

func convertPubsub(project, id string, ps PS) string {
	return fmt.Sprintf("projects/%s/%s/%s", project, ps, id)
}
