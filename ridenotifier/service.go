// --- File: ridenotifier/service.go ---
package ridenotifier

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"

	"github.com/tinywideclouds/go-ride-notifier/internal/pipeline"
	"github.com/tinywideclouds/go-ride-notifier/pkg/dispatch"
	"github.com/tinywideclouds/go-ride-notifier/pkg/events"
	"github.com/tinywideclouds/go-ride-notifier/ridenotifier/config"
)

// Wrapper runs the two trigger pipelines (join notifications, chat messages)
// behind a base server that serves health and readiness endpoints.
type Wrapper struct {
	*microservice.BaseServer
	joinPipeline *messagepipeline.StreamingService[events.RideJoinEvent]
	chatPipeline *messagepipeline.StreamingService[events.ChatMessageEvent]
	logger       *slog.Logger
}

// New assembles the service. The store and gateway clients are injected once
// at process start; handlers never reach for shared module-level state.
func New(
	cfg *config.Config,
	joinConsumer messagepipeline.MessageConsumer,
	chatConsumer messagepipeline.MessageConsumer,
	dispatcher dispatch.Dispatcher,
	users dispatch.UserStore,
	rides dispatch.RideStore,
	marks dispatch.EventStore,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Join pipeline
	joinPipeline, err := messagepipeline.NewStreamingService[events.RideJoinEvent](
		messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
		joinConsumer,
		pipeline.JoinEventTransformer,
		pipeline.NewJoinProcessor(dispatcher, users, marks, logger),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create join pipeline: %w", err)
	}

	// 3. Chat pipeline
	chatPipeline, err := messagepipeline.NewStreamingService[events.ChatMessageEvent](
		messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
		chatConsumer,
		pipeline.ChatEventTransformer,
		pipeline.NewChatProcessor(dispatcher, users, rides, logger),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat pipeline: %w", err)
	}

	return &Wrapper{
		BaseServer:   baseServer,
		joinPipeline: joinPipeline,
		chatPipeline: chatPipeline,
		logger:       logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	w.logger.Info("Core processing pipelines starting...")
	if err := w.joinPipeline.Start(ctx); err != nil {
		return fmt.Errorf("failed to start join pipeline: %w", err)
	}
	if err := w.chatPipeline.Start(ctx); err != nil {
		return fmt.Errorf("failed to start chat pipeline: %w", err)
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if err := w.joinPipeline.Stop(ctx); err != nil {
		w.logger.Error("Join pipeline shutdown failed.", "err", err)
		finalErr = err
	}
	if err := w.chatPipeline.Stop(ctx); err != nil {
		w.logger.Error("Chat pipeline shutdown failed.", "err", err)
		finalErr = err
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
