// Package pipeline contains the core message processing components of the
// ride notifier: one transformer/processor pair per trigger event kind.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-ride-notifier/pkg/events"
)

// JoinEventTransformer unmarshals and validates a raw trigger payload into a
// structured events.RideJoinEvent.
//
// Malformed payloads (bad JSON or missing required fields) return with
// skip=true so the StreamingService routes the message to the DLQ instead of
// letting empty fields surface deep inside the join flow.
func JoinEventTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*events.RideJoinEvent, bool, error) {
	var ev events.RideJoinEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return nil, true, fmt.Errorf("unmarshal join event from message %s: %w", msg.ID, err)
	}
	if err := ev.Validate(); err != nil {
		return nil, true, fmt.Errorf("join event from message %s: %w", msg.ID, err)
	}
	return &ev, false, nil
}

// ChatEventTransformer is the chat-flow counterpart of JoinEventTransformer.
func ChatEventTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*events.ChatMessageEvent, bool, error) {
	var ev events.ChatMessageEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return nil, true, fmt.Errorf("unmarshal chat event from message %s: %w", msg.ID, err)
	}
	if err := ev.Validate(); err != nil {
		return nil, true, fmt.Errorf("chat event from message %s: %w", msg.ID, err)
	}
	return &ev, false, nil
}
