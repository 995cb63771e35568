// Package notify builds the push payloads and resolves recipient tokens for
// the two notification flows.
package notify

import (
	"fmt"

	"firebase.google.com/go/v4/messaging"

	"github.com/tinywideclouds/go-ride-notifier/pkg/events"
)

const (
	// channelID groups both notification kinds under one Android channel.
	channelID = "ride_updates"

	// clickAction routes notification taps back into the Flutter app.
	clickAction = "FLUTTER_NOTIFICATION_CLICK"

	androidIcon  = "@mipmap/ic_launcher"
	androidColor = "#6366F1"

	// maxChatBodyRunes is the truncation boundary for chat bodies.
	// Counted in runes, boundary is not word-aware.
	maxChatBodyRunes = 100
)

// RiderJoined composes the multicast message for a join event: high-priority,
// default sound and vibration, iOS badge increment of 1.
func RiderJoined(ev *events.RideJoinEvent, tokens []string) *messaging.MulticastMessage {
	badge := 1
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: "🚗 New Rider Joined!",
			Body:  fmt.Sprintf("%s has joined your ride to %s. Check it out!", ev.JoinerName, ev.Destination),
		},
		Data: map[string]string{
			"type":         "new_rider",
			"rideId":       ev.RideID,
			"joinerId":     ev.JoinerID,
			"click_action": clickAction,
		},
		Android: &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{
				ChannelID:             channelID,
				Priority:              messaging.PriorityHigh,
				DefaultSound:          true,
				DefaultVibrateTimings: true,
				Icon:                  androidIcon,
				Color:                 androidColor,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
					Badge: &badge,
				},
			},
		},
	}
}

// ChatMessage composes the multicast message for a chat event: default
// priority, body truncated to 100 characters with an ellipsis when longer.
func ChatMessage(ev *events.ChatMessageEvent, tokens []string) *messaging.MulticastMessage {
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: "💬 " + ev.SenderName,
			Body:  truncate(ev.Message, maxChatBodyRunes),
		},
		Data: map[string]string{
			"type":         "chat_message",
			"rideId":       ev.RideID,
			"click_action": clickAction,
		},
		Android: &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{
				ChannelID:    channelID,
				Priority:     messaging.PriorityDefault,
				DefaultSound: true,
			},
		},
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
