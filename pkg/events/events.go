// Package events contains the trigger-event contracts for the ride notifier.
//
// Each event mirrors a Firestore document created by the ride-sharing app,
// relayed onto Pub/Sub together with its trigger path parameters
// (e.g. notificationId, rideId). Events are validated at the pipeline
// boundary so malformed payloads surface as ErrMalformedEvent instead of
// empty fields deep inside a flow.
package events

import (
	"errors"
	"fmt"
)

// ErrMalformedEvent marks a payload that decoded but is missing required fields.
var ErrMalformedEvent = errors.New("malformed event")

// RideJoinEvent mirrors a ride_notifications/{notificationId} document.
// It is created upstream when a rider joins a ride and consumed exactly once
// by the join pipeline, which sets the processed flag when done.
type RideJoinEvent struct {
	// ID is the notification document id, carried from the trigger path.
	ID             string   `json:"notificationId"`
	Type           string   `json:"type"`
	RideID         string   `json:"rideId"`
	JoinerID       string   `json:"joinerId"`
	JoinerName     string   `json:"joinerName"`
	CreatorID      string   `json:"creatorId"`
	Destination    string   `json:"destination"`
	ParticipantIDs []string `json:"participantIds"`
	Processed      bool     `json:"processed"`
}

// Validate checks the fields the join flow cannot proceed without.
// joinerName and destination only affect notification copy, so they
// stay optional.
func (e *RideJoinEvent) Validate() error {
	switch {
	case e.ID == "":
		return fmt.Errorf("%w: missing notificationId", ErrMalformedEvent)
	case e.RideID == "":
		return fmt.Errorf("%w: missing rideId", ErrMalformedEvent)
	case e.JoinerID == "":
		return fmt.Errorf("%w: missing joinerId", ErrMalformedEvent)
	case e.CreatorID == "":
		return fmt.Errorf("%w: missing creatorId", ErrMalformedEvent)
	}
	return nil
}

// Recipients returns the deduplicated set of users to notify: the ride
// creator plus every participant, minus the joiner. Order of first
// appearance is preserved.
func (e *RideJoinEvent) Recipients() []string {
	seen := make(map[string]struct{}, len(e.ParticipantIDs)+1)
	recipients := make([]string, 0, len(e.ParticipantIDs)+1)
	for _, id := range append([]string{e.CreatorID}, e.ParticipantIDs...) {
		if id == "" || id == e.JoinerID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		recipients = append(recipients, id)
	}
	return recipients
}

// ChatMessageEvent mirrors a rides/{rideId}/chat/{messageId} document.
// Read-only to this service.
type ChatMessageEvent struct {
	// RideID and MessageID are carried from the trigger path.
	RideID     string `json:"rideId"`
	MessageID  string `json:"messageId"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Message    string `json:"message"`
}

func (e *ChatMessageEvent) Validate() error {
	switch {
	case e.RideID == "":
		return fmt.Errorf("%w: missing rideId", ErrMalformedEvent)
	case e.SenderID == "":
		return fmt.Errorf("%w: missing senderId", ErrMalformedEvent)
	}
	return nil
}

// Participant is a single entry in a ride's participant list.
type Participant struct {
	UserID string `json:"userId" firestore:"userId"`
}

// Ride is the slice of a rides/{rideId} document this service reads.
// The ride lifecycle is owned by the ride-sharing app.
type Ride struct {
	Participants []Participant `json:"participants" firestore:"participants"`
}

// RecipientsExcluding returns the participant ids minus the given sender.
func (r *Ride) RecipientsExcluding(senderID string) []string {
	recipients := make([]string, 0, len(r.Participants))
	for _, p := range r.Participants {
		if p.UserID == "" || p.UserID == senderID {
			continue
		}
		recipients = append(recipients, p.UserID)
	}
	return recipients
}
