package models

import (
	"strings"
	"time"
)

const (
	// UnknownUser is stored when the reporter did not identify itself.
	UnknownUser = "unknown"

	StatusSent          = "sent"
	StatusAcknowledged  = "acknowledged"
	StatusFalsePositive = "false_positive"

	// TrustedContactsKey is the metadata key holding the contact list.
	TrustedContactsKey = "trustedContacts"
)

// Event is one detected occurrence reported by a client device.
type Event struct {
	ID         int64                  `json:"id"`
	UserID     string                 `json:"userId"`
	Type       string                 `json:"type"`
	Confidence float64                `json:"confidence"`
	Lat        *float64               `json:"lat"`
	Lon        *float64               `json:"lon"`
	AudioKey   *string                `json:"audioKey"`
	VideoKey   *string                `json:"videoKey"`
	Speed      *float64               `json:"speed"`
	AccelPeak  *float64               `json:"accelPeak"`
	Metadata   map[string]interface{} `json:"metadata"`
	Status     string                 `json:"status"`
	CreatedAt  time.Time              `json:"createdAt"`
}

// EventCreate is the ingestion payload shared by POST /api/events and the
// Kafka consumer.
type EventCreate struct {
	UserID     string                 `json:"userId"`
	Type       string                 `json:"type" binding:"required"`
	Confidence *float64               `json:"confidence" binding:"required"`
	Lat        *float64               `json:"lat"`
	Lon        *float64               `json:"lon"`
	AudioKey   *string                `json:"audioKey"`
	VideoKey   *string                `json:"videoKey"`
	Speed      *float64               `json:"speed"`
	AccelPeak  *float64               `json:"accelPeak"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// EventAck is the body of PUT /api/events/:id/ack. A nil Status means the
// field was absent.
type EventAck struct {
	Status *string `json:"status"`
}

// Validate checks required fields.
func (in EventCreate) Validate() error {
	if strings.TrimSpace(in.Type) == "" {
		return InvalidInputf("type is required")
	}
	if in.Confidence == nil {
		return InvalidInputf("confidence is required")
	}
	return nil
}

// ToEvent builds an unsaved Event, applying the userId and metadata defaults.
func (in EventCreate) ToEvent() Event {
	ev := Event{
		UserID:    in.UserID,
		Type:      in.Type,
		Lat:       in.Lat,
		Lon:       in.Lon,
		AudioKey:  in.AudioKey,
		VideoKey:  in.VideoKey,
		Speed:     in.Speed,
		AccelPeak: in.AccelPeak,
		Metadata:  in.Metadata,
		Status:    StatusSent,
	}
	if in.Confidence != nil {
		ev.Confidence = *in.Confidence
	}
	if ev.UserID == "" {
		ev.UserID = UnknownUser
	}
	if ev.Metadata == nil {
		ev.Metadata = map[string]interface{}{}
	}
	return ev
}

// Contacts returns the trusted contacts carried in the event metadata.
func (e Event) Contacts() []Contact {
	if e.Metadata == nil {
		return nil
	}
	return NormalizeContacts(e.Metadata[TrustedContactsKey])
}
