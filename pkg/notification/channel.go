package notification

import (
	"context"

	"PersonalAssistant/internal/api/voice"
)

type publisher interface {
	Publish(evt voice.Event)
}

// EventChannel shows reminders in the rendering layer through the event
// stream. Suppressed deliveries are still sent, flagged, so the UI can hold
// them silently.
type EventChannel struct {
	sink publisher
}

func NewEventChannel(sink publisher) *EventChannel {
	return &EventChannel{sink: sink}
}

func (c *EventChannel) Name() string {
	return "ui"
}

func (c *EventChannel) Deliver(ctx context.Context, d Delivery) error {
	c.sink.Publish(voice.Event{
		Type:    voice.EventNotification,
		Message: d.Request.Body,
		Data: map[string]any{
			"notification_id": d.ID,
			"title":           d.Request.Title,
			"category":        d.Request.CategoryID,
			"priority":        d.Request.Priority,
			"actions":         d.Request.Actions,
			"data":            d.Request.Data,
			"suppressed":      d.Suppressed,
		},
		At: d.FiredAt,
	})
	return nil
}
