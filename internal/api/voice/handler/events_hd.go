package voiceHandler

import (
	"time"

	"PersonalAssistant/internal/api/voice"

	"github.com/gofiber/websocket/v2"
)

// EventSource hands out event subscriptions for the UI stream.
type EventSource interface {
	Subscribe() (<-chan voice.Event, func())
}

const (
	eventWriteTimeout = 10 * time.Second
	eventPingInterval = 30 * time.Second
)

// handleEvents streams assistant events to one UI client until either side
// closes. Inbound messages are only read to notice the close.
func (h *VoiceHandler) handleEvents(c *websocket.Conn) {
	h.log.Info("Event stream client connected")
	defer h.log.Info("Event stream client disconnected")

	events, cancel := h.events.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.log.Errorf("Event stream read error: %v", err)
				}
				return
			}
		}
	}()

	ping := time.NewTicker(eventPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := c.SetWriteDeadline(time.Now().Add(eventWriteTimeout)); err != nil {
				h.log.Errorf("Error setting write deadline: %v", err)
				return
			}
			if err := c.WriteJSON(evt); err != nil {
				h.log.Errorf("Error writing event: %v", err)
				return
			}
		case <-ping.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventWriteTimeout)); err != nil {
				h.log.Errorf("Error sending ping: %v", err)
				return
			}
		}
	}
}
