package eventbus

import (
	"sync"

	"PersonalAssistant/internal/api/voice"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultBuffer = 32

// Hub fans events out to subscribers. A subscriber that falls behind loses
// events rather than blocking publishers.
type Hub struct {
	log    *logrus.Logger
	buffer int

	mu   sync.RWMutex
	subs map[string]chan voice.Event
}

func New(log *logrus.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		log:    log,
		buffer: buffer,
		subs:   make(map[string]chan voice.Event),
	}
}

func (h *Hub) Publish(evt voice.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- evt:
		default:
			h.log.WithFields(logrus.Fields{
				"subscriber": id,
				"event":      evt.Type,
			}).Warn("Dropping event for slow subscriber")
		}
	}
}

// Subscribe returns the event channel and a cancel func that closes it.
func (h *Hub) Subscribe() (<-chan voice.Event, func()) {
	id := uuid.NewString()
	ch := make(chan voice.Event, h.buffer)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
