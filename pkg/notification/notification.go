package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"PersonalAssistant/internal/entity"
	"PersonalAssistant/pkg/utils"

	"github.com/sirupsen/logrus"
)

var ErrUnknownNotification = errors.New("unknown notification")

// Delivery is a notification at the moment it fires.
type Delivery struct {
	ID         string
	Request    entity.NotificationRequest
	FiredAt    time.Time
	Suppressed bool
}

// Channel hands a fired notification to the user.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, d Delivery) error
}

type ICenter interface {
	Schedule(ctx context.Context, req entity.NotificationRequest) (string, error)
	Cancel(ctx context.Context, id string) error
	Pending() int
	Close()
}

// Center is an in-process scheduler standing in for the platform
// notification service. Recurring requests re-arm after every delivery.
type Center struct {
	log      *logrus.Logger
	utils    utils.IUtils
	channels []Channel
	quiet    func(time.Time) bool
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

type Option func(*Center)

func WithChannels(channels ...Channel) Option {
	return func(c *Center) {
		c.channels = append(c.channels, channels...)
	}
}

// WithQuietHours marks suppressible deliveries that fire inside the window.
func WithQuietHours(isQuiet func(time.Time) bool) Option {
	return func(c *Center) {
		c.quiet = isQuiet
	}
}

func NewCenter(log *logrus.Logger, utils utils.IUtils, opts ...Option) *Center {
	c := &Center{
		log:     log,
		utils:   utils,
		now:     time.Now,
		pending: make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Center) Schedule(ctx context.Context, req entity.NotificationRequest) (string, error) {
	id, err := c.utils.NewULIDFromTimestamp(c.now())
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", errors.New("notification center closed")
	}
	c.arm(id, req)

	c.log.WithFields(logrus.Fields{
		"notification_id": id,
		"category":        req.CategoryID,
		"scheduled_time":  req.ScheduledTime,
		"frequency":       req.Frequency,
	}).Debug("Notification scheduled")

	return id, nil
}

// arm starts the timer for id. Caller holds c.mu.
func (c *Center) arm(id string, req entity.NotificationRequest) {
	delay := time.Duration(0)
	if req.ScheduledTime != nil {
		delay = req.ScheduledTime.Sub(c.now())
		if delay < 0 {
			delay = 0
		}
	}

	c.pending[id] = time.AfterFunc(delay, func() {
		c.fire(id, req)
	})
}

func (c *Center) fire(id string, req entity.NotificationRequest) {
	c.mu.Lock()
	if _, ok := c.pending[id]; !ok || c.closed {
		c.mu.Unlock()
		return
	}
	delete(c.pending, id)

	if next := nextOccurrence(req); next != nil {
		req.ScheduledTime = next
		c.arm(id, req)
	}
	c.mu.Unlock()

	firedAt := c.now()
	d := Delivery{
		ID:         id,
		Request:    req,
		FiredAt:    firedAt,
		Suppressed: req.Suppressible && c.quiet != nil && c.quiet(firedAt),
	}

	for _, ch := range c.channels {
		if err := ch.Deliver(context.Background(), d); err != nil {
			c.log.WithFields(logrus.Fields{
				"notification_id": id,
				"channel":         ch.Name(),
				"error":           err.Error(),
			}).Warn("Failed to deliver notification")
		}
	}
}

func (c *Center) Cancel(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer, ok := c.pending[id]
	if !ok {
		return ErrUnknownNotification
	}
	timer.Stop()
	delete(c.pending, id)
	return nil
}

func (c *Center) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for id, timer := range c.pending {
		timer.Stop()
		delete(c.pending, id)
	}
}

func nextOccurrence(req entity.NotificationRequest) *time.Time {
	if req.ScheduledTime == nil {
		return nil
	}

	var next time.Time
	switch req.Frequency {
	case entity.FrequencyDaily:
		next = req.ScheduledTime.AddDate(0, 0, 1)
	case entity.FrequencyWeekly:
		next = req.ScheduledTime.AddDate(0, 0, 7)
	default:
		return nil
	}
	return &next
}
