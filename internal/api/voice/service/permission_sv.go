package voiceService

import (
	"context"
	"sync"

	"PersonalAssistant/internal/api/voice"
	contextPkg "PersonalAssistant/pkg/context"

	"github.com/sirupsen/logrus"
)

// PermissionGate caches capability grants. Each capability is requested
// independently and a failed request is never retried automatically.
type PermissionGate struct {
	log      *logrus.Logger
	provider PermissionProvider

	mu       sync.Mutex
	granted  map[voice.Capability]bool
	revokes  map[uint64]func(voice.Capability)
	nextSubs uint64
}

func NewPermissionGate(log *logrus.Logger, provider PermissionProvider) *PermissionGate {
	return &PermissionGate{
		log:      log,
		provider: provider,
		granted:  make(map[voice.Capability]bool),
		revokes:  make(map[uint64]func(voice.Capability)),
	}
}

func (g *PermissionGate) Request(ctx context.Context, capability voice.Capability) bool {
	requestID := contextPkg.GetRequestID(ctx)

	if g.Granted(capability) {
		return true
	}
	if g.provider == nil {
		g.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"capability": capability,
		}).Warn("No permission provider configured")
		return false
	}

	ok, err := g.provider.Request(ctx, capability)
	if err != nil {
		g.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"capability": capability,
			"error":      err.Error(),
		}).Error("Failed to request permission")
		return false
	}
	if !ok {
		g.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"capability": capability,
		}).Warn("Permission denied by user")
		return false
	}

	g.mu.Lock()
	g.granted[capability] = true
	g.mu.Unlock()

	return true
}

func (g *PermissionGate) Granted(capability voice.Capability) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.granted[capability]
}

// Revoke drops a grant and notifies revocation observers.
func (g *PermissionGate) Revoke(capability voice.Capability) {
	g.mu.Lock()
	was := g.granted[capability]
	delete(g.granted, capability)
	observers := make([]func(voice.Capability), 0, len(g.revokes))
	for _, fn := range g.revokes {
		observers = append(observers, fn)
	}
	g.mu.Unlock()

	if !was {
		return
	}

	g.log.WithField("capability", capability).Warn("Permission revoked")
	for _, fn := range observers {
		fn(capability)
	}
}

func (g *PermissionGate) OnRevoke(fn func(voice.Capability)) func() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nextSubs++
	id := g.nextSubs
	g.revokes[id] = fn

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.revokes, id)
	}
}
