package voiceService

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"PersonalAssistant/internal/api/voice"
	"PersonalAssistant/internal/entity"
)

type Purpose string

const (
	PurposeManualRecording       Purpose = "manual-recording"
	PurposeConversationRecording Purpose = "conversation-recording"
)

func purposeFor(mode entity.VoiceMode) Purpose {
	if mode == entity.VoiceModeWakeTriggered {
		return PurposeConversationRecording
	}
	return PurposeManualRecording
}

// Microphone grants exclusive use of the capture device. At most one lease
// is outstanding at any time.
type Microphone struct {
	mu    sync.Mutex
	lease *MicrophoneLease
	seq   uint64
}

type MicrophoneLease struct {
	Purpose    Purpose
	Owner      string
	AcquiredAt time.Time

	mic      *Microphone
	id       uint64
	released atomic.Bool
}

func NewMicrophone() *Microphone {
	return &Microphone{}
}

func (m *Microphone) Acquire(purpose Purpose, owner string) (*MicrophoneLease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lease != nil {
		return nil, fmt.Errorf("%w: held by %s (%s)", voice.ErrMicrophoneBusy, m.lease.Owner, m.lease.Purpose)
	}

	m.seq++
	m.lease = &MicrophoneLease{
		Purpose:    purpose,
		Owner:      owner,
		AcquiredAt: time.Now(),
		mic:        m,
		id:         m.seq,
	}
	return m.lease, nil
}

// Holder reports the current lease, if any.
func (m *Microphone) Holder() (Purpose, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lease == nil {
		return "", "", false
	}
	return m.lease.Purpose, m.lease.Owner, true
}

// Release is idempotent. A stale lease never frees a newer one.
func (l *MicrophoneLease) Release() {
	if l == nil || !l.released.CompareAndSwap(false, true) {
		return
	}

	l.mic.mu.Lock()
	defer l.mic.mu.Unlock()

	if l.mic.lease != nil && l.mic.lease.id == l.id {
		l.mic.lease = nil
	}
}
