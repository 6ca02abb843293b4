package device

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"PersonalAssistant/internal/api/voice"
)

// Permissions answers capability requests from configuration. A capability
// is granted when it is enabled and, for audio, the capture binary exists.
type Permissions struct {
	enabled      map[voice.Capability]bool
	captureProbe func() bool
}

func NewPermissions(enabled map[voice.Capability]bool, captureBinary string) *Permissions {
	if captureBinary == "" {
		captureBinary = "ffmpeg"
	}
	return &Permissions{
		enabled: enabled,
		captureProbe: func() bool {
			_, err := exec.LookPath(captureBinary)
			return err == nil
		},
	}
}

// PermissionsFromEnv reads PERMISSION_<CAPABILITY>=true|false. Unset
// capabilities are granted.
func PermissionsFromEnv(captureBinary string) *Permissions {
	enabled := make(map[voice.Capability]bool)
	for _, c := range []voice.Capability{voice.CapabilityMicrophone, voice.CapabilityWakeWord, voice.CapabilityNotifications} {
		raw := os.Getenv("PERMISSION_" + strings.ToUpper(string(c)))
		if raw == "" {
			enabled[c] = true
			continue
		}
		v, err := strconv.ParseBool(raw)
		enabled[c] = err == nil && v
	}
	return NewPermissions(enabled, captureBinary)
}

func (p *Permissions) Request(ctx context.Context, capability voice.Capability) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	enabled, known := p.enabled[capability]
	if !known {
		return false, fmt.Errorf("unknown capability %q", capability)
	}
	if !enabled {
		return false, nil
	}

	switch capability {
	case voice.CapabilityMicrophone, voice.CapabilityWakeWord:
		if !p.captureProbe() {
			return false, fmt.Errorf("no audio capture available for %s", capability)
		}
	}
	return true, nil
}
