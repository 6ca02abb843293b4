package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"PersonalAssistant/internal/api/voice"
	voiceService "PersonalAssistant/internal/api/voice/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const wavHeaderBytes = 44

// FFMPEGCapture records the default input device to 16-bit PCM WAV files.
type FFMPEGCapture struct {
	log    *logrus.Logger
	binary string
}

func NewFFMPEGCapture(log *logrus.Logger, binary string) *FFMPEGCapture {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFMPEGCapture{log: log, binary: binary}
}

// Available reports whether the capture binary can be found.
func (c *FFMPEGCapture) Available() bool {
	_, err := exec.LookPath(c.binary)
	return err == nil
}

func (c *FFMPEGCapture) Start(ctx context.Context, cfg voice.AudioConfig) (voiceService.CaptureSession, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(cfg.OutputDir, uuid.NewString()+".wav")

	cmd := exec.CommandContext(ctx, c.binary,
		"-hide_banner", "-loglevel", "error",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", fmt.Sprint(cfg.Channels),
		"-ar", fmt.Sprint(cfg.SampleRate),
		"-acodec", "pcm_s16le",
		"-y", path,
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", c.binary, err)
	}

	c.log.WithFields(logrus.Fields{
		"path":   path,
		"device": cfg.InputDevice,
	}).Debug("Audio capture started")

	return &ffmpegSession{
		log:     c.log,
		cmd:     cmd,
		stdin:   stdin,
		path:    path,
		cfg:     cfg,
		started: time.Now(),
	}, nil
}

type ffmpegSession struct {
	log     *logrus.Logger
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	path    string
	cfg     voice.AudioConfig
	started time.Time

	once   sync.Once
	result voice.CaptureResult
	err    error
}

// Stop asks ffmpeg to finish the file and waits for it to exit.
func (s *ffmpegSession) Stop() (voice.CaptureResult, error) {
	s.once.Do(func() {
		s.result, s.err = s.stop()
	})
	return s.result, s.err
}

func (s *ffmpegSession) stop() (voice.CaptureResult, error) {
	// "q" on stdin makes ffmpeg flush and write the WAV header
	if _, err := io.WriteString(s.stdin, "q"); err != nil {
		s.log.WithField("error", err.Error()).Warn("Failed to signal ffmpeg, killing")
		_ = s.cmd.Process.Kill()
	}
	_ = s.stdin.Close()

	waitErr := s.cmd.Wait()
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return voice.CaptureResult{}, waitErr
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return voice.CaptureResult{}, err
	}

	return voice.CaptureResult{
		Path:     s.path,
		Bytes:    info.Size(),
		Duration: pcmDuration(info.Size(), s.cfg),
	}, nil
}

func pcmDuration(size int64, cfg voice.AudioConfig) time.Duration {
	bytesPerSecond := int64(cfg.SampleRate * cfg.Channels * 2)
	if bytesPerSecond <= 0 || size <= wavHeaderBytes {
		return 0
	}
	return time.Duration(size-wavHeaderBytes) * time.Second / time.Duration(bytesPerSecond)
}
