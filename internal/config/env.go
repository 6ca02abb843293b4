package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	reminderService "PersonalAssistant/internal/api/reminder/service"
	voiceService "PersonalAssistant/internal/api/voice/service"

	"github.com/go-playground/validator/v10"
)

// AppConfig holds the provider and storage selection read from the
// environment.
type AppConfig struct {
	Port                  string `validate:"required,numeric"`
	DBDriver              string `validate:"oneof=sqlite postgres"`
	DBDSN                 string
	TranscriptionProvider string `validate:"oneof=backend whisper"`
	ExtractionProvider    string `validate:"oneof=backend openai gemini"`
	TranscriptionLanguage string
	CaptureBinary         string `validate:"required"`
	WakeWordEngineURL     string
	CacheEnabled          bool
	ArchiveEnabled        bool
	WhatsappEnabled       bool
	WhatsappPhone         string `validate:"required_if=WhatsappEnabled true"`
	WhatsappStoreDSN      string
}

func LoadAppConfig() (AppConfig, error) {
	cfg := AppConfig{
		Port:                  envString("APP_PORT", "3000"),
		DBDriver:              envString("DB_DRIVER", "sqlite"),
		DBDSN:                 os.Getenv("DB_DSN"),
		TranscriptionProvider: envString("TRANSCRIPTION_PROVIDER", "backend"),
		ExtractionProvider:    envString("EXTRACTION_PROVIDER", "backend"),
		TranscriptionLanguage: os.Getenv("TRANSCRIPTION_LANGUAGE"),
		CaptureBinary:         envString("AUDIO_CAPTURE_BINARY", "ffmpeg"),
		WakeWordEngineURL:     os.Getenv("WAKE_WORD_ENGINE_URL"),
		CacheEnabled:          os.Getenv("REDIS_ADDRESS") != "",
		ArchiveEnabled:        os.Getenv("AWS_BUCKET_NAME") != "",
		WhatsappPhone:         os.Getenv("WHATSAPP_PHONE"),
		WhatsappStoreDSN:      envString("WHATSAPP_STORE_DSN", "./storage/whatsapp.sqlite"),
	}

	var err error
	if cfg.WhatsappEnabled, err = envBool("WHATSAPP_ENABLED", false); err != nil {
		return AppConfig{}, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return AppConfig{}, fmt.Errorf("invalid app config: %w", err)
	}
	return cfg, nil
}

type voiceEnv struct {
	AssistantName          string        `validate:"required,max=40"`
	RecordingSafetyTimeout time.Duration `validate:"gt=0"`
	ConversationTimeout    time.Duration `validate:"gt=0"`
	TurnCaptureWindow      time.Duration `validate:"gte=0"`
	WakeWordCooldown       time.Duration `validate:"gte=0"`
	MaxAttempts            int           `validate:"min=1,max=5"`
	RetryBackoff           time.Duration `validate:"gte=0"`
	SampleRate             int           `validate:"oneof=8000 16000 22050 44100 48000"`
	Channels               int           `validate:"min=1,max=2"`
}

// LoadVoiceConfig overlays the environment on the voice defaults.
func LoadVoiceConfig() (voiceService.VoiceConfig, error) {
	cfg := voiceService.DefaultVoiceConfig()

	env := voiceEnv{
		AssistantName: envString("ASSISTANT_NAME", cfg.AssistantName),
		SampleRate:    cfg.Audio.SampleRate,
		Channels:      cfg.Audio.Channels,
	}

	var err error
	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"RECORDING_SAFETY_TIMEOUT", cfg.RecordingSafetyTimeout, &env.RecordingSafetyTimeout},
		{"CONVERSATION_TIMEOUT", cfg.ConversationTimeout, &env.ConversationTimeout},
		{"TURN_CAPTURE_WINDOW", cfg.TurnCaptureWindow, &env.TurnCaptureWindow},
		{"WAKE_WORD_COOLDOWN", cfg.WakeWordCooldown, &env.WakeWordCooldown},
		{"PIPELINE_RETRY_BACKOFF", cfg.RetryBackoff, &env.RetryBackoff},
	}
	for _, d := range durations {
		if *d.dst, err = envDuration(d.key, d.fallback); err != nil {
			return voiceService.VoiceConfig{}, err
		}
	}
	if env.MaxAttempts, err = envInt("PIPELINE_MAX_ATTEMPTS", cfg.MaxAttempts); err != nil {
		return voiceService.VoiceConfig{}, err
	}
	if env.SampleRate, err = envInt("AUDIO_SAMPLE_RATE", env.SampleRate); err != nil {
		return voiceService.VoiceConfig{}, err
	}
	if env.Channels, err = envInt("AUDIO_CHANNELS", env.Channels); err != nil {
		return voiceService.VoiceConfig{}, err
	}

	if err := validator.New().Struct(env); err != nil {
		return voiceService.VoiceConfig{}, fmt.Errorf("invalid voice config: %w", err)
	}

	cfg.AssistantName = env.AssistantName
	cfg.RecordingSafetyTimeout = env.RecordingSafetyTimeout
	cfg.ConversationTimeout = env.ConversationTimeout
	cfg.TurnCaptureWindow = env.TurnCaptureWindow
	cfg.WakeWordCooldown = env.WakeWordCooldown
	cfg.MaxAttempts = env.MaxAttempts
	cfg.RetryBackoff = env.RetryBackoff
	cfg.Audio.SampleRate = env.SampleRate
	cfg.Audio.Channels = env.Channels
	cfg.Audio.InputFormat = os.Getenv("AUDIO_INPUT_FORMAT")
	cfg.Audio.InputDevice = os.Getenv("AUDIO_INPUT_DEVICE")
	cfg.Audio.OutputDir = envString("AUDIO_OUTPUT_DIR", cfg.Audio.OutputDir)

	if cfg.WakeWordAutoStart, err = envBool("WAKE_WORD_AUTO_START", false); err != nil {
		return voiceService.VoiceConfig{}, err
	}
	if cfg.KeepAudio, err = envBool("AUDIO_KEEP_FILES", false); err != nil {
		return voiceService.VoiceConfig{}, err
	}

	return cfg, nil
}

// LoadReminderConfig reads quiet hours, lead times and the delivery time
// zone.
func LoadReminderConfig() (reminderService.ReminderConfig, error) {
	cfg := reminderService.DefaultReminderConfig()

	var err error
	if cfg.QuietHours.Start, err = envInt("QUIET_HOURS_START", cfg.QuietHours.Start); err != nil {
		return reminderService.ReminderConfig{}, err
	}
	if cfg.QuietHours.End, err = envInt("QUIET_HOURS_END", cfg.QuietHours.End); err != nil {
		return reminderService.ReminderConfig{}, err
	}
	if err := validator.New().Struct(cfg.QuietHours); err != nil {
		return reminderService.ReminderConfig{}, fmt.Errorf("invalid quiet hours: %w", err)
	}

	leads := []struct {
		key string
		dst *time.Duration
	}{
		{"REMINDER_LEAD_HIGH", &cfg.LeadTimes.High},
		{"REMINDER_LEAD_MEDIUM", &cfg.LeadTimes.Medium},
		{"REMINDER_LEAD_LOW", &cfg.LeadTimes.Low},
	}
	for _, l := range leads {
		if *l.dst, err = envDuration(l.key, *l.dst); err != nil {
			return reminderService.ReminderConfig{}, err
		}
		if *l.dst < 0 {
			return reminderService.ReminderConfig{}, fmt.Errorf("%s must not be negative", l.key)
		}
	}

	if tz := os.Getenv("REMINDER_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return reminderService.ReminderConfig{}, fmt.Errorf("REMINDER_TIMEZONE: %w", err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

// envDuration accepts Go durations ("90s") or bare seconds ("90").
func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
