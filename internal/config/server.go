package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"PersonalAssistant/database"
	reminderHandler "PersonalAssistant/internal/api/reminder/handler"
	reminderRepository "PersonalAssistant/internal/api/reminder/repository"
	reminderService "PersonalAssistant/internal/api/reminder/service"
	taskHandler "PersonalAssistant/internal/api/task/handler"
	taskRepository "PersonalAssistant/internal/api/task/repository"
	taskService "PersonalAssistant/internal/api/task/service"
	voiceHandler "PersonalAssistant/internal/api/voice/handler"
	voiceRepository "PersonalAssistant/internal/api/voice/repository"
	voiceService "PersonalAssistant/internal/api/voice/service"
	"PersonalAssistant/internal/middleware"
	"PersonalAssistant/pkg/audio"
	"PersonalAssistant/pkg/backend"
	"PersonalAssistant/pkg/device"
	"PersonalAssistant/pkg/eventbus"
	"PersonalAssistant/pkg/gemini"
	"PersonalAssistant/pkg/nlp"
	"PersonalAssistant/pkg/notification"
	"PersonalAssistant/pkg/openai"
	"PersonalAssistant/pkg/redis"
	"PersonalAssistant/pkg/s3"
	"PersonalAssistant/pkg/utils"
	websocketPkg "PersonalAssistant/pkg/websocket"
	"PersonalAssistant/pkg/whatsapp"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine     *fiber.App
	db         *sqlx.DB
	log        *logrus.Logger
	middleware middleware.Middleware
	validator  *validator.Validate
	utils      utils.IUtils
	handlers   []handler

	voiceConfig    voiceService.VoiceConfig
	reminderConfig reminderService.ReminderConfig

	events         *eventbus.Hub
	backendClient  *backend.Client
	transcriber    voiceService.Transcriber
	extractor      voiceService.Extractor
	geminiClient   gemini.ITaskExtractor
	capture        *audio.FFMPEGCapture
	permissions    voiceService.PermissionProvider
	wakeWordEngine voiceService.WakeWordEngine
	taskCache      redis.ITaskCache
	s3Client       s3.ItfS3
	whatsappClient whatsapp.IWhatsappSender
	whatsappPhone  string

	center          *notification.Center
	voiceServices   voiceService.IVoiceService
	reminderService reminderService.IReminderService
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{
		voiceConfig:    voiceService.DefaultVoiceConfig(),
		reminderConfig: reminderService.DefaultReminderConfig(),
	}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if server.backendClient == nil {
		return nil, fmt.Errorf("backend client is required")
	}
	if server.transcriber == nil || server.extractor == nil {
		return nil, fmt.Errorf("transcription and extraction providers are required")
	}
	if server.capture == nil {
		return nil, fmt.Errorf("device is required")
	}
	if server.utils == nil {
		server.utils = utils.New()
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}
	if server.events == nil {
		server.events = eventbus.New(server.log, 0)
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithVoiceConfig(cfg voiceService.VoiceConfig) ServerOption {
	return func(s *Server) error {
		s.voiceConfig = cfg
		return nil
	}
}

func WithReminderConfig(cfg reminderService.ReminderConfig) ServerOption {
	return func(s *Server) error {
		s.reminderConfig = cfg
		return nil
	}
}

// WithDatabase opens the device database and applies the schema.
func WithDatabase(driver, dsn string) ServerOption {
	return func(s *Server) error {
		db, err := database.Open(driver, dsn)
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return err
		}

		s.db = db
		return nil
	}
}

func WithEventHub(hub *eventbus.Hub) ServerOption {
	return func(s *Server) error {
		s.events = hub
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log)
		return nil
	}
}

func WithBackend(cfg backend.Config) ServerOption {
	return func(s *Server) error {
		if cfg.BaseURL == "" {
			return fmt.Errorf("BACKEND_BASE_URL is required")
		}
		s.backendClient = backend.New(s.log, cfg)
		return nil
	}
}

// WithTranscriber selects the speech-to-text provider. "backend" defers to
// the assistant backend and must come after WithBackend.
func WithTranscriber(provider, language string) ServerOption {
	return func(s *Server) error {
		switch provider {
		case "whisper":
			apiKey := os.Getenv("OPENAI_API_KEY")
			if apiKey == "" {
				return errors.New("OPENAI_API_KEY is required for whisper transcription")
			}
			s.transcriber = audio.NewWhisperTranscriber(apiKey, language)
		case "", "backend":
			if s.backendClient == nil {
				return errors.New("backend transcription requires WithBackend")
			}
			s.transcriber = s.backendClient
		default:
			return fmt.Errorf("unknown transcription provider %q", provider)
		}
		return nil
	}
}

// WithExtractor selects the task extraction provider.
func WithExtractor(provider string) ServerOption {
	return func(s *Server) error {
		switch provider {
		case "openai":
			if os.Getenv("OPENAI_API_KEY") == "" {
				return errors.New("OPENAI_API_KEY is required for openai extraction")
			}
			s.extractor = openai.NewTaskExtractor()
		case "gemini":
			client, err := gemini.NewTaskExtractor()
			if err != nil {
				if s.log != nil {
					s.log.Errorf("Failed to create Gemini client: %v", err)
				}
				return fmt.Errorf("failed to create Gemini client: %w", err)
			}
			s.geminiClient = client
			s.extractor = client
		case "", "backend":
			if s.backendClient == nil {
				return errors.New("backend extraction requires WithBackend")
			}
			s.extractor = s.backendClient
		default:
			return fmt.Errorf("unknown extraction provider %q", provider)
		}
		return nil
	}
}

// WithDevice wires the platform recorder, permission probes and the wake
// word sidecar.
func WithDevice(captureBinary, wakeWordURL string) ServerOption {
	return func(s *Server) error {
		s.capture = audio.NewFFMPEGCapture(s.log, captureBinary)
		s.permissions = device.PermissionsFromEnv(captureBinary)
		s.wakeWordEngine = websocketPkg.NewWakeWordClient(s.log, wakeWordURL)
		if !s.capture.Available() {
			s.log.Warnf("Audio capture binary %q not found, recording will fail", captureBinary)
		}
		return nil
	}
}

func WithRedisCache() ServerOption {
	return func(s *Server) error {
		s.taskCache = redis.New()
		return nil
	}
}

func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

// WithWhatsappClient adds WhatsApp as a reminder delivery channel to phone.
func WithWhatsappClient(ctx context.Context, driver, dsn, phone string) ServerOption {
	return func(s *Server) error {
		client, err := whatsapp.New(ctx, s.log, driver, dsn)
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize WhatsApp client: %v", err)
			}
			return fmt.Errorf("failed to create WhatsApp client: %w", err)
		}
		s.whatsappClient = client
		s.whatsappPhone = phone
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

func (s *Server) RegisterHandler() {
	if s.middleware == nil {
		s.middleware = middleware.New(s.log)
	}

	// Reminder Domain
	channels := []notification.Channel{notification.NewEventChannel(s.events)}
	if s.whatsappClient != nil {
		channels = append(channels, whatsapp.NewChannel(s.whatsappClient, s.whatsappPhone))
	}
	quiet := s.reminderConfig
	s.center = notification.NewCenter(s.log, s.utils,
		notification.WithChannels(channels...),
		notification.WithQuietHours(func(at time.Time) bool {
			return reminderService.IsQuietHours(at.In(quiet.Location), quiet.QuietHours)
		}),
	)
	reminderRepo := reminderRepository.New(s.db, s.log)
	s.reminderService = reminderService.NewReminderService(s.log, reminderRepo, s.center, nlp.NewClassifier(), s.validator, s.utils, s.events, s.reminderConfig)
	reminderHandlers := reminderHandler.New(s.log, s.validator, s.middleware, s.reminderService)

	// Task Domain
	taskRepo := taskRepository.New(s.db, s.log)
	taskServices := taskService.NewTaskService(s.log, taskRepo, s.backendClient, s.taskCache, s.reminderService, s.validator, s.utils, s.events)
	taskHandlers := taskHandler.New(s.log, s.validator, s.middleware, taskServices)

	// Voice Domain
	history := voiceRepository.NewHistory(voiceRepository.New(s.db, s.log))
	gate := voiceService.NewPermissionGate(s.log, s.permissions)
	recorder := voiceService.NewRecorder(s.log, s.capture, gate, voiceService.NewMicrophone(), s.events, s.voiceConfig)
	listener := voiceService.NewWakeWordListener(s.log, s.wakeWordEngine, gate, s.events, s.voiceConfig)
	pipeline := voiceService.NewPipeline(s.log, s.transcriber, s.extractor, taskServices, s.validator, s.utils, s.events, s.voiceConfig,
		voiceService.WithPrivacyArchive(s.backendClient, s.s3Client),
		voiceService.WithHistory(history),
	)
	turn := voiceService.NewCaptureTurn(s.log, recorder, pipeline, s.voiceConfig)
	conversation := voiceService.NewConversationManager(s.log, listener, recorder, turn, s.events, s.voiceConfig)
	s.voiceServices = voiceService.NewVoiceService(s.log, recorder, listener, conversation, pipeline, history, s.voiceConfig)
	voiceHandlers := voiceHandler.New(s.log, s.validator, s.middleware, s.voiceServices, s.events)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, voiceHandlers, taskHandlers, reminderHandlers)
}

// Init re-arms persisted reminders and starts the voice service. Neither
// failure stops the bridge.
func (s *Server) Init(ctx context.Context) {
	if err := s.reminderService.Restore(ctx); err != nil {
		s.log.Errorf("Failed to restore reminders: %v", err)
	}
	if err := s.voiceServices.Init(ctx); err != nil {
		s.log.Errorf("Failed to initialize voice service: %v", err)
	}
}

func (s *Server) Run(port string) error {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())
	s.engine.Use(s.middleware.NewRateLimiter)

	router := s.engine.Group("/api/v1")
	for _, h := range s.handlers {
		h.Start(router)
	}

	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf("127.0.0.1:%s", port))
}

// Shutdown stops the bridge and releases device and network resources.
func (s *Server) Shutdown() error {
	err := s.engine.ShutdownWithTimeout(10 * time.Second)

	if s.voiceServices != nil {
		s.voiceServices.Shutdown()
	}
	if s.center != nil {
		s.center.Close()
	}
	if s.whatsappClient != nil {
		err = errors.Join(err, s.whatsappClient.Disconnect())
	}
	if s.geminiClient != nil {
		s.geminiClient.Close()
	}
	return errors.Join(err, s.db.Close())
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message":     "Assistant bridge is healthy",
			"subscribers": s.events.Subscribers(),
		})
	})
}
