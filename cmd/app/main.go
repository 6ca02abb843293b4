package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"PersonalAssistant/internal/config"
	"PersonalAssistant/pkg/backend"
	"PersonalAssistant/pkg/eventbus"
	"PersonalAssistant/pkg/log"

	"github.com/joho/godotenv"
)

func main() {
	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Fatalf("Error loading .env file: %v", err)
	}

	appConfig, err := config.LoadAppConfig()
	if err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "Invalid app configuration")
	}
	voiceConfig, err := config.LoadVoiceConfig()
	if err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "Invalid voice configuration")
	}
	reminderConfig, err := config.LoadReminderConfig()
	if err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "Invalid reminder configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	options := []config.ServerOption{
		config.WithFiber(config.NewFiber(logger)),
		config.WithLogger(logger),
		config.WithValidator(config.NewValidator()),
		config.WithUtils(),
		config.WithVoiceConfig(voiceConfig),
		config.WithReminderConfig(reminderConfig),
		config.WithDatabase(appConfig.DBDriver, appConfig.DBDSN),
		config.WithEventHub(eventbus.New(logger, 64)),
		config.WithMiddleware(),
		config.WithBackend(backend.ConfigFromEnv()),
		config.WithTranscriber(appConfig.TranscriptionProvider, appConfig.TranscriptionLanguage),
		config.WithExtractor(appConfig.ExtractionProvider),
		config.WithDevice(appConfig.CaptureBinary, appConfig.WakeWordEngineURL),
	}
	if appConfig.CacheEnabled {
		options = append(options, config.WithRedisCache())
	}
	if appConfig.ArchiveEnabled {
		options = append(options, config.WithS3Client())
	}
	if appConfig.WhatsappEnabled {
		storeDSN := appConfig.WhatsappStoreDSN
		if appConfig.DBDriver == "postgres" {
			storeDSN = appConfig.DBDSN
		}
		options = append(options, config.WithWhatsappClient(ctx, appConfig.DBDriver, storeDSN, appConfig.WhatsappPhone))
	}

	server, err := config.NewServer(options...)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()
	server.Init(ctx)

	go func() {
		if err := server.Run(appConfig.Port); err != nil {
			logger.Errorf("Error starting server: %v", err)
			stop()
		}
	}()

	logger.Info("Assistant bridge started successfully")

	<-ctx.Done()
	logger.Info("Shutting down assistant bridge...")
	if err := server.Shutdown(); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
}
