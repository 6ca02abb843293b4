package reminderService

import (
	"context"
	"sync"
	"time"

	reminderRepository "PersonalAssistant/internal/api/reminder/repository"
	"PersonalAssistant/internal/api/voice"
	"PersonalAssistant/internal/entity"
	"PersonalAssistant/pkg/nlp"
	"PersonalAssistant/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// NotificationCenter is the platform notification collaborator.
type NotificationCenter interface {
	Schedule(ctx context.Context, req entity.NotificationRequest) (string, error)
	Cancel(ctx context.Context, id string) error
}

type EventSink interface {
	Publish(evt voice.Event)
}

// QuietHours is the local-time window [Start, End). Start > End spans midnight.
type QuietHours struct {
	Start int `json:"start" validate:"min=0,max=23"`
	End   int `json:"end" validate:"min=0,max=23"`
}

type LeadTimes struct {
	High   time.Duration
	Medium time.Duration
	Low    time.Duration
}

type ReminderConfig struct {
	LeadTimes  LeadTimes
	QuietHours QuietHours
	Location   *time.Location
}

func DefaultReminderConfig() ReminderConfig {
	return ReminderConfig{
		LeadTimes: LeadTimes{
			High:   60 * time.Minute,
			Medium: 30 * time.Minute,
			Low:    15 * time.Minute,
		},
		QuietHours: QuietHours{Start: 22, End: 7},
		Location:   time.Local,
	}
}

type IReminderService interface {
	Schedule(ctx context.Context, t entity.PersistedTask) error
	Reschedule(ctx context.Context, t entity.PersistedTask) error
	Cancel(ctx context.Context, taskID string) error
	ScheduleRecurring(ctx context.Context, r entity.RecurringReminder) error
	CancelRecurring(ctx context.Context, key string) error
	Instruction(ctx context.Context, taskID string) (entity.ReminderInstruction, error)
	Restore(ctx context.Context) error
	IsQuietHours(at time.Time) bool
	QuietHours() QuietHours
}

type reminderService struct {
	log        *logrus.Logger
	repo       reminderRepository.Repository
	center     NotificationCenter
	classifier nlp.IClassifier
	validator  *validator.Validate
	utils      utils.IUtils
	events     EventSink
	config     ReminderConfig
	now        func() time.Time

	// serializes cancel-then-create so an owner never has two instructions
	mu sync.Mutex
}

func NewReminderService(
	log *logrus.Logger,
	repo reminderRepository.Repository,
	center NotificationCenter,
	classifier nlp.IClassifier,
	validate *validator.Validate,
	utils utils.IUtils,
	events EventSink,
	config ReminderConfig,
) IReminderService {
	if validate == nil {
		validate = validator.New()
	}
	if classifier == nil {
		classifier = nlp.NewClassifier()
	}
	if config.Location == nil {
		config.Location = time.Local
	}

	return &reminderService{
		log:        log,
		repo:       repo,
		center:     center,
		classifier: classifier,
		validator:  validate,
		utils:      utils,
		events:     events,
		config:     config,
		now:        time.Now,
	}
}

func (s *reminderService) emit(evt voice.Event) {
	if s.events == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = s.now()
	}
	s.events.Publish(evt)
}
