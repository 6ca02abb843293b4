package taskService

import (
	"context"
	"time"

	"PersonalAssistant/internal/api/task"
	taskRepository "PersonalAssistant/internal/api/task/repository"
	"PersonalAssistant/internal/api/voice"
	"PersonalAssistant/internal/entity"
	"PersonalAssistant/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// TaskBackend persists tasks remotely.
type TaskBackend interface {
	CreateTask(ctx context.Context, payload entity.TaskPayload) (entity.PersistedTask, error)
	UpdateTask(ctx context.Context, id string, patch map[string]any) (entity.PersistedTask, error)
	DeleteTask(ctx context.Context, id string) error
}

type TaskCache interface {
	SetTask(ctx context.Context, t entity.PersistedTask) error
	DeleteTask(ctx context.Context, id string) error
}

// Scheduler keeps reminder instructions in step with tasks.
type Scheduler interface {
	Schedule(ctx context.Context, t entity.PersistedTask) error
	Reschedule(ctx context.Context, t entity.PersistedTask) error
	Cancel(ctx context.Context, taskID string) error
}

type EventSink interface {
	Publish(evt voice.Event)
}

type ITaskService interface {
	Commit(ctx context.Context, draft entity.ExtractedTaskDraft, createdBy entity.CreatedBy, opts ...task.CommitOption) (entity.PersistedTask, error)
	PendingDrafts(ctx context.Context) ([]entity.PendingDraft, error)
	SaveDraft(ctx context.Context, draftID string, edited *entity.ExtractedTaskDraft) (entity.PersistedTask, error)
	Complete(ctx context.Context, taskID string) (entity.PersistedTask, error)
	Delete(ctx context.Context, taskID string) error
	ChangeDueDate(ctx context.Context, taskID string, due *time.Time) (entity.PersistedTask, error)
}

type taskService struct {
	log       *logrus.Logger
	repo      taskRepository.Repository
	backend   TaskBackend
	cache     TaskCache
	scheduler Scheduler
	validator *validator.Validate
	utils     utils.IUtils
	events    EventSink
}

func NewTaskService(
	log *logrus.Logger,
	repo taskRepository.Repository,
	backend TaskBackend,
	cache TaskCache,
	scheduler Scheduler,
	validate *validator.Validate,
	utils utils.IUtils,
	events EventSink,
) ITaskService {
	if validate == nil {
		validate = validator.New()
	}

	return &taskService{
		log:       log,
		repo:      repo,
		backend:   backend,
		cache:     cache,
		scheduler: scheduler,
		validator: validate,
		utils:     utils,
		events:    events,
	}
}

func (s *taskService) emit(evt voice.Event) {
	if s.events == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	s.events.Publish(evt)
}
