package voiceRepository

import (
	"context"
	"errors"

	"PersonalAssistant/internal/entity"
)

// History adapts the repository to the pipeline's command log.
type History struct {
	repo Repository
}

func NewHistory(repo Repository) *History {
	return &History{repo: repo}
}

func (h *History) RecordCommand(ctx context.Context, cmd entity.VoiceCommand) error {
	client, err := h.repo.NewClient(true)
	if err != nil {
		return err
	}

	if err := client.VoiceCommands.CreateVoiceCommand(ctx, cmd); err != nil {
		return errors.Join(err, client.Rollback())
	}
	return client.Commit()
}

func (h *History) ListCommands(ctx context.Context, limit, offset int) ([]entity.VoiceCommand, int, error) {
	client, err := h.repo.NewClient(false)
	if err != nil {
		return nil, 0, err
	}
	return client.VoiceCommands.ListVoiceCommands(ctx, limit, offset)
}
