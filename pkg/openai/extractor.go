package openai

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"PersonalAssistant/internal/entity"
	"PersonalAssistant/pkg/audio"
	"PersonalAssistant/pkg/nlp"

	"github.com/sashabaranov/go-openai"
)

var ErrNoChoices = errors.New("no response from ChatGPT")

// TaskExtractor asks a chat model for a task draft in JSON mode.
type TaskExtractor struct {
	client *openai.Client
	model  string
}

func NewTaskExtractor() *TaskExtractor {
	apiKey := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("OPENAI_CHAT_MODEL")

	if model == "" {
		model = openai.GPT4oMini
	}

	return &TaskExtractor{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func NewTaskExtractorWithConfig(cfg openai.ClientConfig, model string) *TaskExtractor {
	return &TaskExtractor{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (e *TaskExtractor) Extract(ctx context.Context, text string, recordedAt time.Time) (entity.ExtractedTaskDraft, error) {
	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: nlp.ExtractionPrompt(recordedAt),
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: strings.TrimSpace(text),
		},
	}

	resp, err := e.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       e.model,
			Messages:    messages,
			Temperature: 0.2,
			MaxTokens:   300,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
	)
	if err != nil {
		return entity.ExtractedTaskDraft{}, audio.WrapOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return entity.ExtractedTaskDraft{}, ErrNoChoices
	}

	return nlp.ParseDraft(resp.Choices[0].Message.Content)
}
