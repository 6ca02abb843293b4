package audio

import (
	"context"
	"errors"
	"strings"

	"PersonalAssistant/internal/api/voice"
	"PersonalAssistant/pkg/response"

	openai "github.com/sashabaranov/go-openai"
)

type WhisperTranscriber struct {
	client   *openai.Client
	language string
}

func NewWhisperTranscriber(apiKey, language string) *WhisperTranscriber {
	return &WhisperTranscriber{
		client:   openai.NewClient(apiKey),
		language: language,
	}
}

func NewWhisperTranscriberWithConfig(cfg openai.ClientConfig, language string) *WhisperTranscriber {
	return &WhisperTranscriber{
		client:   openai.NewClientWithConfig(cfg),
		language: language,
	}
}

func (t *WhisperTranscriber) Transcribe(ctx context.Context, audio voice.AudioPayload) (string, error) {
	req := openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audio.Path,
		Language: t.language,
	}

	resp, err := t.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", WrapOpenAIError(err)
	}

	return strings.TrimSpace(resp.Text), nil
}

// WrapOpenAIError keeps the HTTP status of API failures so callers can
// classify them.
func WrapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return response.Wrap(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return response.Wrap(reqErr.HTTPStatusCode, err)
	}
	return err
}
