package gemini

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"PersonalAssistant/internal/entity"
	"PersonalAssistant/pkg/nlp"
	"PersonalAssistant/pkg/response"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type ITaskExtractor interface {
	Extract(ctx context.Context, text string, recordedAt time.Time) (entity.ExtractedTaskDraft, error)
	Close()
}

type geminiClient struct {
	apiKey    string
	modelName string
	client    *genai.Client
}

func NewTaskExtractor() (ITaskExtractor, error) {

	apiKey := os.Getenv("GEMINI_API_KEY")

	modelName := os.Getenv("GEMINI_MODEL_NAME")
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &geminiClient{
		apiKey:    apiKey,
		modelName: modelName,
		client:    client,
	}, nil
}

func (g *geminiClient) Extract(ctx context.Context, text string, recordedAt time.Time) (entity.ExtractedTaskDraft, error) {
	model := g.client.GenerativeModel(g.modelName)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = genai.NewUserContent(genai.Text(nlp.ExtractionPrompt(recordedAt)))

	res, err := model.GenerateContent(ctx, genai.Text(strings.TrimSpace(text)))
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return entity.ExtractedTaskDraft{}, response.Wrap(apiErr.Code, err)
		}
		return entity.ExtractedTaskDraft{}, err
	}

	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil || len(res.Candidates[0].Content.Parts) == 0 {
		return entity.ExtractedTaskDraft{}, errors.New("no response from Gemini API")
	}

	var out strings.Builder
	for _, part := range res.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			out.WriteString(string(t))
		}
	}
	if out.Len() == 0 {
		return entity.ExtractedTaskDraft{}, errors.New("unexpected response format from Gemini API")
	}

	return nlp.ParseDraft(out.String())
}

func (g *geminiClient) Close() {
	if g.client != nil {
		g.client.Close()
	}
}
