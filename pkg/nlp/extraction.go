package nlp

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"PersonalAssistant/internal/entity"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrNoJSON = errors.New("no JSON object in model output")

// ExtractionPrompt instructs a language model to turn a dictated sentence
// into a task draft. Relative dates resolve against recordedAt.
func ExtractionPrompt(recordedAt time.Time) string {
	return fmt.Sprintf(`You turn a dictated sentence into a single task.

IMPORTANT: Return ONLY valid JSON, nothing else.

Format:
{
  "title": "Call Sarah",
  "description": "",
  "priority": "medium",
  "category": "task",
  "tags": ["personal"],
  "location": "",
  "due_date": "2026-03-02T15:00:00-05:00"
}

Rules:
- title: short imperative phrase, required
- priority: one of "low", "medium", "high"
- category: one of "meeting", "email", "task", "briefing", "financial", "team"
- due_date: RFC3339 with offset, or null when no time is mentioned
- The sentence was spoken at %s (%s). Resolve words like "tomorrow" or "next Monday" against it.`,
		recordedAt.Format(time.RFC3339), recordedAt.Weekday())
}

type rawDraft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Location    string   `json:"location"`
	DueDate     *string  `json:"due_date"`
}

// ParseDraft decodes model output. Surrounding prose and code fences are
// tolerated. Field values are not validated here.
func ParseDraft(raw string) (entity.ExtractedTaskDraft, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return entity.ExtractedTaskDraft{}, ErrNoJSON
	}

	var r rawDraft
	if err := json.Unmarshal([]byte(raw[start:end+1]), &r); err != nil {
		return entity.ExtractedTaskDraft{}, fmt.Errorf("decode draft: %w", err)
	}

	draft := entity.ExtractedTaskDraft{
		Title:        r.Title,
		Description:  r.Description,
		Priority:     entity.Priority(strings.ToLower(strings.TrimSpace(r.Priority))),
		Category:     entity.TaskCategory(strings.ToLower(strings.TrimSpace(r.Category))),
		Tags:         r.Tags,
		LocationName: r.Location,
	}

	if r.DueDate != nil && strings.TrimSpace(*r.DueDate) != "" {
		due, err := time.Parse(time.RFC3339, strings.TrimSpace(*r.DueDate))
		if err != nil {
			return entity.ExtractedTaskDraft{}, fmt.Errorf("decode due_date: %w", err)
		}
		draft.DueDate = &due
	}

	return draft, nil
}
