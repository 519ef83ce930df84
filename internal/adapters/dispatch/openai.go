package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pulsecheck/internal/domain"
	openai "pulsecheck/internal/infra/openai"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI реализует шлюз доставки через OpenAI Chat Completions.
// Содержимое ответа модели наружу не отдаётся: планировщик видит
// только сохранённый артефакт либо типизированный отказ.
type OpenAI struct {
	client    chatClient
	artifacts domain.ArtifactRepo
	model     string
}

var _ domain.Dispatcher = (*OpenAI)(nil)

// NewOpenAI создаёт шлюз.
func NewOpenAI(client chatClient, artifacts domain.ArtifactRepo, model string) *OpenAI {
	if model == "" {
		model = "gpt-4.1-mini"
	}
	return &OpenAI{client: client, artifacts: artifacts, model: model}
}

var personaPrompts = map[domain.PersonaID]string{
	domain.PersonaPulse:  "You are Pulse, a warm and supportive journaling companion. Validate the writer's feelings before anything else.",
	domain.PersonaSage:   "You are Sage, a calm and analytical journaling companion. Help the writer see patterns in their own words.",
	domain.PersonaSpark:  "You are Spark, an energetic and direct journaling companion. Turn the writer's momentum into one concrete step.",
	domain.PersonaAnchor: "You are Anchor, a steady and grounding journaling companion. Slow things down and focus on what is within the writer's control.",
}

type insightPayload struct {
	Insight  string `json:"insight"`
	Action   string `json:"action"`
	Question string `json:"question"`
}

// Dispatch выполняет вызов LLM и сохраняет артефакт.
func (d *OpenAI) Dispatch(ctx context.Context, entry domain.JournalEntry, persona domain.PersonaID) (domain.InsightArtifact, error) {
	system, ok := personaPrompts[persona]
	if !ok {
		return domain.InsightArtifact{}, domain.NewDispatchError(domain.DispatchErrInvalidOutput, fmt.Errorf("неизвестная персона %q", persona))
	}

	userPrompt := fmt.Sprintf(`Respond to this journal entry.
Return JSON of the form {"insight": "...", "action": "...", "question": "..."} with no extra commentary.
Entry:
%s`, clipRunes(strings.TrimSpace(entry.Content), 2000))

	req := openai.ChatCompletionRequest{
		Model:       d.model,
		Temperature: 0.4,
		MaxTokens:   400,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: system},
			{Role: openai.RoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject},
	}

	resp, err := d.client.CreateChatCompletion(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.InsightArtifact{}, domain.NewDispatchError(domain.DispatchErrTimeout, err)
		}
		return domain.InsightArtifact{}, domain.NewDispatchError(domain.DispatchErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return domain.InsightArtifact{}, domain.NewDispatchError(domain.DispatchErrInvalidOutput, errors.New("пустой ответ модели"))
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	var parsed insightPayload
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return domain.InsightArtifact{}, domain.NewDispatchError(domain.DispatchErrInvalidOutput, fmt.Errorf("распаковка ответа LLM: %w", err))
	}
	if strings.TrimSpace(parsed.Insight) == "" {
		return domain.InsightArtifact{}, domain.NewDispatchError(domain.DispatchErrInvalidOutput, errors.New("в ответе нет insight"))
	}

	artifact := domain.InsightArtifact{
		EntryID:   entry.ID,
		Persona:   persona,
		Insight:   strings.TrimSpace(parsed.Insight),
		Action:    strings.TrimSpace(parsed.Action),
		Question:  strings.TrimSpace(parsed.Question),
		Model:     d.model,
		CreatedAt: time.Now().UTC(),
	}
	saved, err := d.artifacts.SaveArtifact(ctx, artifact)
	if err != nil {
		return domain.InsightArtifact{}, domain.NewDispatchError(domain.DispatchErrUpstream, err)
	}
	return saved, nil
}

func clipRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
