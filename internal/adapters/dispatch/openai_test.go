package dispatch

import (
	"context"
	"errors"
	"testing"

	"pulsecheck/internal/domain"
	openai "pulsecheck/internal/infra/openai"
)

type fakeChatClient struct {
	content string
	err     error
}

func (f *fakeChatClient) CreateChatCompletion(context.Context, openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatMessage{Content: f.content}}},
	}, nil
}

type memArtifacts struct {
	saved []domain.InsightArtifact
}

func (m *memArtifacts) SaveArtifact(_ context.Context, a domain.InsightArtifact) (domain.InsightArtifact, error) {
	a.ID = int64(len(m.saved) + 1)
	m.saved = append(m.saved, a)
	return a, nil
}

func TestOpenAIDispatchParsesArtifact(t *testing.T) {
	client := &fakeChatClient{content: `{"insight":"тяжёлая неделя","action":"сделать паузу","question":"что поможет?"}`}
	artifacts := &memArtifacts{}
	d := NewOpenAI(client, artifacts, "test-model")

	got, err := d.Dispatch(context.Background(), domain.JournalEntry{ID: 7, UserID: 1, Content: "so stressed"}, domain.PersonaPulse)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got.ID == 0 || got.EntryID != 7 || got.Persona != domain.PersonaPulse {
		t.Fatalf("неожиданный артефакт: %+v", got)
	}
	if got.Insight != "тяжёлая неделя" {
		t.Fatalf("ожидали insight из ответа, получили %q", got.Insight)
	}
	if len(artifacts.saved) != 1 {
		t.Fatalf("артефакт должен быть сохранён")
	}
}

func TestOpenAIStubDispatch(t *testing.T) {
	d := NewOpenAIStub()
	got, err := d.Dispatch(context.Background(), domain.JournalEntry{ID: 3, UserID: 1, Content: "первая строка\nвторая строка"}, domain.PersonaSpark)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got.EntryID != 3 || got.Persona != domain.PersonaSpark || got.Model != "stub" {
		t.Fatalf("неожиданный артефакт: %+v", got)
	}
	if got.Insight != "Заглушка: первая строка" {
		t.Fatalf("ожидали первую строку записи, получили %q", got.Insight)
	}
}

func TestOpenAIDispatchClassifiesFailures(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeChatClient
		want   domain.DispatchErrorKind
	}{
		{name: "upstream error", client: &fakeChatClient{err: errors.New("503")}, want: domain.DispatchErrUpstream},
		{name: "timeout", client: &fakeChatClient{err: context.DeadlineExceeded}, want: domain.DispatchErrTimeout},
		{name: "broken json", client: &fakeChatClient{content: "not json"}, want: domain.DispatchErrInvalidOutput},
		{name: "missing insight", client: &fakeChatClient{content: `{"action":"x"}`}, want: domain.DispatchErrInvalidOutput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewOpenAI(tt.client, &memArtifacts{}, "test-model")
			_, err := d.Dispatch(context.Background(), domain.JournalEntry{ID: 1, UserID: 1, Content: "text"}, domain.PersonaSage)
			if err == nil {
				t.Fatalf("ожидали ошибку")
			}
			if kind := domain.DispatchKind(err); kind != tt.want {
				t.Fatalf("ожидали вид %s, получили %s", tt.want, kind)
			}
		})
	}
}
