package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"journal-insights/internal/domain"
	openai "journal-insights/internal/infra/openai"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI реализует классификатор эмоций через OpenAI Chat Completions.
type OpenAI struct {
	client  chatClient
	model   string
	timeout time.Duration
}

// NewOpenAI создаёт классификатор.
func NewOpenAI(client chatClient, model string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = "gpt-4.1-mini"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OpenAI{client: client, model: model, timeout: timeout}
}

type emotionsPayload struct {
	Emotions []domain.EmotionScore `json:"emotions"`
}

// Classify размечает текст записи эмоциями с уверенностью в [0,1].
func (c *OpenAI) Classify(ctx context.Context, text string) ([]domain.EmotionScore, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf(`Detect the emotions expressed in the journal entry below.
Return JSON of the form {"emotions": [{"emotion": "joy", "confidence": 0.9}]} with no commentary.
Use lowercase single-word emotion labels and at most five emotions.
Journal entry:
%s`, clipRunes(text, 4000))

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.1,
		MaxTokens:   200,
		Messages: []openai.ChatMessage{
			{
				Role:    openai.RoleSystem,
				Content: "You are an emotion classifier for personal journal entries. Report only emotions present in the text.",
			},
			{
				Role:    openai.RoleUser,
				Content: userPrompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai completion: пустой ответ")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	var parsed emotionsPayload
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("распаковка ответа LLM: %w", err)
	}
	return normalizeScores(parsed.Emotions), nil
}

func normalizeScores(scores []domain.EmotionScore) []domain.EmotionScore {
	out := make([]domain.EmotionScore, 0, len(scores))
	for _, s := range scores {
		emotion := strings.ToLower(strings.TrimSpace(s.Emotion))
		if emotion == "" {
			continue
		}
		confidence := s.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
		out = append(out, domain.EmotionScore{Emotion: emotion, Confidence: confidence})
	}
	if len(out) == 0 {
		return nil
	}
	return out
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
