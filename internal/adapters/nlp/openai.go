package nlp

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

// OpenAI реализует InsightProvider через OpenAI Chat Completions.
type OpenAI struct {
	client  chatClient
	model   string
	timeout time.Duration
}

// NewOpenAI создаёт NLP-провайдер.
func NewOpenAI(client chatClient, model string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = "gpt-4.1-mini"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OpenAI{client: client, model: model, timeout: timeout}
}

type quotePayload struct {
	Title       string `json:"title"`
	Quote       string `json:"quote"`
	Author      string `json:"author"`
	Citation    string `json:"citation"`
	Explanation string `json:"explanation"`
}

type summaryPayload struct {
	Summary         string             `json:"summary"`
	KeyThemes       []string           `json:"key_themes"`
	EmotionalTrends map[string]float64 `json:"emotional_trends"`
}

// GenerateQuote подбирает вдохновляющую цитату под недавние записи.
func (p *OpenAI) GenerateQuote(ctx context.Context, entries []domain.Entry) (domain.QuoteContent, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf(`Pick one real inspirational quote matching the mood of the journal entries below.
Return JSON of the form {"title": "...", "quote": "...", "author": "...", "citation": "...", "explanation": "..."} with no commentary.
The explanation should say in one or two sentences why this quote fits the entries.
Journal entries:
%s`, renderEntries(entries, 3000))

	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: 0.7,
		MaxTokens:   400,
		Messages: []openai.ChatMessage{
			{
				Role:    openai.RoleSystem,
				Content: "You are a thoughtful journaling companion. Only quote real people and never invent attributions.",
			},
			{
				Role:    openai.RoleUser,
				Content: userPrompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject},
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.QuoteContent{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.QuoteContent{}, fmt.Errorf("openai completion: пустой ответ")
	}
	var parsed quotePayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Choices[0].Message.Content)), &parsed); err != nil {
		return domain.QuoteContent{}, fmt.Errorf("распаковка ответа LLM: %w", err)
	}
	if strings.TrimSpace(parsed.Quote) == "" {
		return domain.QuoteContent{}, domain.ErrNoQuote
	}
	return domain.QuoteContent{
		Title:       strings.TrimSpace(parsed.Title),
		Quote:       strings.TrimSpace(parsed.Quote),
		Author:      strings.TrimSpace(parsed.Author),
		Citation:    strings.TrimSpace(parsed.Citation),
		Explanation: strings.TrimSpace(parsed.Explanation),
	}, nil
}

// GenerateSummary строит сводку по записям 7-дневного окна.
func (p *OpenAI) GenerateSummary(ctx context.Context, entries []domain.Entry) (domain.SummaryContent, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf(`Summarize the past week of journal entries below.
Return JSON of the form {"summary": "...", "key_themes": ["..."], "emotional_trends": {"joy": 0.4}} with no commentary.
The summary is two to four sentences addressed to the author, key_themes holds up to five short phrases,
emotional_trends maps lowercase emotion labels to their share in [0,1].
Journal entries:
%s`, renderEntries(entries, 5000))

	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: 0.4,
		MaxTokens:   500,
		Messages: []openai.ChatMessage{
			{
				Role:    openai.RoleSystem,
				Content: "You are a supportive journaling companion. Reflect only what the entries actually say.",
			},
			{
				Role:    openai.RoleUser,
				Content: userPrompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject},
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.SummaryContent{}, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.SummaryContent{}, fmt.Errorf("openai completion: пустой ответ")
	}
	var parsed summaryPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Choices[0].Message.Content)), &parsed); err != nil {
		return domain.SummaryContent{}, fmt.Errorf("распаковка ответа LLM: %w", err)
	}
	return domain.SummaryContent{
		Summary:         strings.TrimSpace(parsed.Summary),
		KeyThemes:       filterValues(parsed.KeyThemes),
		EmotionalTrends: parsed.EmotionalTrends,
	}, nil
}

func renderEntries(entries []domain.Entry, limit int) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.CreatedAt.Format("2006-01-02"))
		b.WriteString(" — ")
		b.WriteString(strings.TrimSpace(e.Title))
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(e.Content))
		b.WriteString("\n\n")
	}
	return clipRunes(strings.TrimSpace(b.String()), limit)
}

func filterValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
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
