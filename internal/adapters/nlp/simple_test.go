package nlp

import (
	"context"
	"errors"
	"testing"
	"time"

	"journal-insights/internal/domain"
)

func TestSimpleGenerateQuoteMatchesTone(t *testing.T) {
	p := NewSimple()
	entries := []domain.Entry{
		{Title: "Hard day", Content: "...", CreatedAt: time.Now(), Emotions: []domain.EmotionScore{
			{Emotion: "sadness", Confidence: 0.8},
			{Emotion: "anxiety", Confidence: 0.6},
		}},
	}
	quote, err := p.GenerateQuote(context.Background(), entries)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if quote.Quote == "" || quote.Author == "" {
		t.Fatalf("ожидали заполненную цитату, получили %+v", quote)
	}
}

func TestSimpleGenerateQuoteEmptyEntries(t *testing.T) {
	p := NewSimple()
	_, err := p.GenerateQuote(context.Background(), nil)
	if !errors.Is(err, domain.ErrNoQuote) {
		t.Fatalf("ожидали ErrNoQuote, получили %v", err)
	}
}

func TestSimpleGenerateSummary(t *testing.T) {
	p := NewSimple()
	entries := []domain.Entry{
		{Title: "Morning run", CreatedAt: time.Now(), Emotions: []domain.EmotionScore{{Emotion: "joy", Confidence: 0.9}}},
		{Title: "Work stress", CreatedAt: time.Now(), Emotions: []domain.EmotionScore{{Emotion: "anxiety", Confidence: 0.7}}},
	}
	content, err := p.GenerateSummary(context.Background(), entries)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if content.Summary == "" {
		t.Fatalf("ожидали текст сводки")
	}
	if len(content.KeyThemes) != 2 {
		t.Fatalf("ожидали две темы, получили %v", content.KeyThemes)
	}
	if content.EmotionalTrends["joy"] != 0.5 || content.EmotionalTrends["anxiety"] != 0.5 {
		t.Fatalf("ожидали равные доли эмоций, получили %v", content.EmotionalTrends)
	}
}
