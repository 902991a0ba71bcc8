package nlp

import (
	"context"
	"sort"
	"strings"

	"journal-insights/internal/domain"
)

// SimpleProvider реализует InsightProvider без внешнего сервиса.
// Цитата берётся из небольшого встроенного набора по тону записей,
// сводка собирается из заголовков. Используется, когда OpenAI не настроен.
type SimpleProvider struct{}

// NewSimple создаёт InsightProvider.
func NewSimple() *SimpleProvider {
	return &SimpleProvider{}
}

type stockQuote struct {
	category domain.EmotionCategory
	content  domain.QuoteContent
}

var stockQuotes = []stockQuote{
	{
		category: domain.EmotionPositive,
		content: domain.QuoteContent{
			Title:  "Keep the momentum",
			Quote:  "It is not in the stars to hold our destiny but in ourselves.",
			Author: "William Shakespeare",
		},
	},
	{
		category: domain.EmotionNegative,
		content: domain.QuoteContent{
			Title:  "This too shall pass",
			Quote:  "In the middle of difficulty lies opportunity.",
			Author: "Albert Einstein",
		},
	},
	{
		category: domain.EmotionAmbiguous,
		content: domain.QuoteContent{
			Title:  "One step at a time",
			Quote:  "The journey of a thousand miles begins with a single step.",
			Author: "Lao Tzu",
		},
	},
}

// GenerateQuote выбирает цитату по преобладающей категории эмоций.
func (p *SimpleProvider) GenerateQuote(_ context.Context, entries []domain.Entry) (domain.QuoteContent, error) {
	if len(entries) == 0 {
		return domain.QuoteContent{}, domain.ErrNoQuote
	}
	dominant := dominantCategory(entries)
	for _, q := range stockQuotes {
		if q.category == dominant {
			content := q.content
			content.Explanation = "Picked to match the overall tone of your recent entries."
			return content, nil
		}
	}
	return domain.QuoteContent{}, domain.ErrNoQuote
}

// GenerateSummary собирает сводку из заголовков и счётчиков эмоций.
func (p *SimpleProvider) GenerateSummary(_ context.Context, entries []domain.Entry) (domain.SummaryContent, error) {
	themes := make([]string, 0, 5)
	for _, e := range entries {
		title := strings.TrimSpace(e.Title)
		if title == "" {
			continue
		}
		themes = append(themes, title)
		if len(themes) == 5 {
			break
		}
	}
	return domain.SummaryContent{
		Summary:         summaryText(len(entries)),
		KeyThemes:       themes,
		EmotionalTrends: emotionShares(entries),
	}, nil
}

func summaryText(count int) string {
	if count == 1 {
		return "You wrote one journal entry this week. Keep going!"
	}
	return "You kept up your journaling this week. Keep going!"
}

func dominantCategory(entries []domain.Entry) domain.EmotionCategory {
	counts := map[domain.EmotionCategory]int{}
	for _, e := range entries {
		for _, s := range e.Emotions {
			counts[domain.CategorizeEmotion(s.Emotion)]++
		}
	}
	best := domain.EmotionAmbiguous
	bestCount := 0
	for _, category := range []domain.EmotionCategory{domain.EmotionPositive, domain.EmotionNegative, domain.EmotionAmbiguous} {
		if counts[category] > bestCount {
			best = category
			bestCount = counts[category]
		}
	}
	return best
}

func emotionShares(entries []domain.Entry) map[string]float64 {
	counts := map[string]int{}
	total := 0
	for _, e := range entries {
		for _, s := range e.Emotions {
			counts[strings.ToLower(s.Emotion)]++
			total++
		}
	}
	if total == 0 {
		return nil
	}
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	shares := make(map[string]float64, len(labels))
	for _, label := range labels {
		shares[label] = float64(counts[label]) / float64(total)
	}
	return shares
}
