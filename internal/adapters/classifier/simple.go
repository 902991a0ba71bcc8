package classifier

import (
	"context"
	"strings"

	"journal-insights/internal/domain"
)

// SimpleClassifier реализует доменный интерфейс Classifier эвристикой
// по ключевым словам. Используется, когда OpenAI не настроен.
type SimpleClassifier struct{}

// NewSimple создаёт Classifier.
func NewSimple() *SimpleClassifier {
	return &SimpleClassifier{}
}

var keywordEmotions = map[string]string{
	"thankful":    "gratitude",
	"grateful":    "gratitude",
	"happy":       "joy",
	"joy":         "joy",
	"glad":        "joy",
	"love":        "love",
	"hope":        "hope",
	"hopeful":     "hope",
	"excited":     "excitement",
	"proud":       "pride",
	"calm":        "calm",
	"peaceful":    "calm",
	"angry":       "anger",
	"furious":     "anger",
	"sad":         "sadness",
	"crying":      "sadness",
	"afraid":      "fear",
	"scared":      "fear",
	"anxious":     "anxiety",
	"worried":     "anxiety",
	"frustrated":  "frustration",
	"guilty":      "guilt",
	"ashamed":     "shame",
	"disgusted":   "disgust",
	"lonely":      "loneliness",
	"alone":       "loneliness",
	"tired":       "fatigue",
	"exhausted":   "fatigue",
	"surprised":   "surprise",
	"nostalgic":   "nostalgia",
	"overwhelmed": "overwhelm",
}

// Classify ищет маркерные слова и считает уверенность по числу вхождений.
func (c *SimpleClassifier) Classify(_ context.Context, text string) ([]domain.EmotionScore, error) {
	words := strings.Fields(strings.ToLower(text))
	counts := map[string]int{}
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'()")
		if emotion, ok := keywordEmotions[w]; ok {
			counts[emotion]++
		}
	}
	if len(counts) == 0 {
		return nil, nil
	}
	scores := make([]domain.EmotionScore, 0, len(counts))
	for emotion, n := range counts {
		confidence := 0.5 + 0.1*float64(n)
		if confidence > 0.9 {
			confidence = 0.9
		}
		scores = append(scores, domain.EmotionScore{Emotion: emotion, Confidence: confidence})
	}
	return scores, nil
}
