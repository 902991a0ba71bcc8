package domain

import "strings"

// EmotionCategory — категория эмоции для трендов.
type EmotionCategory string

const (
	// EmotionPositive — позитивные эмоции.
	EmotionPositive EmotionCategory = "positive"
	// EmotionNegative — негативные эмоции.
	EmotionNegative EmotionCategory = "negative"
	// EmotionAmbiguous — всё, что не попало в первые две категории.
	EmotionAmbiguous EmotionCategory = "ambiguous"
)

// TrendBucketOffsets — фиксированные границы бакетов 30-дневного окна.
// Бакет k покрывает полуинтервал (now-k, now-k_prev] дней.
var TrendBucketOffsets = []int{1, 5, 10, 15, 20, 25, 30}

// TrendWindowDays — глубина окна для трендов и рейтинга эмоций.
const TrendWindowDays = 30

// SummaryWindowDays — глубина окна для цитат и сводок.
const SummaryWindowDays = 7

// TopEmotionsLimit — максимум позиций в рейтинге эмоций.
const TopEmotionsLimit = 5

var emotionCategories = map[string]EmotionCategory{
	"gratitude":   EmotionPositive,
	"joy":         EmotionPositive,
	"love":        EmotionPositive,
	"hope":        EmotionPositive,
	"contentment": EmotionPositive,
	"excitement":  EmotionPositive,
	"pride":       EmotionPositive,
	"calm":        EmotionPositive,

	"anger":       EmotionNegative,
	"sadness":     EmotionNegative,
	"fear":        EmotionNegative,
	"anxiety":     EmotionNegative,
	"frustration": EmotionNegative,
	"guilt":       EmotionNegative,
	"shame":       EmotionNegative,
	"disgust":     EmotionNegative,
	"loneliness":  EmotionNegative,
}

// CategorizeEmotion относит метку эмоции к одной из трёх категорий.
// Неизвестные метки считаются неоднозначными.
func CategorizeEmotion(emotion string) EmotionCategory {
	if cat, ok := emotionCategories[strings.ToLower(strings.TrimSpace(emotion))]; ok {
		return cat
	}
	return EmotionAmbiguous
}
