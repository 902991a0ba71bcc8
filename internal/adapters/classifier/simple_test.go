package classifier

import (
	"context"
	"testing"
)

func TestSimpleClassifyFindsEmotions(t *testing.T) {
	c := NewSimple()
	scores, err := c.Classify(context.Background(), "I am so grateful today, even if a bit worried about tomorrow.")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	found := map[string]bool{}
	for _, s := range scores {
		found[s.Emotion] = true
		if s.Confidence <= 0 || s.Confidence > 1 {
			t.Fatalf("уверенность вне диапазона: %v", s.Confidence)
		}
	}
	if !found["gratitude"] || !found["anxiety"] {
		t.Fatalf("ожидали gratitude и anxiety, получили %v", scores)
	}
}

func TestSimpleClassifyNeutralText(t *testing.T) {
	c := NewSimple()
	scores, err := c.Classify(context.Background(), "Bought groceries and fixed the bike.")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if scores != nil {
		t.Fatalf("ожидали nil для нейтрального текста, получили %v", scores)
	}
}
