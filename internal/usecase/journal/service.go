package journal

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"journal-insights/internal/domain"
)

const defaultPageSize = 20

// Service реализует путь записи дневника: валидация, классификация
// эмоций, сохранение.
type Service struct {
	entries    domain.EntryRepo
	classifier domain.Classifier
	log        zerolog.Logger
}

// NewService создаёт сервис записей.
func NewService(entries domain.EntryRepo, classifier domain.Classifier, logger zerolog.Logger) *Service {
	return &Service{entries: entries, classifier: classifier, log: logger}
}

// CreateEntry сохраняет новую запись. Сбой классификатора не блокирует
// сохранение: запись остаётся без эмоций.
func (s *Service) CreateEntry(ctx context.Context, userID int64, title, content string) (domain.Entry, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" {
		return domain.Entry{}, domain.ErrEmptyTitle
	}
	if content == "" {
		return domain.Entry{}, domain.ErrEmptyContent
	}

	entry := domain.Entry{
		UserID:   userID,
		Title:    title,
		Content:  content,
		Emotions: s.classify(ctx, userID, content),
	}
	saved, err := s.entries.CreateEntry(entry)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("сохранение записи: %w", err)
	}
	return saved, nil
}

// UpdateEntry обновляет запись. Эмоции пересчитываются только при
// изменении текста: разметка назначается один раз на содержимое.
func (s *Service) UpdateEntry(ctx context.Context, userID, entryID int64, title, content string) (domain.Entry, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" {
		return domain.Entry{}, domain.ErrEmptyTitle
	}
	if content == "" {
		return domain.Entry{}, domain.ErrEmptyContent
	}

	existing, err := s.entries.GetEntry(userID, entryID)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("чтение записи: %w", err)
	}

	existing.Title = title
	if content != existing.Content {
		existing.Content = content
		existing.Emotions = s.classify(ctx, userID, content)
	}

	saved, err := s.entries.UpdateEntry(existing)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("обновление записи: %w", err)
	}
	return saved, nil
}

// GetEntry возвращает запись пользователя по идентификатору.
func (s *Service) GetEntry(userID, entryID int64) (domain.Entry, error) {
	entry, err := s.entries.GetEntry(userID, entryID)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("чтение записи: %w", err)
	}
	return entry, nil
}

// ListEntries возвращает страницу записей пользователя.
func (s *Service) ListEntries(userID int64, limit, offset int) ([]domain.Entry, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	entries, err := s.entries.ListEntries(userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("список записей: %w", err)
	}
	return entries, nil
}

func (s *Service) classify(ctx context.Context, userID int64, content string) []domain.EmotionScore {
	emotions, err := s.classifier.Classify(ctx, content)
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", userID).Msg("journal: классификация эмоций не удалась")
		return nil
	}
	return emotions
}
