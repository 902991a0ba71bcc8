package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"journal-insights/internal/domain"
)

// Service планирует ежедневную регенерацию сводок: находит активных
// владельцев и ставит по задаче в очередь. Никакого общего состояния
// с обработчиками запросов — вся координация через БД и очередь.
type Service struct {
	users domain.UserRepo
	tasks domain.ScheduleTaskRepo
	queue domain.SummaryQueue
	clock domain.Clock
	log   zerolog.Logger
}

// NewService создаёт планировщик.
func NewService(users domain.UserRepo, tasks domain.ScheduleTaskRepo, queue domain.SummaryQueue, clock domain.Clock, logger zerolog.Logger) *Service {
	return &Service{users: users, tasks: tasks, queue: queue, clock: clock, log: logger}
}

// PlanDaily ставит задачи генерации сводок для всех владельцев,
// писавших вчера. Ошибка одного владельца не блокирует остальных.
// Возвращает число поставленных задач.
func (s *Service) PlanDaily(ctx context.Context) (int, error) {
	today, err := s.clock.CurrentDate()
	if err != nil {
		return 0, fmt.Errorf("дата сервера БД: %w", err)
	}
	yesterday := today.AddDate(0, 0, -1)

	owners, err := s.users.ListActiveOwners(yesterday)
	if err != nil {
		return 0, fmt.Errorf("выборка активных владельцев: %w", err)
	}

	planned := 0
	for _, owner := range owners {
		acquired, err := s.tasks.AcquireScheduleTask(owner.ID, today)
		if err != nil {
			s.log.Error().Err(err).Int64("user_id", owner.ID).Msg("schedule: не удалось занять задачу")
			continue
		}
		if !acquired {
			// Другой процесс планировщика уже поставил задачу.
			continue
		}
		job := domain.SummaryJob{
			ID:          uuid.NewString(),
			UserID:      owner.ID,
			Date:        today,
			RequestedAt: time.Now().UTC(),
			Cause:       domain.SummaryCauseScheduled,
		}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			s.log.Error().Err(err).Int64("user_id", owner.ID).Msg("schedule: не удалось поставить задачу")
			continue
		}
		planned++
	}
	return planned, nil
}
