package domain

import (
	"context"
	"time"
)

// SummaryJobCause описывает источник задачи генерации сводки.
type SummaryJobCause string

const (
	// SummaryCauseScheduled — задача поставлена планировщиком.
	SummaryCauseScheduled SummaryJobCause = "scheduled"
	// SummaryCauseManual — регенерация запрошена вручную.
	SummaryCauseManual SummaryJobCause = "manual"
)

// SummaryJob — задача на генерацию сводки для одного пользователя.
type SummaryJob struct {
	ID          string          `json:"job_id,omitempty"`
	UserID      int64           `json:"user_id"`
	Date        time.Time       `json:"date"`
	RequestedAt time.Time       `json:"requested_at"`
	Cause       SummaryJobCause `json:"cause"`
}

// SummaryQueue описывает очередь задач генерации сводок.
type SummaryQueue interface {
	Enqueue(ctx context.Context, job SummaryJob) error
	Pop(ctx context.Context) (SummaryJob, error)
}

// ScheduleTaskRepo отвечает за идемпотентное планирование задач.
type ScheduleTaskRepo interface {
	// AcquireScheduleTask помечает запуск задачи на указанный день и
	// возвращает true, если запись была создана. При конфликте
	// возвращает false без ошибки.
	AcquireScheduleTask(userID int64, scheduledFor time.Time) (bool, error)
}
