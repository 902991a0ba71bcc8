package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"journal-insights/internal/domain"
)

type stubUsers struct {
	owners []domain.User
}

func (s *stubUsers) UpsertBySubject(domain.Identity) (domain.User, bool, error) {
	return domain.User{}, false, nil
}
func (s *stubUsers) GetBySubject(string) (domain.User, error) { return domain.User{}, nil }
func (s *stubUsers) ListActiveOwners(time.Time) ([]domain.User, error) {
	return s.owners, nil
}
func (s *stubUsers) DeleteUserData(int64) error { return nil }

type stubTasks struct {
	denied map[int64]bool
}

func (s *stubTasks) AcquireScheduleTask(userID int64, _ time.Time) (bool, error) {
	return !s.denied[userID], nil
}

type stubQueue struct {
	failFor int64
	jobs    []domain.SummaryJob
}

func (s *stubQueue) Enqueue(_ context.Context, job domain.SummaryJob) error {
	if job.UserID == s.failFor {
		return errors.New("queue down")
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *stubQueue) Pop(context.Context) (domain.SummaryJob, error) {
	return domain.SummaryJob{}, errors.New("not implemented")
}

type stubClock struct{}

func (s *stubClock) CurrentDate() (time.Time, error) {
	y, m, d := time.Now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

func TestPlanDailyEnqueuesActiveOwners(t *testing.T) {
	users := &stubUsers{owners: []domain.User{{ID: 1}, {ID: 2}, {ID: 3}}}
	queue := &stubQueue{}
	service := NewService(users, &stubTasks{}, queue, &stubClock{}, zerolog.Nop())

	planned, err := service.PlanDaily(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if planned != 3 || len(queue.jobs) != 3 {
		t.Fatalf("ожидали 3 задачи, получили %d", len(queue.jobs))
	}
	for _, job := range queue.jobs {
		if job.Cause != domain.SummaryCauseScheduled {
			t.Fatalf("задачи планировщика должны помечаться как scheduled")
		}
		if job.ID == "" {
			t.Fatalf("задача должна получить идентификатор")
		}
	}
}

func TestPlanDailySkipsAcquiredTasks(t *testing.T) {
	users := &stubUsers{owners: []domain.User{{ID: 1}, {ID: 2}}}
	queue := &stubQueue{}
	service := NewService(users, &stubTasks{denied: map[int64]bool{1: true}}, queue, &stubClock{}, zerolog.Nop())

	planned, err := service.PlanDaily(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if planned != 1 || len(queue.jobs) != 1 || queue.jobs[0].UserID != 2 {
		t.Fatalf("уже занятые задачи должны пропускаться")
	}
}

func TestPlanDailyOneFailureDoesNotBlockOthers(t *testing.T) {
	users := &stubUsers{owners: []domain.User{{ID: 1}, {ID: 2}, {ID: 3}}}
	queue := &stubQueue{failFor: 2}
	service := NewService(users, &stubTasks{}, queue, &stubClock{}, zerolog.Nop())

	planned, err := service.PlanDaily(context.Background())
	if err != nil {
		t.Fatalf("ошибка одного владельца не должна останавливать план: %v", err)
	}
	if planned != 2 || len(queue.jobs) != 2 {
		t.Fatalf("ожидали 2 успешные задачи, получили %d", len(queue.jobs))
	}
}
