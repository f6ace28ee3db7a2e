package services

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/coachdesk/coachdesk-backend/internal/models"
	"github.com/coachdesk/coachdesk-backend/internal/repository"
)

type stubTaskStore struct {
	task       *models.Task
	getErr     error
	casResult  *models.Task
	casErr     error
	casFrom    string
	casTo      string
	casCalls   int
	lastCreate repository.CreateTaskInput
	created    *models.Task
}

func (s *stubTaskStore) Create(_ context.Context, input repository.CreateTaskInput) (*models.Task, error) {
	s.lastCreate = input
	return s.created, nil
}

func (s *stubTaskStore) GetByID(_ context.Context, _ int64) (*models.Task, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	copied := *s.task
	return &copied, nil
}

func (s *stubTaskStore) ListByCoachID(_ context.Context, _ int64) ([]models.Task, error) {
	return nil, nil
}

func (s *stubTaskStore) ListForClientUser(_ context.Context, _ int64) ([]models.Task, error) {
	return nil, nil
}

func (s *stubTaskStore) UpdateStatusIfCurrent(
	_ context.Context,
	_ int64,
	currentStatus string,
	nextStatus string,
) (*models.Task, error) {
	s.casCalls++
	s.casFrom = currentStatus
	s.casTo = nextStatus
	if s.casErr != nil {
		return nil, s.casErr
	}
	return s.casResult, nil
}

func pendingTask() *models.Task {
	return &models.Task{
		ID:       21,
		CoachID:  7,
		ClientID: 5,
		Title:    "Log meals",
		Status:   models.TaskPending,
	}
}

func TestCreateTaskRequiresOwnedClient(t *testing.T) {
	tasks := &stubTaskStore{created: pendingTask()}
	clients := &stubClientReader{client: &models.Client{ID: 5, UserID: 42, CoachID: 7}}
	service := NewTaskService(tasks, clients)

	task, err := service.CreateTask(context.Background(), 7, models.RoleCoach, CreateTaskServiceInput{
		ClientID: 5,
		Title:    "  Log meals  ",
	})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task == nil {
		t.Fatalf("expected created task")
	}
	if tasks.lastCreate.Title != "Log meals" {
		t.Fatalf("expected trimmed title, got %q", tasks.lastCreate.Title)
	}
	if tasks.lastCreate.CoachID != 7 || tasks.lastCreate.ClientID != 5 {
		t.Fatalf("unexpected create input: %+v", tasks.lastCreate)
	}
}

func TestCreateTaskRejectsForeignClient(t *testing.T) {
	tasks := &stubTaskStore{}
	clients := &stubClientReader{client: &models.Client{ID: 5, UserID: 42, CoachID: 99}}
	service := NewTaskService(tasks, clients)

	_, err := service.CreateTask(context.Background(), 7, models.RoleCoach, CreateTaskServiceInput{
		ClientID: 5,
		Title:    "Log meals",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestUpdateTaskStatusUsesObservedStatusForSwap(t *testing.T) {
	tasks := &stubTaskStore{
		task:      pendingTask(),
		casResult: &models.Task{ID: 21, Status: models.TaskCompleted},
	}
	clients := &stubClientReader{client: &models.Client{ID: 5, UserID: 42, CoachID: 7}}
	service := NewTaskService(tasks, clients)

	updated, err := service.UpdateTaskStatus(context.Background(), 42, models.RoleClient, 21, models.TaskCompleted)
	if err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}
	if updated.Status != models.TaskCompleted {
		t.Fatalf("expected completed, got %q", updated.Status)
	}
	if tasks.casFrom != models.TaskPending || tasks.casTo != models.TaskCompleted {
		t.Fatalf("unexpected swap: %q -> %q", tasks.casFrom, tasks.casTo)
	}
}

func TestUpdateTaskStatusNoopWhenAlreadyThere(t *testing.T) {
	tasks := &stubTaskStore{task: pendingTask()}
	clients := &stubClientReader{client: &models.Client{ID: 5, UserID: 42, CoachID: 7}}
	service := NewTaskService(tasks, clients)

	task, err := service.UpdateTaskStatus(context.Background(), 7, models.RoleCoach, 21, models.TaskPending)
	if err != nil {
		t.Fatalf("UpdateTaskStatus: %v", err)
	}
	if task.Status != models.TaskPending {
		t.Fatalf("expected pending, got %q", task.Status)
	}
	if tasks.casCalls != 0 {
		t.Fatalf("expected no swap for a no-op update, got %d", tasks.casCalls)
	}
}

func TestUpdateTaskStatusLostRaceReturnsConflict(t *testing.T) {
	tasks := &stubTaskStore{task: pendingTask(), casErr: pgx.ErrNoRows}
	clients := &stubClientReader{client: &models.Client{ID: 5, UserID: 42, CoachID: 7}}
	service := NewTaskService(tasks, clients)

	_, err := service.UpdateTaskStatus(context.Background(), 7, models.RoleCoach, 21, models.TaskCompleted)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestUpdateTaskStatusRejectsOtherCoach(t *testing.T) {
	tasks := &stubTaskStore{task: pendingTask()}
	service := NewTaskService(tasks, &stubClientReader{})

	_, err := service.UpdateTaskStatus(context.Background(), 99, models.RoleCoach, 21, models.TaskCompleted)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if tasks.casCalls != 0 {
		t.Fatalf("expected no swap after authorization failure")
	}
}

func TestUpdateTaskStatusRejectsUnknownStatus(t *testing.T) {
	service := NewTaskService(&stubTaskStore{task: pendingTask()}, &stubClientReader{})

	_, err := service.UpdateTaskStatus(context.Background(), 7, models.RoleCoach, 21, "archived")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}
