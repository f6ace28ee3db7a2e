package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/coachdesk/coachdesk-backend/internal/models"
	"github.com/coachdesk/coachdesk-backend/internal/repository"
)

type taskFullStore interface {
	Create(ctx context.Context, input repository.CreateTaskInput) (*models.Task, error)
	GetByID(ctx context.Context, taskID int64) (*models.Task, error)
	ListByCoachID(ctx context.Context, coachID int64) ([]models.Task, error)
	ListForClientUser(ctx context.Context, userID int64) ([]models.Task, error)
	UpdateStatusIfCurrent(ctx context.Context, taskID int64, currentStatus string, nextStatus string) (*models.Task, error)
}

type CreateTaskServiceInput struct {
	ClientID    int64
	Title       string
	Description *string
	DueDate     *time.Time
}

type TaskService struct {
	tasks   taskFullStore
	clients clientReader
}

func NewTaskService(tasks taskFullStore, clients clientReader) *TaskService {
	return &TaskService{tasks: tasks, clients: clients}
}

func (s *TaskService) CreateTask(
	ctx context.Context,
	coachID int64,
	role string,
	input CreateTaskServiceInput,
) (*models.Task, error) {
	if role != models.RoleCoach {
		return nil, ErrForbidden
	}

	title := strings.TrimSpace(input.Title)
	if input.ClientID <= 0 || title == "" {
		return nil, ErrInvalidInput
	}

	client, err := s.clients.GetByID(ctx, input.ClientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if client.CoachID != coachID {
		return nil, ErrForbidden
	}

	return s.tasks.Create(ctx, repository.CreateTaskInput{
		CoachID:     coachID,
		ClientID:    input.ClientID,
		Title:       title,
		Description: trimOptional(input.Description),
		DueDate:     input.DueDate,
	})
}

func (s *TaskService) ListTasks(ctx context.Context, actorID int64, role string) ([]models.Task, error) {
	switch role {
	case models.RoleCoach:
		return s.tasks.ListByCoachID(ctx, actorID)
	case models.RoleClient:
		return s.tasks.ListForClientUser(ctx, actorID)
	default:
		return nil, ErrForbidden
	}
}

// UpdateTaskStatus flips a task between pending and completed. The assigned
// client or the owning coach may do it; status moves via compare-and-swap so
// two simultaneous updates cannot both report success.
func (s *TaskService) UpdateTaskStatus(
	ctx context.Context,
	actorID int64,
	role string,
	taskID int64,
	nextStatus string,
) (*models.Task, error) {
	if taskID <= 0 {
		return nil, ErrInvalidInput
	}
	if nextStatus != models.TaskPending && nextStatus != models.TaskCompleted {
		return nil, ErrInvalidStatus
	}

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	switch role {
	case models.RoleCoach:
		if task.CoachID != actorID {
			return nil, ErrForbidden
		}
	case models.RoleClient:
		client, err := s.clients.GetByID(ctx, task.ClientID)
		if err != nil {
			return nil, err
		}
		if client.UserID != actorID {
			return nil, ErrForbidden
		}
	default:
		return nil, ErrForbidden
	}

	if task.Status == nextStatus {
		return task, nil
	}

	updated, err := s.tasks.UpdateStatusIfCurrent(ctx, taskID, task.Status, nextStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return updated, nil
}
