package repository

import (
	"context"
	"time"

	"github.com/coachdesk/coachdesk-backend/internal/models"
)

type CreateTaskInput struct {
	CoachID         int64
	ClientID        int64
	Title           string
	Description     *string
	DueDate         *time.Time
	SourceElementID *int64
}

type TaskRepository struct {
	db DBTX
}

func NewTaskRepository(db DBTX) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	query := `
		INSERT INTO tasks (coach_id, client_id, title, description, due_date, status, source_element_id)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6)
		RETURNING id, coach_id, client_id, title, description, due_date, status, source_element_id, created_at, updated_at
	`

	var task models.Task
	err := r.db.QueryRow(
		ctx,
		query,
		input.CoachID,
		input.ClientID,
		input.Title,
		input.Description,
		input.DueDate,
		input.SourceElementID,
	).Scan(
		&task.ID,
		&task.CoachID,
		&task.ClientID,
		&task.Title,
		&task.Description,
		&task.DueDate,
		&task.Status,
		&task.SourceElementID,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) GetByID(ctx context.Context, taskID int64) (*models.Task, error) {
	query := `
		SELECT id, coach_id, client_id, title, description, due_date, status, source_element_id, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`

	var task models.Task
	err := r.db.QueryRow(ctx, query, taskID).Scan(
		&task.ID,
		&task.CoachID,
		&task.ClientID,
		&task.Title,
		&task.Description,
		&task.DueDate,
		&task.Status,
		&task.SourceElementID,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) ListByCoachID(ctx context.Context, coachID int64) ([]models.Task, error) {
	query := `
		SELECT id, coach_id, client_id, title, description, due_date, status, source_element_id, created_at, updated_at
		FROM tasks
		WHERE coach_id = $1
		ORDER BY created_at DESC, id DESC
	`
	return r.list(ctx, query, coachID)
}

// ListForClientUser resolves tasks through the clients table: a user may be a
// client of more than one coach and sees all of their assignments.
func (r *TaskRepository) ListForClientUser(ctx context.Context, userID int64) ([]models.Task, error) {
	query := `
		SELECT t.id, t.coach_id, t.client_id, t.title, t.description, t.due_date, t.status, t.source_element_id, t.created_at, t.updated_at
		FROM tasks t
		JOIN clients c ON t.client_id = c.id
		WHERE c.user_id = $1
		ORDER BY t.created_at DESC, t.id DESC
	`
	return r.list(ctx, query, userID)
}

func (r *TaskRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	taskID int64,
	currentStatus string,
	nextStatus string,
) (*models.Task, error) {
	query := `
		UPDATE tasks
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING id, coach_id, client_id, title, description, due_date, status, source_element_id, created_at, updated_at
	`

	var task models.Task
	err := r.db.QueryRow(ctx, query, taskID, currentStatus, nextStatus).Scan(
		&task.ID,
		&task.CoachID,
		&task.ClientID,
		&task.Title,
		&task.Description,
		&task.DueDate,
		&task.Status,
		&task.SourceElementID,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) list(ctx context.Context, query string, actorID int64) ([]models.Task, error) {
	rows, err := r.db.Query(ctx, query, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]models.Task, 0)
	for rows.Next() {
		var task models.Task
		if err := rows.Scan(
			&task.ID,
			&task.CoachID,
			&task.ClientID,
			&task.Title,
			&task.Description,
			&task.DueDate,
			&task.Status,
			&task.SourceElementID,
			&task.CreatedAt,
			&task.UpdatedAt,
		); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tasks, nil
}
