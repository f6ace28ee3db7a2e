package repository

import (
	"context"

	"github.com/coachdesk/coachdesk-backend/internal/models"
)

type CreateTemplateInput struct {
	CoachID     int64
	Name        string
	Description *string
	Duration    int
}

type CreateElementInput struct {
	Kind          string
	Title         string
	Week          int
	Day           int
	ScheduledTime string
	Data          models.ElementData
}

type TemplateRepository struct {
	db DBTX
}

func NewTemplateRepository(db DBTX) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) Create(
	ctx context.Context,
	input CreateTemplateInput,
) (*models.ProgramTemplate, error) {
	query := `
		INSERT INTO program_templates (coach_id, name, description, duration)
		VALUES ($1, $2, $3, $4)
		RETURNING id, coach_id, name, description, duration, created_at, updated_at
	`

	var template models.ProgramTemplate
	err := r.db.QueryRow(
		ctx,
		query,
		input.CoachID,
		input.Name,
		input.Description,
		input.Duration,
	).Scan(
		&template.ID,
		&template.CoachID,
		&template.Name,
		&template.Description,
		&template.Duration,
		&template.CreatedAt,
		&template.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &template, nil
}

func (r *TemplateRepository) CreateElement(
	ctx context.Context,
	templateID int64,
	input CreateElementInput,
) (*models.TemplateElement, error) {
	query := `
		INSERT INTO template_elements (template_id, kind, title, week, day, scheduled_time, element_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, template_id, kind, title, week, day, scheduled_time, element_data, created_at, updated_at
	`

	var element models.TemplateElement
	err := r.db.QueryRow(
		ctx,
		query,
		templateID,
		input.Kind,
		input.Title,
		input.Week,
		input.Day,
		input.ScheduledTime,
		input.Data,
	).Scan(
		&element.ID,
		&element.TemplateID,
		&element.Kind,
		&element.Title,
		&element.Week,
		&element.Day,
		&element.ScheduledTime,
		&element.Data,
		&element.CreatedAt,
		&element.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &element, nil
}

func (r *TemplateRepository) GetByID(ctx context.Context, templateID int64) (*models.ProgramTemplate, error) {
	query := `
		SELECT id, coach_id, name, description, duration, created_at, updated_at
		FROM program_templates
		WHERE id = $1
	`

	var template models.ProgramTemplate
	err := r.db.QueryRow(ctx, query, templateID).Scan(
		&template.ID,
		&template.CoachID,
		&template.Name,
		&template.Description,
		&template.Duration,
		&template.CreatedAt,
		&template.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &template, nil
}

func (r *TemplateRepository) ListByCoachID(
	ctx context.Context,
	coachID int64,
	limit int,
	offset int,
) ([]models.ProgramTemplate, error) {
	query := `
		SELECT id, coach_id, name, description, duration, created_at, updated_at
		FROM program_templates
		WHERE coach_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, coachID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := make([]models.ProgramTemplate, 0)
	for rows.Next() {
		var template models.ProgramTemplate
		if err := rows.Scan(
			&template.ID,
			&template.CoachID,
			&template.Name,
			&template.Description,
			&template.Duration,
			&template.CreatedAt,
			&template.UpdatedAt,
		); err != nil {
			return nil, err
		}
		templates = append(templates, template)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return templates, nil
}

func (r *TemplateRepository) ListElements(ctx context.Context, templateID int64) ([]models.TemplateElement, error) {
	query := `
		SELECT id, template_id, kind, title, week, day, scheduled_time, element_data, created_at, updated_at
		FROM template_elements
		WHERE template_id = $1
		ORDER BY week ASC, day ASC, id ASC
	`
	return r.listElements(ctx, query, templateID)
}

// ElementsForDay returns the elements scheduled at exactly (week, day). The
// delivery executor maps a program day onto this pair; days without elements
// return an empty slice.
func (r *TemplateRepository) ElementsForDay(
	ctx context.Context,
	templateID int64,
	week int,
	day int,
) ([]models.TemplateElement, error) {
	query := `
		SELECT id, template_id, kind, title, week, day, scheduled_time, element_data, created_at, updated_at
		FROM template_elements
		WHERE template_id = $1 AND week = $2 AND day = $3
		ORDER BY kind ASC, scheduled_time ASC, id ASC
	`
	return r.listElements(ctx, query, templateID, week, day)
}

func (r *TemplateRepository) ElementBelongsToTemplate(
	ctx context.Context,
	templateID int64,
	elementID int64,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM template_elements
			WHERE template_id = $1 AND id = $2
		)
	`
	var belongs bool
	if err := r.db.QueryRow(ctx, query, templateID, elementID).Scan(&belongs); err != nil {
		return false, err
	}
	return belongs, nil
}

func (r *TemplateRepository) Update(
	ctx context.Context,
	templateID int64,
	name string,
	description *string,
	duration int,
) (*models.ProgramTemplate, error) {
	query := `
		UPDATE program_templates
		SET name = $2, description = $3, duration = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING id, coach_id, name, description, duration, created_at, updated_at
	`

	var template models.ProgramTemplate
	err := r.db.QueryRow(ctx, query, templateID, name, description, duration).Scan(
		&template.ID,
		&template.CoachID,
		&template.Name,
		&template.Description,
		&template.Duration,
		&template.CreatedAt,
		&template.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &template, nil
}

func (r *TemplateRepository) DeleteElements(ctx context.Context, templateID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM template_elements WHERE template_id = $1`, templateID)
	return err
}

func (r *TemplateRepository) Delete(ctx context.Context, templateID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM program_templates WHERE id = $1`, templateID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *TemplateRepository) Stats(ctx context.Context, coachID int64) (*models.TemplateStats, error) {
	query := `
		SELECT
			COUNT(*),
			AVG(duration),
			(
				SELECT COUNT(DISTINCT e.client_id)
				FROM enrollments e
				WHERE e.coach_id = $1 AND e.status = 'enrolled'
			),
			(
				SELECT COUNT(DISTINCT e.client_id)
				FROM enrollments e
				WHERE e.coach_id = $1 AND e.status = 'completed'
			)
		FROM program_templates
		WHERE coach_id = $1
	`

	var stats models.TemplateStats
	err := r.db.QueryRow(ctx, query, coachID).Scan(
		&stats.TotalTemplates,
		&stats.AverageDuration,
		&stats.EnrolledClients,
		&stats.CompletedClients,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *TemplateRepository) listElements(
	ctx context.Context,
	query string,
	args ...any,
) ([]models.TemplateElement, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	elements := make([]models.TemplateElement, 0)
	for rows.Next() {
		var element models.TemplateElement
		if err := rows.Scan(
			&element.ID,
			&element.TemplateID,
			&element.Kind,
			&element.Title,
			&element.Week,
			&element.Day,
			&element.ScheduledTime,
			&element.Data,
			&element.CreatedAt,
			&element.UpdatedAt,
		); err != nil {
			return nil, err
		}
		elements = append(elements, element)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return elements, nil
}
