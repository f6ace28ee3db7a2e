package repository

import (
	"context"
	"time"

	"github.com/coachdesk/coachdesk-backend/internal/models"
)

const enrollmentColumns = `id, template_id, client_id, coach_id, status, start_date,
		last_delivered_day, completed_elements, created_at, updated_at`

type EnrollmentRepository struct {
	db DBTX
}

func NewEnrollmentRepository(db DBTX) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) Create(
	ctx context.Context,
	templateID int64,
	clientID int64,
	coachID int64,
) (*models.Enrollment, error) {
	query := `
		INSERT INTO enrollments (template_id, client_id, coach_id, status, completed_elements, start_date)
		VALUES ($1, $2, $3, 'enrolled', '{}', NULL)
		RETURNING ` + enrollmentColumns

	return r.scanOne(r.db.QueryRow(ctx, query, templateID, clientID, coachID))
}

func (r *EnrollmentRepository) Exists(
	ctx context.Context,
	templateID int64,
	clientID int64,
) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM enrollments
			WHERE template_id = $1 AND client_id = $2
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, templateID, clientID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *EnrollmentRepository) GetByID(ctx context.Context, enrollmentID int64) (*models.Enrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, enrollmentID))
}

// GetDetailByID joins the template so one read carries both the enrollment
// state and the program boundary (duration in weeks).
func (r *EnrollmentRepository) GetDetailByID(ctx context.Context, enrollmentID int64) (*models.EnrollmentDetail, error) {
	query := `
		SELECT e.id, e.template_id, e.client_id, e.coach_id, e.status, e.start_date,
			e.last_delivered_day, e.completed_elements, e.created_at, e.updated_at,
			t.name, t.description, t.duration
		FROM enrollments e
		JOIN program_templates t ON e.template_id = t.id
		WHERE e.id = $1
	`

	var detail models.EnrollmentDetail
	err := r.db.QueryRow(ctx, query, enrollmentID).Scan(
		&detail.ID,
		&detail.TemplateID,
		&detail.ClientID,
		&detail.CoachID,
		&detail.Status,
		&detail.StartDate,
		&detail.LastDeliveredDay,
		&detail.CompletedElements,
		&detail.CreatedAt,
		&detail.UpdatedAt,
		&detail.TemplateName,
		&detail.TemplateDescription,
		&detail.TemplateDuration,
	)
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListActiveStarted returns every active enrollment whose program has begun on
// or before the given date. The delivery selector computes program days from
// the returned start dates; this query takes no position on them.
func (r *EnrollmentRepository) ListActiveStarted(
	ctx context.Context,
	date time.Time,
) ([]models.EnrollmentDetail, error) {
	query := `
		SELECT e.id, e.template_id, e.client_id, e.coach_id, e.status, e.start_date,
			e.last_delivered_day, e.completed_elements, e.created_at, e.updated_at,
			t.name, t.description, t.duration
		FROM enrollments e
		JOIN program_templates t ON e.template_id = t.id
		WHERE e.status = 'active'
		  AND e.start_date IS NOT NULL
		  AND e.start_date <= $1
		ORDER BY e.id ASC
	`
	return r.listDetails(ctx, query, date)
}

func (r *EnrollmentRepository) ListByClientID(
	ctx context.Context,
	clientID int64,
	coachID int64,
) ([]models.EnrollmentDetail, error) {
	query := `
		SELECT e.id, e.template_id, e.client_id, e.coach_id, e.status, e.start_date,
			e.last_delivered_day, e.completed_elements, e.created_at, e.updated_at,
			t.name, t.description, t.duration
		FROM enrollments e
		JOIN program_templates t ON e.template_id = t.id
		WHERE e.client_id = $1 AND e.coach_id = $2
		ORDER BY e.created_at DESC, e.id DESC
	`
	return r.listDetails(ctx, query, clientID, coachID)
}

func (r *EnrollmentRepository) ListEnrolledForTemplate(
	ctx context.Context,
	templateID int64,
	coachID int64,
) ([]models.EnrolledClient, error) {
	query := `
		SELECT
			e.id,
			e.status,
			e.start_date,
			e.last_delivered_day,
			e.completed_elements,
			e.created_at,
			c.id,
			c.user_id,
			u.name,
			u.email,
			(SELECT COUNT(*) FROM template_elements te WHERE te.template_id = e.template_id)
		FROM enrollments e
		JOIN clients c ON e.client_id = c.id
		JOIN users u ON c.user_id = u.id
		WHERE e.template_id = $1 AND e.coach_id = $2
		ORDER BY e.created_at DESC, e.id DESC
	`

	rows, err := r.db.Query(ctx, query, templateID, coachID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	enrolled := make([]models.EnrolledClient, 0)
	for rows.Next() {
		var entry models.EnrolledClient
		if err := rows.Scan(
			&entry.EnrollmentID,
			&entry.Status,
			&entry.StartDate,
			&entry.LastDeliveredDay,
			&entry.CompletedElements,
			&entry.EnrolledAt,
			&entry.ClientID,
			&entry.ClientUserID,
			&entry.ClientName,
			&entry.ClientEmail,
			&entry.TotalElements,
		); err != nil {
			return nil, err
		}
		enrolled = append(enrolled, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return enrolled, nil
}

func (r *EnrollmentRepository) HasActiveForTemplate(ctx context.Context, templateID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM enrollments
			WHERE template_id = $1 AND status <> 'enrolled'
		)
	`
	var inUse bool
	if err := r.db.QueryRow(ctx, query, templateID).Scan(&inUse); err != nil {
		return false, err
	}
	return inUse, nil
}

// MarkElementComplete adds the element to the completed set. Repeat calls keep
// the set unchanged, so the statement always returns the row.
func (r *EnrollmentRepository) MarkElementComplete(
	ctx context.Context,
	enrollmentID int64,
	elementID int64,
) (*models.Enrollment, error) {
	query := `
		UPDATE enrollments
		SET completed_elements = CASE
				WHEN completed_elements @> ARRAY[$2]::bigint[] THEN completed_elements
				ELSE array_append(completed_elements, $2)
			END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + enrollmentColumns

	return r.scanOne(r.db.QueryRow(ctx, query, enrollmentID, elementID))
}

func (r *EnrollmentRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	enrollmentID int64,
	currentStatus string,
	nextStatus string,
) (*models.Enrollment, error) {
	query := `
		UPDATE enrollments
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + enrollmentColumns

	return r.scanOne(r.db.QueryRow(ctx, query, enrollmentID, currentStatus, nextStatus))
}

func (r *EnrollmentRepository) StartIfEnrolled(
	ctx context.Context,
	enrollmentID int64,
	startDate time.Time,
) (*models.Enrollment, error) {
	query := `
		UPDATE enrollments
		SET status = 'active', start_date = $2, last_delivered_day = 0, updated_at = NOW()
		WHERE id = $1 AND status = 'enrolled' AND start_date IS NULL
		RETURNING ` + enrollmentColumns

	return r.scanOne(r.db.QueryRow(ctx, query, enrollmentID, startDate))
}

func (r *EnrollmentRepository) Restart(
	ctx context.Context,
	enrollmentID int64,
	startDate time.Time,
) (*models.Enrollment, error) {
	query := `
		UPDATE enrollments
		SET status = 'active', start_date = $2, last_delivered_day = 0,
			completed_elements = '{}', updated_at = NOW()
		WHERE id = $1 AND status <> 'enrolled'
		RETURNING ` + enrollmentColumns

	return r.scanOne(r.db.QueryRow(ctx, query, enrollmentID, startDate))
}

// AdvanceCursor moves last_delivered_day forward only if it is still behind
// the given program day. A false return means a concurrent delivery pass got
// there first and this one must not record the day as delivered.
func (r *EnrollmentRepository) AdvanceCursor(
	ctx context.Context,
	enrollmentID int64,
	programDay int,
) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE enrollments
		SET last_delivered_day = $2, updated_at = NOW()
		WHERE id = $1 AND last_delivered_day < $2
	`, enrollmentID, programDay)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *EnrollmentRepository) scanOne(row interface{ Scan(dest ...any) error }) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := row.Scan(
		&enrollment.ID,
		&enrollment.TemplateID,
		&enrollment.ClientID,
		&enrollment.CoachID,
		&enrollment.Status,
		&enrollment.StartDate,
		&enrollment.LastDeliveredDay,
		&enrollment.CompletedElements,
		&enrollment.CreatedAt,
		&enrollment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *EnrollmentRepository) listDetails(
	ctx context.Context,
	query string,
	args ...any,
) ([]models.EnrollmentDetail, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := make([]models.EnrollmentDetail, 0)
	for rows.Next() {
		var detail models.EnrollmentDetail
		if err := rows.Scan(
			&detail.ID,
			&detail.TemplateID,
			&detail.ClientID,
			&detail.CoachID,
			&detail.Status,
			&detail.StartDate,
			&detail.LastDeliveredDay,
			&detail.CompletedElements,
			&detail.CreatedAt,
			&detail.UpdatedAt,
			&detail.TemplateName,
			&detail.TemplateDescription,
			&detail.TemplateDuration,
		); err != nil {
			return nil, err
		}
		details = append(details, detail)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return details, nil
}
