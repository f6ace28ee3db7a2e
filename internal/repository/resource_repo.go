package repository

import (
	"context"

	"github.com/coachdesk/coachdesk-backend/internal/models"
)

type CreateResourceInput struct {
	CoachID  int64
	Title    string
	URL      string
	FileName *string
}

type ResourceRepository struct {
	db DBTX
}

func NewResourceRepository(db DBTX) *ResourceRepository {
	return &ResourceRepository{db: db}
}

func (r *ResourceRepository) Create(ctx context.Context, input CreateResourceInput) (*models.Resource, error) {
	query := `
		INSERT INTO resources (coach_id, title, url, file_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, coach_id, title, url, file_name, created_at
	`

	var resource models.Resource
	err := r.db.QueryRow(ctx, query, input.CoachID, input.Title, input.URL, input.FileName).Scan(
		&resource.ID,
		&resource.CoachID,
		&resource.Title,
		&resource.URL,
		&resource.FileName,
		&resource.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &resource, nil
}

func (r *ResourceRepository) ListByCoachID(ctx context.Context, coachID int64) ([]models.Resource, error) {
	query := `
		SELECT id, coach_id, title, url, file_name, created_at
		FROM resources
		WHERE coach_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Query(ctx, query, coachID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resources := make([]models.Resource, 0)
	for rows.Next() {
		var resource models.Resource
		if err := rows.Scan(
			&resource.ID,
			&resource.CoachID,
			&resource.Title,
			&resource.URL,
			&resource.FileName,
			&resource.CreatedAt,
		); err != nil {
			return nil, err
		}
		resources = append(resources, resource)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return resources, nil
}

// Share makes a resource visible to a client. Re-sharing is a no-op so the
// document materializer can run idempotently.
func (r *ResourceRepository) Share(
	ctx context.Context,
	resourceID int64,
	clientID int64,
	sharedBy int64,
) (*models.ResourceShare, error) {
	query := `
		INSERT INTO resource_shares (resource_id, client_id, shared_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (resource_id, client_id)
		DO UPDATE SET shared_by = resource_shares.shared_by
		RETURNING id, resource_id, client_id, shared_by, created_at
	`

	var share models.ResourceShare
	err := r.db.QueryRow(ctx, query, resourceID, clientID, sharedBy).Scan(
		&share.ID,
		&share.ResourceID,
		&share.ClientID,
		&share.SharedBy,
		&share.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &share, nil
}

// ListSharedWithUser resolves shares through the clients table so a user sees
// every resource shared with any of their client relationships.
func (r *ResourceRepository) ListSharedWithUser(
	ctx context.Context,
	userID int64,
) ([]models.SharedResource, error) {
	query := `
		SELECT s.id, s.resource_id, s.client_id, s.shared_by, s.created_at, res.title, res.url
		FROM resource_shares s
		JOIN clients c ON s.client_id = c.id
		JOIN resources res ON s.resource_id = res.id
		WHERE c.user_id = $1
		ORDER BY s.created_at DESC, s.id DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shared := make([]models.SharedResource, 0)
	for rows.Next() {
		var entry models.SharedResource
		if err := rows.Scan(
			&entry.ID,
			&entry.ResourceID,
			&entry.ClientID,
			&entry.SharedBy,
			&entry.CreatedAt,
			&entry.Title,
			&entry.URL,
		); err != nil {
			return nil, err
		}
		shared = append(shared, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return shared, nil
}

func (r *ResourceRepository) GetByID(ctx context.Context, resourceID int64) (*models.Resource, error) {
	query := `
		SELECT id, coach_id, title, url, file_name, created_at
		FROM resources
		WHERE id = $1
	`

	var resource models.Resource
	err := r.db.QueryRow(ctx, query, resourceID).Scan(
		&resource.ID,
		&resource.CoachID,
		&resource.Title,
		&resource.URL,
		&resource.FileName,
		&resource.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &resource, nil
}
