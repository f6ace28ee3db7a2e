package repository

import (
	"context"

	"github.com/coachdesk/coachdesk-backend/internal/models"
)

type ClientRepository struct {
	db DBTX
}

func NewClientRepository(db DBTX) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) Create(ctx context.Context, userID int64, coachID int64) (*models.Client, error) {
	query := `
		INSERT INTO clients (user_id, coach_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, coach_id)
		DO UPDATE SET user_id = clients.user_id
		RETURNING id, user_id, coach_id, created_at
	`

	var client models.Client
	err := r.db.QueryRow(ctx, query, userID, coachID).Scan(
		&client.ID,
		&client.UserID,
		&client.CoachID,
		&client.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *ClientRepository) GetByID(ctx context.Context, clientID int64) (*models.Client, error) {
	query := `
		SELECT id, user_id, coach_id, created_at
		FROM clients
		WHERE id = $1
	`

	var client models.Client
	err := r.db.QueryRow(ctx, query, clientID).Scan(
		&client.ID,
		&client.UserID,
		&client.CoachID,
		&client.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *ClientRepository) ListByCoachID(ctx context.Context, coachID int64) ([]models.ClientSummary, error) {
	query := `
		SELECT c.id, c.user_id, c.coach_id, c.created_at, u.name, u.email
		FROM clients c
		JOIN users u ON c.user_id = u.id
		WHERE c.coach_id = $1
		ORDER BY u.name ASC, c.id ASC
	`

	rows, err := r.db.Query(ctx, query, coachID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := make([]models.ClientSummary, 0)
	for rows.Next() {
		var client models.ClientSummary
		if err := rows.Scan(
			&client.ID,
			&client.UserID,
			&client.CoachID,
			&client.CreatedAt,
			&client.Name,
			&client.Email,
		); err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return clients, nil
}
