package models

import "time"

// Client links a platform user to the coach responsible for them. Enrollments,
// tasks and resource shares all reference the client row, not the user row.
type Client struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	CoachID   int64     `json:"coach_id"`
	CreatedAt time.Time `json:"created_at"`
}

type ClientSummary struct {
	Client
	Name  string `json:"name"`
	Email string `json:"email"`
}
