package models

import "time"

const (
	TaskPending   = "pending"
	TaskCompleted = "completed"
)

// Task is assigned by a coach to a client, either directly or by the program
// delivery pipeline. SourceElementID is set when a template element created it.
type Task struct {
	ID              int64      `json:"id"`
	CoachID         int64      `json:"coach_id"`
	ClientID        int64      `json:"client_id"`
	Title           string     `json:"title"`
	Description     *string    `json:"description,omitempty"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	Status          string     `json:"status"`
	SourceElementID *int64     `json:"source_element_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
