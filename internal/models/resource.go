package models

import "time"

// Resource is a coach-owned library item (uploaded file or external link).
type Resource struct {
	ID        int64     `json:"id"`
	CoachID   int64     `json:"coach_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	FileName  *string   `json:"file_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ResourceShare makes a resource visible to one client. Created manually by the
// coach or by the document materializer during program delivery.
type ResourceShare struct {
	ID         int64     `json:"id"`
	ResourceID int64     `json:"resource_id"`
	ClientID   int64     `json:"client_id"`
	SharedBy   int64     `json:"shared_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// SharedResource is a share joined with its resource for client-facing lists.
type SharedResource struct {
	ResourceShare
	Title string `json:"title"`
	URL   string `json:"url"`
}
