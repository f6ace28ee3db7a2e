package models

import "time"

const (
	ElementKindMessage  = "message"
	ElementKindTask     = "task"
	ElementKindDocument = "document"
)

const (
	EnrollmentEnrolled  = "enrolled"
	EnrollmentActive    = "active"
	EnrollmentPaused    = "paused"
	EnrollmentCompleted = "completed"
)

// ProgramTemplate is a coach-authored multi-week curriculum. Duration is in
// weeks; elements are scheduled at (week, day) offsets inside that window.
type ProgramTemplate struct {
	ID          int64     `json:"id"`
	CoachID     int64     `json:"coach_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Duration    int       `json:"duration"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ElementData carries the kind-specific payload of a template element. Message
// elements use Message, task elements use Description, document elements use
// Title and URL. Stored as JSONB.
type ElementData struct {
	Message     string `json:"message,omitempty"`
	Description string `json:"description,omitempty"`
	Title       string `json:"title,omitempty"`
	URL         string `json:"url,omitempty"`
	ResourceID  int64  `json:"resource_id,omitempty"`
}

type TemplateElement struct {
	ID            int64       `json:"id"`
	TemplateID    int64       `json:"template_id"`
	Kind          string      `json:"kind"`
	Title         string      `json:"title"`
	Week          int         `json:"week"`
	Day           int         `json:"day"`
	ScheduledTime string      `json:"scheduled_time"`
	Data          ElementData `json:"data"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

type TemplateDetail struct {
	ProgramTemplate
	Elements []TemplateElement `json:"elements"`
}

// Enrollment tracks one client's progress through one template.
// LastDeliveredDay is the high-water mark of the last program day processed by
// the delivery pipeline; it only moves backwards on an explicit restart.
type Enrollment struct {
	ID                int64      `json:"id"`
	TemplateID        int64      `json:"template_id"`
	ClientID          int64      `json:"client_id"`
	CoachID           int64      `json:"coach_id"`
	Status            string     `json:"status"`
	StartDate         *time.Time `json:"start_date"`
	LastDeliveredDay  int        `json:"last_delivered_day"`
	CompletedElements []int64    `json:"completed_elements"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// EnrollmentDetail joins template fields onto the enrollment so the delivery
// executor can check the program boundary with a single read and client-facing
// lists can show the program the enrollment belongs to.
type EnrollmentDetail struct {
	Enrollment
	TemplateName        string  `json:"template_name"`
	TemplateDescription *string `json:"template_description,omitempty"`
	TemplateDuration    int     `json:"template_duration"`
}

type EnrolledClient struct {
	EnrollmentID      int64      `json:"enrollment_id"`
	Status            string     `json:"status"`
	StartDate         *time.Time `json:"start_date"`
	LastDeliveredDay  int        `json:"last_delivered_day"`
	CompletedElements []int64    `json:"completed_elements"`
	EnrolledAt        time.Time  `json:"enrolled_at"`
	ClientID          int64      `json:"client_id"`
	ClientUserID      int64      `json:"client_user_id"`
	ClientName        string     `json:"client_name"`
	ClientEmail       string     `json:"client_email"`
	TotalElements     int        `json:"total_elements"`
}

type TemplateStats struct {
	TotalTemplates   int      `json:"total_templates"`
	AverageDuration  *float64 `json:"average_duration"`
	EnrolledClients  int      `json:"enrolled_clients"`
	CompletedClients int      `json:"completed_clients"`
}

func ValidEnrollmentStatus(status string) bool {
	switch status {
	case EnrollmentEnrolled, EnrollmentActive, EnrollmentPaused, EnrollmentCompleted:
		return true
	default:
		return false
	}
}

func ValidElementKind(kind string) bool {
	switch kind {
	case ElementKindMessage, ElementKindTask, ElementKindDocument:
		return true
	default:
		return false
	}
}
