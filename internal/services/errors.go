package services

import (
	"context"
	"errors"

	"github.com/coachdesk/coachdesk-backend/internal/models"
)

var (
	ErrForbidden              = errors.New("forbidden")
	ErrConflict               = errors.New("conflict")
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidStatus          = errors.New("invalid status")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrClientNotFound         = errors.New("client not found")
	ErrElementNotInTemplate   = errors.New("element not found in template")
	ErrTemplateInUse          = errors.New("template has enrollments in progress")
	ErrStorageUnavailable     = errors.New("storage service is not configured")
)

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type clientReader interface {
	GetByID(ctx context.Context, clientID int64) (*models.Client, error)
}

// canManageEnrollment reports whether the actor may mutate an enrollment:
// the owning coach or an admin, nobody else.
func canManageEnrollment(role string, actorID int64, coachID int64) bool {
	if role == models.RoleAdmin {
		return true
	}
	return role == models.RoleCoach && actorID == coachID
}
