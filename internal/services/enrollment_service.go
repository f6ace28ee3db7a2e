package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/coachdesk/coachdesk-backend/internal/models"
)

type enrollmentStore interface {
	GetByID(ctx context.Context, enrollmentID int64) (*models.Enrollment, error)
	MarkElementComplete(ctx context.Context, enrollmentID int64, elementID int64) (*models.Enrollment, error)
	UpdateStatusIfCurrent(ctx context.Context, enrollmentID int64, currentStatus string, nextStatus string) (*models.Enrollment, error)
	StartIfEnrolled(ctx context.Context, enrollmentID int64, startDate time.Time) (*models.Enrollment, error)
	Restart(ctx context.Context, enrollmentID int64, startDate time.Time) (*models.Enrollment, error)
}

type elementMembership interface {
	ElementBelongsToTemplate(ctx context.Context, templateID int64, elementID int64) (bool, error)
}

type dayDeliverer interface {
	DeliverProgramElements(ctx context.Context, enrollmentID int64, programDay int, date time.Time) (*DeliveryResult, error)
}

// EnrollmentService is the progress tracker: it owns the enrollment lifecycle
// state machine and the completed-element set. Every operation takes the
// acting user explicitly; only the owning coach or an admin may mutate.
type EnrollmentService struct {
	enrollments enrollmentStore
	elements    elementMembership
	deliverer   dayDeliverer
	logger      *zap.Logger
	now         func() time.Time
}

func NewEnrollmentService(
	enrollments enrollmentStore,
	elements elementMembership,
	deliverer dayDeliverer,
	logger *zap.Logger,
) *EnrollmentService {
	return &EnrollmentService{
		enrollments: enrollments,
		elements:    elements,
		deliverer:   deliverer,
		logger:      logger,
		now:         time.Now,
	}
}

// MarkElementComplete adds the element to the enrollment's completed set.
// Repeated calls are no-ops.
func (s *EnrollmentService) MarkElementComplete(
	ctx context.Context,
	actorID int64,
	role string,
	enrollmentID int64,
	elementID int64,
) (*models.Enrollment, error) {
	if enrollmentID <= 0 || elementID <= 0 {
		return nil, ErrInvalidInput
	}

	enrollment, err := s.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if !canManageEnrollment(role, actorID, enrollment.CoachID) {
		return nil, ErrForbidden
	}

	belongs, err := s.elements.ElementBelongsToTemplate(ctx, enrollment.TemplateID, elementID)
	if err != nil {
		return nil, err
	}
	if !belongs {
		return nil, ErrElementNotInTemplate
	}

	return s.enrollments.MarkElementComplete(ctx, enrollmentID, elementID)
}

// UpdateStatus applies one step of the lifecycle state machine:
// active -> paused (pause), paused -> active (resume), active -> completed
// (explicit complete). enrolled leaves only via Start, completed only via
// Restart.
func (s *EnrollmentService) UpdateStatus(
	ctx context.Context,
	actorID int64,
	role string,
	enrollmentID int64,
	nextStatus string,
) (*models.Enrollment, error) {
	if enrollmentID <= 0 {
		return nil, ErrInvalidInput
	}
	if !models.ValidEnrollmentStatus(nextStatus) {
		return nil, ErrInvalidStatus
	}

	enrollment, err := s.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if !canManageEnrollment(role, actorID, enrollment.CoachID) {
		return nil, ErrForbidden
	}

	if !allowedTransition(enrollment.Status, nextStatus) {
		return nil, ErrInvalidStateTransition
	}

	updated, err := s.enrollments.UpdateStatusIfCurrent(ctx, enrollmentID, enrollment.Status, nextStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}
	return updated, nil
}

// Start moves an enrollment from enrolled to active and stamps the start
// date at today midnight UTC, making today program day 1. Day-1 content goes
// out immediately, best effort; a delivery failure does not undo the start
// because the daily trigger retries anything the cursor has not covered.
func (s *EnrollmentService) Start(
	ctx context.Context,
	actorID int64,
	role string,
	enrollmentID int64,
) (*models.Enrollment, error) {
	if enrollmentID <= 0 {
		return nil, ErrInvalidInput
	}

	enrollment, err := s.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if !canManageEnrollment(role, actorID, enrollment.CoachID) {
		return nil, ErrForbidden
	}

	startDate := TruncateToDay(s.now())
	started, err := s.enrollments.StartIfEnrolled(ctx, enrollmentID, startDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, err
	}

	if s.deliverer != nil {
		if result, err := s.deliverer.DeliverProgramElements(ctx, enrollmentID, 1, startDate); err != nil {
			s.logger.Warn("day 1 delivery failed after start",
				zap.Int64("enrollment_id", enrollmentID),
				zap.Error(err),
			)
		} else if !result.Delivered {
			s.logger.Info("day 1 delivery skipped after start",
				zap.Int64("enrollment_id", enrollmentID),
				zap.String("reason", result.Reason),
			)
		}
	}

	return started, nil
}

// Restart resets an enrollment to a fresh active run: cursor 0, empty
// completed set, start date now. Valid from any status except enrolled.
func (s *EnrollmentService) Restart(
	ctx context.Context,
	actorID int64,
	role string,
	enrollmentID int64,
) (*models.Enrollment, error) {
	if enrollmentID <= 0 {
		return nil, ErrInvalidInput
	}

	enrollment, err := s.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if !canManageEnrollment(role, actorID, enrollment.CoachID) {
		return nil, ErrForbidden
	}
	if enrollment.Status == models.EnrollmentEnrolled {
		return nil, ErrInvalidStateTransition
	}

	restarted, err := s.enrollments.Restart(ctx, enrollmentID, TruncateToDay(s.now()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}
	return restarted, nil
}

func allowedTransition(current string, next string) bool {
	switch current {
	case models.EnrollmentActive:
		return next == models.EnrollmentPaused || next == models.EnrollmentCompleted
	case models.EnrollmentPaused:
		return next == models.EnrollmentActive
	default:
		// enrolled leaves via Start, completed via Restart.
		return false
	}
}
