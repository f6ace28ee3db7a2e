package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/coachdesk/coachdesk-backend/internal/models"
)

const (
	ReasonNotActive        = "enrollment not active"
	ReasonAlreadyDelivered = "already delivered"
	ReasonDurationExceeded = "program duration exceeded"
	ReasonNoElements       = "no elements for this day"
)

// DeliveryCandidate is one enrollment the selector found due for delivery.
// The executor re-fetches the enrollment before acting on it.
type DeliveryCandidate struct {
	EnrollmentID int64
	ProgramDay   int
}

type ArtifactRef struct {
	Kind string `json:"kind"`
	ID   int64  `json:"id"`
}

type ElementFailure struct {
	ElementID int64  `json:"element_id"`
	Kind      string `json:"kind"`
	Error     string `json:"error"`
}

// DeliveryResult is the per-enrollment outcome of one delivery pass. It is
// never persisted; the cron trigger aggregates these into its response.
type DeliveryResult struct {
	Delivered       bool             `json:"delivered"`
	Reason          string           `json:"reason,omitempty"`
	ProgramDay      int              `json:"program_day"`
	Artifacts       []ArtifactRef    `json:"artifacts,omitempty"`
	ElementFailures []ElementFailure `json:"element_failures,omitempty"`
}

type DeliveryError struct {
	EnrollmentID int64  `json:"enrollment_id"`
	ProgramDay   int    `json:"program_day"`
	Error        string `json:"error"`
}

type DeliveryRunSummary struct {
	RunID     string          `json:"run_id"`
	Date      string          `json:"date"`
	Processed int             `json:"processed"`
	Delivered int             `json:"delivered"`
	Skipped   int             `json:"skipped"`
	Errors    []DeliveryError `json:"errors"`
}

type deliveryEnrollmentStore interface {
	ListActiveStarted(ctx context.Context, date time.Time) ([]models.EnrollmentDetail, error)
	GetDetailByID(ctx context.Context, enrollmentID int64) (*models.EnrollmentDetail, error)
	UpdateStatusIfCurrent(ctx context.Context, enrollmentID int64, currentStatus string, nextStatus string) (*models.Enrollment, error)
	AdvanceCursor(ctx context.Context, enrollmentID int64, programDay int) (bool, error)
}

type elementCatalog interface {
	ElementsForDay(ctx context.Context, templateID int64, week int, day int) ([]models.TemplateElement, error)
}

// Materializer turns one template element into a concrete per-client artifact.
// One implementation exists per element kind; a failure in one element never
// blocks its siblings for the same day.
type Materializer interface {
	Kind() string
	Materialize(ctx context.Context, enrollment *models.EnrollmentDetail, element models.TemplateElement, programDay int) (ArtifactRef, error)
}

type DeliveryService struct {
	enrollments   deliveryEnrollmentStore
	elements      elementCatalog
	materializers map[string]Materializer
	logger        *zap.Logger
}

func NewDeliveryService(
	enrollments deliveryEnrollmentStore,
	elements elementCatalog,
	materializers []Materializer,
	logger *zap.Logger,
) *DeliveryService {
	byKind := make(map[string]Materializer, len(materializers))
	for _, m := range materializers {
		byKind[m.Kind()] = m
	}
	return &DeliveryService{
		enrollments:   enrollments,
		elements:      elements,
		materializers: byKind,
		logger:        logger,
	}
}

// EnrollmentsDueOn returns one candidate per active enrollment whose delivery
// cursor is behind the program day computed for the given date. Enrollments
// past their program duration stay in the list so the executor can transition
// them to completed. Pure read, no side effects.
func (s *DeliveryService) EnrollmentsDueOn(ctx context.Context, date time.Time) ([]DeliveryCandidate, error) {
	today := TruncateToDay(date)

	enrollments, err := s.enrollments.ListActiveStarted(ctx, today)
	if err != nil {
		return nil, err
	}

	candidates := make([]DeliveryCandidate, 0, len(enrollments))
	for _, enrollment := range enrollments {
		if enrollment.StartDate == nil {
			continue
		}
		programDay := ProgramDay(*enrollment.StartDate, today)
		if programDay < 1 || enrollment.LastDeliveredDay >= programDay {
			continue
		}
		candidates = append(candidates, DeliveryCandidate{
			EnrollmentID: enrollment.ID,
			ProgramDay:   programDay,
		})
	}

	return candidates, nil
}

// DeliverProgramElements materializes the elements scheduled for exactly the
// given program day. Days skipped between the cursor and the current program
// day are not backfilled. The cursor advance is a conditional update, so a
// concurrent pass for the same day resolves to exactly one winner.
func (s *DeliveryService) DeliverProgramElements(
	ctx context.Context,
	enrollmentID int64,
	programDay int,
	date time.Time,
) (*DeliveryResult, error) {
	if enrollmentID <= 0 || programDay < 1 {
		return nil, ErrInvalidInput
	}

	// Fresh read: the selection may be stale by the time this runs.
	enrollment, err := s.enrollments.GetDetailByID(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	result := &DeliveryResult{ProgramDay: programDay}

	if enrollment.Status != models.EnrollmentActive {
		result.Reason = ReasonNotActive
		return result, nil
	}
	if enrollment.LastDeliveredDay >= programDay {
		result.Reason = ReasonAlreadyDelivered
		return result, nil
	}

	if programDay > enrollment.TemplateDuration*7 {
		if _, err := s.enrollments.UpdateStatusIfCurrent(
			ctx, enrollmentID, models.EnrollmentActive, models.EnrollmentCompleted,
		); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		result.Reason = ReasonDurationExceeded
		return result, nil
	}

	week, day := WeekAndDay(programDay)
	elements, err := s.elements.ElementsForDay(ctx, enrollment.TemplateID, week, day)
	if err != nil {
		return nil, err
	}

	for _, element := range elements {
		materializer, ok := s.materializers[element.Kind]
		if !ok {
			result.ElementFailures = append(result.ElementFailures, ElementFailure{
				ElementID: element.ID,
				Kind:      element.Kind,
				Error:     fmt.Sprintf("no materializer for kind %q", element.Kind),
			})
			continue
		}

		artifact, err := materializer.Materialize(ctx, enrollment, element, programDay)
		if err != nil {
			s.logger.Warn("element materialization failed",
				zap.Int64("enrollment_id", enrollmentID),
				zap.Int64("element_id", element.ID),
				zap.String("kind", element.Kind),
				zap.Error(err),
			)
			result.ElementFailures = append(result.ElementFailures, ElementFailure{
				ElementID: element.ID,
				Kind:      element.Kind,
				Error:     err.Error(),
			})
			continue
		}
		result.Artifacts = append(result.Artifacts, artifact)
	}

	advanced, err := s.enrollments.AdvanceCursor(ctx, enrollmentID, programDay)
	if err != nil {
		return nil, err
	}
	if !advanced {
		// A concurrent run advanced the cursor between our read and write.
		result.Reason = ReasonAlreadyDelivered
		result.Artifacts = nil
		return result, nil
	}

	if len(elements) == 0 {
		result.Reason = ReasonNoElements
		return result, nil
	}

	result.Delivered = true
	return result, nil
}

// RunDailyDelivery is the scheduled trigger body: select due enrollments, then
// execute each sequentially, collecting aggregate counts. A failing enrollment
// is recorded and the run moves on; its cursor has not moved, so the next run
// picks it up again.
func (s *DeliveryService) RunDailyDelivery(ctx context.Context, date time.Time) (*DeliveryRunSummary, error) {
	today := TruncateToDay(date)

	summary := &DeliveryRunSummary{
		RunID:  uuid.NewString(),
		Date:   today.Format("2006-01-02"),
		Errors: make([]DeliveryError, 0),
	}

	candidates, err := s.EnrollmentsDueOn(ctx, today)
	if err != nil {
		return nil, err
	}

	s.logger.Info("daily program delivery started",
		zap.String("run_id", summary.RunID),
		zap.String("date", summary.Date),
		zap.Int("candidates", len(candidates)),
	)

	for _, candidate := range candidates {
		summary.Processed++

		result, err := s.DeliverProgramElements(ctx, candidate.EnrollmentID, candidate.ProgramDay, today)
		if err != nil {
			s.logger.Error("enrollment delivery failed",
				zap.String("run_id", summary.RunID),
				zap.Int64("enrollment_id", candidate.EnrollmentID),
				zap.Int("program_day", candidate.ProgramDay),
				zap.Error(err),
			)
			summary.Errors = append(summary.Errors, DeliveryError{
				EnrollmentID: candidate.EnrollmentID,
				ProgramDay:   candidate.ProgramDay,
				Error:        err.Error(),
			})
			continue
		}

		if result.Delivered {
			summary.Delivered++
		} else {
			summary.Skipped++
		}
		for _, failure := range result.ElementFailures {
			summary.Errors = append(summary.Errors, DeliveryError{
				EnrollmentID: candidate.EnrollmentID,
				ProgramDay:   candidate.ProgramDay,
				Error:        fmt.Sprintf("element %d (%s): %s", failure.ElementID, failure.Kind, failure.Error),
			})
		}
	}

	s.logger.Info("daily program delivery finished",
		zap.String("run_id", summary.RunID),
		zap.Int("processed", summary.Processed),
		zap.Int("delivered", summary.Delivered),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", len(summary.Errors)),
	)

	return summary, nil
}
