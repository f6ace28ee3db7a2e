package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/coachdesk/coachdesk-backend/internal/models"
)

type stubEnrollmentStore struct {
	enrollment *models.Enrollment
	getErr     error

	markedElement int64
	markErr       error

	casFrom string
	casTo   string
	casErr  error

	startedAt *time.Time
	startErr  error

	restartedAt *time.Time
	restartErr  error
}

func (s *stubEnrollmentStore) GetByID(_ context.Context, _ int64) (*models.Enrollment, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	copied := *s.enrollment
	return &copied, nil
}

func (s *stubEnrollmentStore) MarkElementComplete(_ context.Context, _ int64, elementID int64) (*models.Enrollment, error) {
	if s.markErr != nil {
		return nil, s.markErr
	}
	s.markedElement = elementID
	updated := *s.enrollment
	updated.CompletedElements = append(updated.CompletedElements, elementID)
	return &updated, nil
}

func (s *stubEnrollmentStore) UpdateStatusIfCurrent(_ context.Context, _ int64, current string, next string) (*models.Enrollment, error) {
	if s.casErr != nil {
		return nil, s.casErr
	}
	s.casFrom = current
	s.casTo = next
	updated := *s.enrollment
	updated.Status = next
	return &updated, nil
}

func (s *stubEnrollmentStore) StartIfEnrolled(_ context.Context, _ int64, startDate time.Time) (*models.Enrollment, error) {
	if s.startErr != nil {
		return nil, s.startErr
	}
	s.startedAt = &startDate
	updated := *s.enrollment
	updated.Status = models.EnrollmentActive
	updated.StartDate = &startDate
	updated.LastDeliveredDay = 0
	return &updated, nil
}

func (s *stubEnrollmentStore) Restart(_ context.Context, _ int64, startDate time.Time) (*models.Enrollment, error) {
	if s.restartErr != nil {
		return nil, s.restartErr
	}
	s.restartedAt = &startDate
	updated := *s.enrollment
	updated.Status = models.EnrollmentActive
	updated.StartDate = &startDate
	updated.LastDeliveredDay = 0
	updated.CompletedElements = nil
	return &updated, nil
}

type stubMembership struct {
	belongs bool
	err     error
}

func (s *stubMembership) ElementBelongsToTemplate(_ context.Context, _ int64, _ int64) (bool, error) {
	return s.belongs, s.err
}

type stubDayDeliverer struct {
	result *DeliveryResult
	err    error
	calls  []int
}

func (s *stubDayDeliverer) DeliverProgramElements(_ context.Context, _ int64, programDay int, _ time.Time) (*DeliveryResult, error) {
	s.calls = append(s.calls, programDay)
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &DeliveryResult{Delivered: true, ProgramDay: programDay}, nil
}

func enrollmentWithStatus(status string) *models.Enrollment {
	return &models.Enrollment{
		ID:         11,
		TemplateID: 3,
		ClientID:   5,
		CoachID:    7,
		Status:     status,
	}
}

func newTestEnrollmentService(store *stubEnrollmentStore, membership *stubMembership, deliverer dayDeliverer) *EnrollmentService {
	return NewEnrollmentService(store, membership, deliverer, zap.NewNop())
}

func TestMarkElementCompleteRecordsElement(t *testing.T) {
	store := &stubEnrollmentStore{enrollment: enrollmentWithStatus(models.EnrollmentActive)}
	service := newTestEnrollmentService(store, &stubMembership{belongs: true}, nil)

	updated, err := service.MarkElementComplete(context.Background(), 7, models.RoleCoach, 11, 42)
	if err != nil {
		t.Fatalf("MarkElementComplete: %v", err)
	}
	if store.markedElement != 42 {
		t.Fatalf("expected element 42 marked, got %d", store.markedElement)
	}
	if len(updated.CompletedElements) != 1 || updated.CompletedElements[0] != 42 {
		t.Fatalf("unexpected completed set: %v", updated.CompletedElements)
	}
}

func TestMarkElementCompleteRejectsForeignElement(t *testing.T) {
	store := &stubEnrollmentStore{enrollment: enrollmentWithStatus(models.EnrollmentActive)}
	service := newTestEnrollmentService(store, &stubMembership{belongs: false}, nil)

	_, err := service.MarkElementComplete(context.Background(), 7, models.RoleCoach, 11, 42)
	if !errors.Is(err, ErrElementNotInTemplate) {
		t.Fatalf("expected ErrElementNotInTemplate, got %v", err)
	}
	if store.markedElement != 0 {
		t.Fatalf("nothing may be marked for a foreign element")
	}
}

func TestMarkElementCompleteForbiddenForOtherCoach(t *testing.T) {
	store := &stubEnrollmentStore{enrollment: enrollmentWithStatus(models.EnrollmentActive)}
	service := newTestEnrollmentService(store, &stubMembership{belongs: true}, nil)

	_, err := service.MarkElementComplete(context.Background(), 99, models.RoleCoach, 11, 42)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestMarkElementCompleteAllowsAdmin(t *testing.T) {
	store := &stubEnrollmentStore{enrollment: enrollmentWithStatus(models.EnrollmentActive)}
	service := newTestEnrollmentService(store, &stubMembership{belongs: true}, nil)

	if _, err := service.MarkElementComplete(context.Background(), 99, models.RoleAdmin, 11, 42); err != nil {
		t.Fatalf("admin must be allowed: %v", err)
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	cases := []struct {
		name    string
		current string
		next    string
		wantErr error
	}{
		{"pause active", models.EnrollmentActive, models.EnrollmentPaused, nil},
		{"complete active", models.EnrollmentActive, models.EnrollmentCompleted, nil},
		{"resume paused", models.EnrollmentPaused, models.EnrollmentActive, nil},
		{"pause paused", models.EnrollmentPaused, models.EnrollmentPaused, ErrInvalidStateTransition},
		{"leave completed", models.EnrollmentCompleted, models.EnrollmentActive, ErrInvalidStateTransition},
		{"activate enrolled", models.EnrollmentEnrolled, models.EnrollmentActive, ErrInvalidStateTransition},
		{"unknown status", models.EnrollmentActive, "archived", ErrInvalidStatus},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &stubEnrollmentStore{enrollment: enrollmentWithStatus(tc.current)}
			service := newTestEnrollmentService(store, &stubMembership{}, nil)

			updated, err := service.UpdateStatus(context.Background(), 7, models.RoleCoach, 11, tc.next)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateStatus: %v", err)
			}
			if updated.Status != tc.next {
				t.Fatalf("expected status %q, got %q", tc.next, updated.Status)
			}
			if store.casFrom != tc.current {
				t.Fatalf("CAS must guard on the observed status, got %q", store.casFrom)
			}
		})
	}
}

func TestUpdateStatusLostRace(t *testing.T) {
	store := &stubEnrollmentStore{
		enrollment: enrollmentWithStatus(models.EnrollmentActive),
		casErr:     pgx.ErrNoRows,
	}
	service := newTestEnrollmentService(store, &stubMembership{}, nil)

	_, err := service.UpdateStatus(context.Background(), 7, models.RoleCoach, 11, models.EnrollmentPaused)
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition on lost CAS, got %v", err)
	}
}

func TestStartActivatesAndDeliversDayOne(t *testing.T) {
	store := &stubEnrollmentStore{enrollment: enrollmentWithStatus(models.EnrollmentEnrolled)}
	deliverer := &stubDayDeliverer{}
	service := newTestEnrollmentService(store, &stubMembership{}, deliverer)

	started, err := service.Start(context.Background(), 7, models.RoleCoach, 11)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if started.Status != models.EnrollmentActive {
		t.Fatalf("expected active, got %q", started.Status)
	}
	if store.startedAt == nil {
		t.Fatalf("expected a start date")
	}
	if !store.startedAt.Equal(TruncateToDay(*store.startedAt)) {
		t.Fatalf("start date must be midnight UTC, got %v", store.startedAt)
	}
	if len(deliverer.calls) != 1 || deliverer.calls[0] != 1 {
		t.Fatalf("expected an immediate day-1 delivery, got %v", deliverer.calls)
	}
}

func TestStartSurvivesDayOneDeliveryFailure(t *testing.T) {
	store := &stubEnrollmentStore{enrollment: enrollmentWithStatus(models.EnrollmentEnrolled)}
	deliverer := &stubDayDeliverer{err: errors.New("chat store down")}
	service := newTestEnrollmentService(store, &stubMembership{}, deliverer)

	started, err := service.Start(context.Background(), 7, models.RoleCoach, 11)
	if err != nil {
		t.Fatalf("Start must succeed despite delivery failure: %v", err)
	}
	if started.Status != models.EnrollmentActive {
		t.Fatalf("expected active, got %q", started.Status)
	}
}

func TestStartConflictsWhenAlreadyStarted(t *testing.T) {
	store := &stubEnrollmentStore{
		enrollment: enrollmentWithStatus(models.EnrollmentActive),
		startErr:   pgx.ErrNoRows,
	}
	service := newTestEnrollmentService(store, &stubMembership{}, nil)

	_, err := service.Start(context.Background(), 7, models.RoleCoach, 11)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestRestartResetsProgress(t *testing.T) {
	enrollment := enrollmentWithStatus(models.EnrollmentCompleted)
	enrollment.LastDeliveredDay = 28
	enrollment.CompletedElements = []int64{1, 2, 3}
	store := &stubEnrollmentStore{enrollment: enrollment}
	service := newTestEnrollmentService(store, &stubMembership{}, nil)

	restarted, err := service.Restart(context.Background(), 7, models.RoleCoach, 11)
	if err != nil {
		t.Fatalf("Restart: %v", err)
	}

	if restarted.Status != models.EnrollmentActive {
		t.Fatalf("expected active, got %q", restarted.Status)
	}
	if restarted.LastDeliveredDay != 0 || len(restarted.CompletedElements) != 0 {
		t.Fatalf("restart must reset progress: %+v", restarted)
	}
	if store.restartedAt == nil {
		t.Fatalf("expected a fresh start date")
	}
}

func TestRestartFromPausedAllowed(t *testing.T) {
	store := &stubEnrollmentStore{enrollment: enrollmentWithStatus(models.EnrollmentPaused)}
	service := newTestEnrollmentService(store, &stubMembership{}, nil)

	if _, err := service.Restart(context.Background(), 7, models.RoleCoach, 11); err != nil {
		t.Fatalf("Restart from paused: %v", err)
	}
}

func TestRestartRejectedBeforeFirstStart(t *testing.T) {
	store := &stubEnrollmentStore{enrollment: enrollmentWithStatus(models.EnrollmentEnrolled)}
	service := newTestEnrollmentService(store, &stubMembership{}, nil)

	_, err := service.Restart(context.Background(), 7, models.RoleCoach, 11)
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
	if store.restartedAt != nil {
		t.Fatalf("restart must not run from enrolled")
	}
}
