package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/coachdesk/coachdesk-backend/internal/models"
	"github.com/coachdesk/coachdesk-backend/internal/services"
)

type stubEnrollmentAppService struct {
	enrollResult   *models.Enrollment
	enrollErr      error
	clientsResult  []models.EnrolledClient
	programsResult []models.EnrollmentDetail
	lastActorID    int64
	lastRole       string
	lastTemplateID int64
	lastClientID   int64
}

func (s *stubEnrollmentAppService) EnrollClient(
	_ context.Context,
	actorID int64,
	role string,
	templateID int64,
	clientID int64,
) (*models.Enrollment, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastTemplateID = templateID
	s.lastClientID = clientID
	return s.enrollResult, s.enrollErr
}

func (s *stubEnrollmentAppService) ListEnrolledClients(
	_ context.Context,
	actorID int64,
	role string,
	templateID int64,
) ([]models.EnrolledClient, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastTemplateID = templateID
	return s.clientsResult, nil
}

func (s *stubEnrollmentAppService) ListClientPrograms(
	_ context.Context,
	actorID int64,
	role string,
	clientID int64,
) ([]models.EnrollmentDetail, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastClientID = clientID
	return s.programsResult, nil
}

type stubLifecycleService struct {
	result           *models.Enrollment
	err              error
	lastEnrollmentID int64
	lastStatus       string
	lastElementID    int64
	startCalls       int
	restartCalls     int
}

func (s *stubLifecycleService) Start(
	_ context.Context,
	_ int64,
	_ string,
	enrollmentID int64,
) (*models.Enrollment, error) {
	s.startCalls++
	s.lastEnrollmentID = enrollmentID
	return s.result, s.err
}

func (s *stubLifecycleService) Restart(
	_ context.Context,
	_ int64,
	_ string,
	enrollmentID int64,
) (*models.Enrollment, error) {
	s.restartCalls++
	s.lastEnrollmentID = enrollmentID
	return s.result, s.err
}

func (s *stubLifecycleService) UpdateStatus(
	_ context.Context,
	_ int64,
	_ string,
	enrollmentID int64,
	nextStatus string,
) (*models.Enrollment, error) {
	s.lastEnrollmentID = enrollmentID
	s.lastStatus = nextStatus
	return s.result, s.err
}

func (s *stubLifecycleService) MarkElementComplete(
	_ context.Context,
	_ int64,
	_ string,
	enrollmentID int64,
	elementID int64,
) (*models.Enrollment, error) {
	s.lastEnrollmentID = enrollmentID
	s.lastElementID = elementID
	return s.result, s.err
}

func newEnrollmentTestApp(
	programs enrollmentApplicationService,
	lifecycle enrollmentLifecycleService,
	role string,
) *fiber.App {
	handler := NewEnrollmentHandler(programs, lifecycle)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", role)
		c.Locals("user_id", "7")
		return c.Next()
	})
	app.Post("/api/v1/templates/:id/enroll", handler.EnrollClient)
	app.Get("/api/v1/templates/:id/clients", handler.ListEnrolledClients)
	app.Post("/api/v1/enrollments/:id/start", handler.StartEnrollment)
	app.Post("/api/v1/enrollments/:id/restart", handler.RestartEnrollment)
	app.Put("/api/v1/enrollments/:id/status", handler.UpdateEnrollmentStatus)
	app.Post("/api/v1/enrollments/:id/complete-element", handler.MarkElementComplete)
	return app
}

func TestEnrollClientCreatesEnrollment(t *testing.T) {
	programs := &stubEnrollmentAppService{
		enrollResult: &models.Enrollment{
			ID:         11,
			TemplateID: 3,
			ClientID:   5,
			Status:     models.EnrollmentEnrolled,
		},
	}
	app := newEnrollmentTestApp(programs, &stubLifecycleService{}, "coach")

	req := httptest.NewRequest(
		http.MethodPost,
		"/api/v1/templates/3/enroll",
		strings.NewReader(`{"client_id":5}`),
	)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if programs.lastActorID != 7 || programs.lastRole != "coach" {
		t.Fatalf("unexpected actor: %d %q", programs.lastActorID, programs.lastRole)
	}
	if programs.lastTemplateID != 3 || programs.lastClientID != 5 {
		t.Fatalf("unexpected ids: template %d client %d",
			programs.lastTemplateID, programs.lastClientID)
	}

	var payload struct {
		Enrollment struct {
			ID     int64  `json:"id"`
			Status string `json:"status"`
		} `json:"enrollment"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if payload.Enrollment.ID != 11 || payload.Enrollment.Status != "enrolled" {
		t.Fatalf("unexpected enrollment: %+v", payload.Enrollment)
	}
}

func TestEnrollClientDuplicateReturnsConflict(t *testing.T) {
	programs := &stubEnrollmentAppService{enrollErr: services.ErrConflict}
	app := newEnrollmentTestApp(programs, &stubLifecycleService{}, "coach")

	req := httptest.NewRequest(
		http.MethodPost,
		"/api/v1/templates/3/enroll",
		strings.NewReader(`{"client_id":5}`),
	)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestStartEnrollmentReturnsActiveEnrollment(t *testing.T) {
	lifecycle := &stubLifecycleService{
		result: &models.Enrollment{ID: 11, Status: models.EnrollmentActive},
	}
	app := newEnrollmentTestApp(&stubEnrollmentAppService{}, lifecycle, "coach")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/enrollments/11/start", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if lifecycle.startCalls != 1 || lifecycle.lastEnrollmentID != 11 {
		t.Fatalf("unexpected start call: %d calls, id %d",
			lifecycle.startCalls, lifecycle.lastEnrollmentID)
	}
}

func TestUpdateEnrollmentStatusMapsLifecycleErrors(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantStatus int
	}{
		{"invalid status value", services.ErrInvalidStatus, http.StatusBadRequest},
		{"transition not allowed", services.ErrInvalidStateTransition, http.StatusConflict},
		{"enrollment missing", pgx.ErrNoRows, http.StatusNotFound},
		{"not the owning coach", services.ErrForbidden, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lifecycle := &stubLifecycleService{err: tt.serviceErr}
			app := newEnrollmentTestApp(&stubEnrollmentAppService{}, lifecycle, "coach")

			req := httptest.NewRequest(
				http.MethodPut,
				"/api/v1/enrollments/11/status",
				strings.NewReader(`{"status":"paused"}`),
			)
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			if lifecycle.lastStatus != "paused" {
				t.Fatalf("expected status forwarded, got %q", lifecycle.lastStatus)
			}
		})
	}
}

func TestMarkElementCompleteForwardsElementID(t *testing.T) {
	lifecycle := &stubLifecycleService{
		result: &models.Enrollment{ID: 11, CompletedElements: []int64{42}},
	}
	app := newEnrollmentTestApp(&stubEnrollmentAppService{}, lifecycle, "client")

	req := httptest.NewRequest(
		http.MethodPost,
		"/api/v1/enrollments/11/complete-element",
		strings.NewReader(`{"element_id":42}`),
	)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if lifecycle.lastEnrollmentID != 11 || lifecycle.lastElementID != 42 {
		t.Fatalf("unexpected forwarded ids: enrollment %d element %d",
			lifecycle.lastEnrollmentID, lifecycle.lastElementID)
	}
}

func TestMarkElementCompleteUnknownElementReturnsNotFound(t *testing.T) {
	lifecycle := &stubLifecycleService{err: services.ErrElementNotInTemplate}
	app := newEnrollmentTestApp(&stubEnrollmentAppService{}, lifecycle, "client")

	req := httptest.NewRequest(
		http.MethodPost,
		"/api/v1/enrollments/11/complete-element",
		strings.NewReader(`{"element_id":999}`),
	)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestListEnrolledClientsReturnsEmptySliceNotNull(t *testing.T) {
	app := newEnrollmentTestApp(&stubEnrollmentAppService{}, &stubLifecycleService{}, "coach")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/templates/3/clients", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var payload struct {
		Clients []models.EnrolledClient `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if payload.Clients == nil {
		t.Fatalf("expected empty slice, got null")
	}
}
