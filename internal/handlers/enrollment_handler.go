package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/coachdesk/coachdesk-backend/internal/models"
	"github.com/coachdesk/coachdesk-backend/internal/services"
)

type enrollmentApplicationService interface {
	EnrollClient(
		ctx context.Context,
		actorID int64,
		role string,
		templateID int64,
		clientID int64,
	) (*models.Enrollment, error)
	ListEnrolledClients(
		ctx context.Context,
		actorID int64,
		role string,
		templateID int64,
	) ([]models.EnrolledClient, error)
	ListClientPrograms(
		ctx context.Context,
		actorID int64,
		role string,
		clientID int64,
	) ([]models.EnrollmentDetail, error)
}

type enrollmentLifecycleService interface {
	Start(ctx context.Context, actorID int64, role string, enrollmentID int64) (*models.Enrollment, error)
	Restart(ctx context.Context, actorID int64, role string, enrollmentID int64) (*models.Enrollment, error)
	UpdateStatus(
		ctx context.Context,
		actorID int64,
		role string,
		enrollmentID int64,
		nextStatus string,
	) (*models.Enrollment, error)
	MarkElementComplete(
		ctx context.Context,
		actorID int64,
		role string,
		enrollmentID int64,
		elementID int64,
	) (*models.Enrollment, error)
}

type EnrollmentHandler struct {
	programs  enrollmentApplicationService
	lifecycle enrollmentLifecycleService
}

func NewEnrollmentHandler(
	programs enrollmentApplicationService,
	lifecycle enrollmentLifecycleService,
) *EnrollmentHandler {
	return &EnrollmentHandler{
		programs:  programs,
		lifecycle: lifecycle,
	}
}

type enrollRequest struct {
	ClientID int64 `json:"client_id"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type markCompleteRequest struct {
	ElementID int64 `json:"element_id"`
}

func (h *EnrollmentHandler) EnrollClient(c *fiber.Ctx) error {
	actorID, role, ok := requireActor(c)
	if !ok {
		return nil
	}

	templateID, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	var req enrollRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	enrollment, err := h.programs.EnrollClient(c.Context(), actorID, role, templateID, req.ClientID)
	if err != nil {
		return mapEnrollmentError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"enrollment": enrollment})
}

func (h *EnrollmentHandler) ListEnrolledClients(c *fiber.Ctx) error {
	actorID, role, ok := requireActor(c)
	if !ok {
		return nil
	}

	templateID, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	clients, err := h.programs.ListEnrolledClients(c.Context(), actorID, role, templateID)
	if err != nil {
		return mapEnrollmentError(c, err)
	}
	if clients == nil {
		clients = []models.EnrolledClient{}
	}

	return c.JSON(fiber.Map{"clients": clients})
}

func (h *EnrollmentHandler) ListClientPrograms(c *fiber.Ctx) error {
	actorID, role, ok := requireActor(c)
	if !ok {
		return nil
	}

	clientID, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	programs, err := h.programs.ListClientPrograms(c.Context(), actorID, role, clientID)
	if err != nil {
		return mapEnrollmentError(c, err)
	}
	if programs == nil {
		programs = []models.EnrollmentDetail{}
	}

	return c.JSON(fiber.Map{"programs": programs})
}

func (h *EnrollmentHandler) StartEnrollment(c *fiber.Ctx) error {
	actorID, role, ok := requireActor(c)
	if !ok {
		return nil
	}

	enrollmentID, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	enrollment, err := h.lifecycle.Start(c.Context(), actorID, role, enrollmentID)
	if err != nil {
		return mapEnrollmentError(c, err)
	}

	return c.JSON(fiber.Map{"enrollment": enrollment})
}

func (h *EnrollmentHandler) RestartEnrollment(c *fiber.Ctx) error {
	actorID, role, ok := requireActor(c)
	if !ok {
		return nil
	}

	enrollmentID, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	enrollment, err := h.lifecycle.Restart(c.Context(), actorID, role, enrollmentID)
	if err != nil {
		return mapEnrollmentError(c, err)
	}

	return c.JSON(fiber.Map{"enrollment": enrollment})
}

func (h *EnrollmentHandler) UpdateEnrollmentStatus(c *fiber.Ctx) error {
	actorID, role, ok := requireActor(c)
	if !ok {
		return nil
	}

	enrollmentID, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	enrollment, err := h.lifecycle.UpdateStatus(c.Context(), actorID, role, enrollmentID, req.Status)
	if err != nil {
		return mapEnrollmentError(c, err)
	}

	return c.JSON(fiber.Map{"enrollment": enrollment})
}

func (h *EnrollmentHandler) MarkElementComplete(c *fiber.Ctx) error {
	actorID, role, ok := requireActor(c)
	if !ok {
		return nil
	}

	enrollmentID, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	var req markCompleteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	enrollment, err := h.lifecycle.MarkElementComplete(c.Context(), actorID, role, enrollmentID, req.ElementID)
	if err != nil {
		return mapEnrollmentError(c, err)
	}

	return c.JSON(fiber.Map{"enrollment": enrollment})
}

func mapEnrollmentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid status"})
	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusConflict).
			JSON(fiber.Map{"error": "Status transition not allowed"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Already exists"})
	case errors.Is(err, services.ErrClientNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Client not found"})
	case errors.Is(err, services.ErrElementNotInTemplate):
		return c.Status(fiber.StatusNotFound).
			JSON(fiber.Map{"error": "Element not found in program"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Enrollment not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process enrollment request"})
	}
}
