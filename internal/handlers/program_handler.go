package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/coachdesk/coachdesk-backend/internal/models"
	"github.com/coachdesk/coachdesk-backend/internal/services"
)

type templateApplicationService interface {
	CreateTemplate(
		ctx context.Context,
		coachID int64,
		input services.CreateTemplateInput,
	) (*models.TemplateDetail, error)
	GetTemplate(
		ctx context.Context,
		actorID int64,
		role string,
		templateID int64,
	) (*models.TemplateDetail, error)
	ListTemplates(ctx context.Context, coachID int64, limit, offset int) ([]models.ProgramTemplate, error)
	UpdateTemplate(
		ctx context.Context,
		actorID int64,
		role string,
		templateID int64,
		input services.CreateTemplateInput,
	) (*models.TemplateDetail, error)
	DeleteTemplate(ctx context.Context, actorID int64, role string, templateID int64) error
	DuplicateTemplate(
		ctx context.Context,
		actorID int64,
		role string,
		templateID int64,
		newName string,
	) (*models.TemplateDetail, error)
	TemplateStats(ctx context.Context, coachID int64) (*models.TemplateStats, error)
}

type ProgramHandler struct {
	service templateApplicationService
}

func NewProgramHandler(service templateApplicationService) *ProgramHandler {
	return &ProgramHandler{service: service}
}

type templateElementRequest struct {
	Kind          string             `json:"kind"`
	Title         string             `json:"title"`
	Week          int                `json:"week"`
	Day           int                `json:"day"`
	ScheduledTime string             `json:"scheduled_time"`
	Data          models.ElementData `json:"data"`
}

type templateRequest struct {
	Name        string                   `json:"name"`
	Description *string                  `json:"description"`
	Duration    int                      `json:"duration_weeks"`
	Elements    []templateElementRequest `json:"elements"`
}

type duplicateTemplateRequest struct {
	Name string `json:"name"`
}

func (h *ProgramHandler) CreateTemplate(c *fiber.Ctx) error {
	coachID, ok := requireCoach(c)
	if !ok {
		return nil
	}

	req, ok := parseTemplateRequest(c)
	if !ok {
		return nil
	}

	detail, err := h.service.CreateTemplate(c.Context(), coachID, req)
	if err != nil {
		return mapTemplateError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"template": detail})
}

func (h *ProgramHandler) GetTemplate(c *fiber.Ctx) error {
	actorID, role, ok := requireActor(c)
	if !ok {
		return nil
	}

	templateID, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	detail, err := h.service.GetTemplate(c.Context(), actorID, role, templateID)
	if err != nil {
		return mapTemplateError(c, err)
	}

	return c.JSON(fiber.Map{"template": detail})
}

func (h *ProgramHandler) ListTemplates(c *fiber.Ctx) error {
	coachID, ok := requireCoach(c)
	if !ok {
		return nil
	}

	page, limit := parsePageParams(c)
	templates, err := h.service.ListTemplates(c.Context(), coachID, limit, (page-1)*limit)
	if err != nil {
		return mapTemplateError(c, err)
	}
	if templates == nil {
		templates = []models.ProgramTemplate{}
	}

	return c.JSON(fiber.Map{"templates": templates})
}

func (h *ProgramHandler) UpdateTemplate(c *fiber.Ctx) error {
	actorID, role, ok := requireActor(c)
	if !ok {
		return nil
	}

	templateID, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	req, ok := parseTemplateRequest(c)
	if !ok {
		return nil
	}

	detail, err := h.service.UpdateTemplate(c.Context(), actorID, role, templateID, req)
	if err != nil {
		return mapTemplateError(c, err)
	}

	return c.JSON(fiber.Map{"template": detail})
}

func (h *ProgramHandler) DeleteTemplate(c *fiber.Ctx) error {
	actorID, role, ok := requireActor(c)
	if !ok {
		return nil
	}

	templateID, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	if err := h.service.DeleteTemplate(c.Context(), actorID, role, templateID); err != nil {
		return mapTemplateError(c, err)
	}

	return c.JSON(fiber.Map{"deleted": true})
}

func (h *ProgramHandler) DuplicateTemplate(c *fiber.Ctx) error {
	actorID, role, ok := requireActor(c)
	if !ok {
		return nil
	}

	templateID, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	var req duplicateTemplateRequest
	if err := c.BodyParser(&req); err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		return nil
	}

	detail, err := h.service.DuplicateTemplate(c.Context(), actorID, role, templateID, strings.TrimSpace(req.Name))
	if err != nil {
		return mapTemplateError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"template": detail})
}

func (h *ProgramHandler) TemplateStats(c *fiber.Ctx) error {
	coachID, ok := requireCoach(c)
	if !ok {
		return nil
	}

	stats, err := h.service.TemplateStats(c.Context(), coachID)
	if err != nil {
		return mapTemplateError(c, err)
	}

	return c.JSON(fiber.Map{"stats": stats})
}

func parseTemplateRequest(c *fiber.Ctx) (services.CreateTemplateInput, bool) {
	var req templateRequest
	if err := c.BodyParser(&req); err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		return services.CreateTemplateInput{}, false
	}

	elements := make([]services.ElementInput, 0, len(req.Elements))
	for _, element := range req.Elements {
		elements = append(elements, services.ElementInput{
			Kind:          element.Kind,
			Title:         element.Title,
			Week:          element.Week,
			Day:           element.Day,
			ScheduledTime: element.ScheduledTime,
			Data:          element.Data,
		})
	}

	return services.CreateTemplateInput{
		Name:        req.Name,
		Description: req.Description,
		Duration:    req.Duration,
		Elements:    elements,
	}, true
}

func requireCoach(c *fiber.Ctx) (int64, bool) {
	role, ok := actorRole(c)
	if !ok || role != models.RoleCoach {
		_ = c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
		return 0, false
	}
	coachID, err := parseActorID(c)
	if err != nil {
		_ = c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		return 0, false
	}
	return coachID, true
}

func requireActor(c *fiber.Ctx) (int64, string, bool) {
	role, ok := actorRole(c)
	if !ok {
		_ = c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		return 0, "", false
	}
	actorID, err := parseActorID(c)
	if err != nil {
		_ = c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		return 0, "", false
	}
	return actorID, role, true
}

func parseIDParam(c *fiber.Ctx, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid id"})
		return 0, false
	}
	return id, true
}

func mapTemplateError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrTemplateInUse):
		return c.Status(fiber.StatusConflict).
			JSON(fiber.Map{"error": "Template has active enrollments"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Already exists"})
	case errors.Is(err, services.ErrClientNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Client not found"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Template not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process template request"})
	}
}
