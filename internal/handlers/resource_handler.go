package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/coachdesk/coachdesk-backend/internal/models"
	"github.com/coachdesk/coachdesk-backend/internal/services"
)

const maxResourceSizeBytes = 25 * 1024 * 1024

type ResourceHandler struct {
	service *services.ResourceService
}

func NewResourceHandler(service *services.ResourceService) *ResourceHandler {
	return &ResourceHandler{service: service}
}

type linkResourceRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type shareResourceRequest struct {
	ClientID int64 `json:"client_id"`
}

func (h *ResourceHandler) UploadResource(c *fiber.Ctx) error {
	coachID, ok := requireCoach(c)
	if !ok {
		return nil
	}

	title := strings.TrimSpace(c.FormValue("title"))
	if title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title is required"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}
	if fileHeader.Size <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is empty"})
	}
	if fileHeader.Size > maxResourceSizeBytes {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file exceeds 25MB limit"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to open file"})
	}
	defer file.Close()

	resource, err := h.service.UploadResource(c.Context(), coachID, services.UploadResourceInput{
		Title:    title,
		File:     file,
		Filename: fileHeader.Filename,
	})
	if err != nil {
		return mapResourceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"resource": resource})
}

func (h *ResourceHandler) CreateLinkResource(c *fiber.Ctx) error {
	coachID, ok := requireCoach(c)
	if !ok {
		return nil
	}

	var req linkResourceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	resource, err := h.service.CreateLinkResource(c.Context(), coachID, req.Title, req.URL)
	if err != nil {
		return mapResourceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"resource": resource})
}

func (h *ResourceHandler) ListResources(c *fiber.Ctx) error {
	coachID, ok := requireCoach(c)
	if !ok {
		return nil
	}

	resources, err := h.service.ListResources(c.Context(), coachID)
	if err != nil {
		return mapResourceError(c, err)
	}
	if resources == nil {
		resources = []models.Resource{}
	}

	return c.JSON(fiber.Map{"resources": resources})
}

func (h *ResourceHandler) ShareResource(c *fiber.Ctx) error {
	actorID, role, ok := requireActor(c)
	if !ok {
		return nil
	}

	resourceID, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	var req shareResourceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	share, err := h.service.ShareResource(c.Context(), actorID, role, resourceID, req.ClientID)
	if err != nil {
		return mapResourceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"share": share})
}

func (h *ResourceHandler) ListSharedWithMe(c *fiber.Ctx) error {
	actorID, role, ok := requireActor(c)
	if !ok {
		return nil
	}

	resources, err := h.service.ListSharedWithMe(c.Context(), actorID, role)
	if err != nil {
		return mapResourceError(c, err)
	}
	if resources == nil {
		resources = []models.SharedResource{}
	}

	return c.JSON(fiber.Map{"resources": resources})
}

func mapResourceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrClientNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Client not found"})
	case errors.Is(err, services.ErrStorageUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).
			JSON(fiber.Map{"error": "Storage service is not configured"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Resource not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process resource request"})
	}
}
