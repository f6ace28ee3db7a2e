package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/coachdesk/coachdesk-backend/internal/models"
	"github.com/coachdesk/coachdesk-backend/internal/services"
)

type taskApplicationService interface {
	CreateTask(
		ctx context.Context,
		coachID int64,
		role string,
		input services.CreateTaskServiceInput,
	) (*models.Task, error)
	ListTasks(ctx context.Context, actorID int64, role string) ([]models.Task, error)
	UpdateTaskStatus(
		ctx context.Context,
		actorID int64,
		role string,
		taskID int64,
		nextStatus string,
	) (*models.Task, error)
}

type TaskHandler struct {
	service taskApplicationService
}

func NewTaskHandler(service taskApplicationService) *TaskHandler {
	return &TaskHandler{service: service}
}

type createTaskRequest struct {
	ClientID    int64   `json:"client_id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	DueDate     *string `json:"due_date"`
}

type taskStatusRequest struct {
	Status string `json:"status"`
}

func (h *TaskHandler) CreateTask(c *fiber.Ctx) error {
	actorID, role, ok := requireActor(c)
	if !ok {
		return nil
	}

	var req createTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	var dueDate *time.Time
	if req.DueDate != nil && *req.DueDate != "" {
		parsed, err := time.Parse("2006-01-02", *req.DueDate)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).
				JSON(fiber.Map{"error": "due_date must be YYYY-MM-DD"})
		}
		dueDate = &parsed
	}

	task, err := h.service.CreateTask(c.Context(), actorID, role, services.CreateTaskServiceInput{
		ClientID:    req.ClientID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     dueDate,
	})
	if err != nil {
		return mapTaskError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"task": task})
}

func (h *TaskHandler) ListTasks(c *fiber.Ctx) error {
	actorID, role, ok := requireActor(c)
	if !ok {
		return nil
	}

	tasks, err := h.service.ListTasks(c.Context(), actorID, role)
	if err != nil {
		return mapTaskError(c, err)
	}
	if tasks == nil {
		tasks = []models.Task{}
	}

	return c.JSON(fiber.Map{"tasks": tasks})
}

func (h *TaskHandler) UpdateTaskStatus(c *fiber.Ctx) error {
	actorID, role, ok := requireActor(c)
	if !ok {
		return nil
	}

	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return nil
	}

	var req taskStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	task, err := h.service.UpdateTaskStatus(c.Context(), actorID, role, taskID, req.Status)
	if err != nil {
		return mapTaskError(c, err)
	}

	return c.JSON(fiber.Map{"task": task})
}

func mapTaskError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid status"})
	case errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).
			JSON(fiber.Map{"error": "Task was updated concurrently"})
	case errors.Is(err, services.ErrClientNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Client not found"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Task not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to process task request"})
	}
}
