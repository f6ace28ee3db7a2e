package handlers

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/coachdesk/coachdesk-backend/internal/models"
	"github.com/coachdesk/coachdesk-backend/internal/repository"
)

// ClientHandler manages the coach's roster. A client row attaches an existing
// client-role user to a coach; everything downstream (enrollments, tasks,
// resource shares) references client ids, not user ids.
type ClientHandler struct {
	userRepo   *repository.UserRepository
	clientRepo *repository.ClientRepository
}

func NewClientHandler(
	userRepo *repository.UserRepository,
	clientRepo *repository.ClientRepository,
) *ClientHandler {
	return &ClientHandler{
		userRepo:   userRepo,
		clientRepo: clientRepo,
	}
}

type addClientRequest struct {
	Email string `json:"email"`
}

func (h *ClientHandler) AddClient(c *fiber.Ctx) error {
	role, ok := actorRole(c)
	if !ok || role != models.RoleCoach {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	coachID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req addClientRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	parsedEmail, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid email format"})
	}

	user, err := h.userRepo.GetByEmail(c.Context(), strings.ToLower(parsedEmail.Address))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).
				JSON(fiber.Map{"error": "No user with that email"})
		}
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to lookup user"})
	}
	if user.Role != models.RoleClient {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "User is not a client account"})
	}

	client, err := h.clientRepo.Create(c.Context(), user.ID, coachID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to add client"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"client": client})
}

func (h *ClientHandler) ListClients(c *fiber.Ctx) error {
	role, ok := actorRole(c)
	if !ok || role != models.RoleCoach {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	coachID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	clients, err := h.clientRepo.ListByCoachID(c.Context(), coachID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to list clients"})
	}
	if clients == nil {
		clients = []models.ClientSummary{}
	}

	return c.JSON(fiber.Map{"clients": clients})
}
