package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/coachdesk/coachdesk-backend/internal/models"
	"github.com/coachdesk/coachdesk-backend/internal/services"
	chatws "github.com/coachdesk/coachdesk-backend/internal/websocket"
)

type stubChatService struct {
	conversationsResult []models.ConversationSummary
	conversationsErr    error
	createResult        *models.Conversation
	createErr           error
	messagesResult      []models.ChatMessage
	messagesTotal       int
	messagesErr         error
	sendResult          *services.ChatDelivery
	sendErr             error
	lastActorID         int64
	lastRole            string
	lastOtherUserID     int64
	lastConversationID  int64
	lastContent         string
	lastPage            int
	lastLimit           int
}

func (s *stubChatService) ListConversations(
	_ context.Context,
	actorID int64,
	role string,
) ([]models.ConversationSummary, error) {
	s.lastActorID = actorID
	s.lastRole = role
	return s.conversationsResult, s.conversationsErr
}

func (s *stubChatService) CreateConversation(
	_ context.Context,
	actorID int64,
	role string,
	otherUserID int64,
) (*models.Conversation, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastOtherUserID = otherUserID
	return s.createResult, s.createErr
}

func (s *stubChatService) ListMessages(
	_ context.Context,
	actorID int64,
	role string,
	conversationID int64,
	page int,
	limit int,
) ([]models.ChatMessage, int, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastConversationID = conversationID
	s.lastPage = page
	s.lastLimit = limit
	return s.messagesResult, s.messagesTotal, s.messagesErr
}

func (s *stubChatService) SendMessage(
	_ context.Context,
	actorID int64,
	role string,
	conversationID int64,
	content string,
) (*services.ChatDelivery, error) {
	s.lastActorID = actorID
	s.lastRole = role
	s.lastConversationID = conversationID
	s.lastContent = content
	return s.sendResult, s.sendErr
}

func newChatTestApp(service chatApplicationService, role string) *fiber.App {
	handler := NewChatHandler(service, chatws.NewHub(zap.NewNop()), "secret")

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", role)
		c.Locals("user_id", "42")
		return c.Next()
	})
	app.Get("/api/v1/conversations", handler.ListConversations)
	app.Post("/api/v1/conversations", handler.CreateConversation)
	app.Get("/api/v1/conversations/:id/messages", handler.GetMessages)
	app.Post("/api/v1/conversations/:id/messages", handler.SendMessage)
	return app
}

func TestListConversationsReturnsSummaries(t *testing.T) {
	service := &stubChatService{
		conversationsResult: []models.ConversationSummary{
			{
				Conversation: models.Conversation{ID: 17, UserID: 42, CoachID: 8},
				LastMessage: &models.ChatMessage{
					ID:             3,
					ConversationID: 17,
					SenderID:       8,
					Content:        "See you tomorrow",
					CreatedAt:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
				},
				UnreadCount: 2,
			},
		},
	}
	app := newChatTestApp(service, "client")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastActorID != 42 || service.lastRole != "client" {
		t.Fatalf("unexpected actor: %d %q", service.lastActorID, service.lastRole)
	}

	var payload struct {
		Conversations []struct {
			ID          int64 `json:"id"`
			UnreadCount int   `json:"unread_count"`
			LastMessage *struct {
				Content string `json:"content"`
			} `json:"last_message"`
		} `json:"conversations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(payload.Conversations) != 1 {
		t.Fatalf("expected one conversation, got %d", len(payload.Conversations))
	}
	got := payload.Conversations[0]
	if got.ID != 17 || got.UnreadCount != 2 {
		t.Fatalf("unexpected conversation: %+v", got)
	}
	if got.LastMessage == nil || got.LastMessage.Content != "See you tomorrow" {
		t.Fatalf("unexpected last message: %+v", got.LastMessage)
	}
}

func TestCreateConversationForwardsOtherParticipant(t *testing.T) {
	service := &stubChatService{
		createResult: &models.Conversation{ID: 17, UserID: 42, CoachID: 8},
	}
	app := newChatTestApp(service, "client")

	req := httptest.NewRequest(
		http.MethodPost,
		"/api/v1/conversations",
		strings.NewReader(`{"user_id":8}`),
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
	if service.lastOtherUserID != 8 {
		t.Fatalf("expected other user 8, got %d", service.lastOtherUserID)
	}
}

func TestGetMessagesForwardsPagination(t *testing.T) {
	service := &stubChatService{
		messagesResult: []models.ChatMessage{
			{ID: 3, ConversationID: 17, SenderID: 8, Content: "hi"},
		},
		messagesTotal: 61,
	}
	app := newChatTestApp(service, "client")

	req := httptest.NewRequest(
		http.MethodGet,
		"/api/v1/conversations/17/messages?page=2&limit=20",
		nil,
	)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastConversationID != 17 {
		t.Fatalf("expected conversation 17, got %d", service.lastConversationID)
	}
	if service.lastPage != 2 || service.lastLimit != 20 {
		t.Fatalf("unexpected pagination: page %d limit %d", service.lastPage, service.lastLimit)
	}

	var payload struct {
		Pagination struct {
			Page       int `json:"page"`
			TotalPages int `json:"total_pages"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if payload.Pagination.Page != 2 || payload.Pagination.TotalPages != 4 {
		t.Fatalf("unexpected pagination meta: %+v", payload.Pagination)
	}
}

func TestSendMessageReturnsCreatedMessage(t *testing.T) {
	service := &stubChatService{
		sendResult: &services.ChatDelivery{
			Conversation: &models.Conversation{ID: 17, UserID: 42, CoachID: 8},
			Message: &models.ChatMessage{
				ID:             9,
				ConversationID: 17,
				SenderID:       42,
				Content:        "On my way",
			},
			RecipientID: 8,
		},
	}
	app := newChatTestApp(service, "client")

	req := httptest.NewRequest(
		http.MethodPost,
		"/api/v1/conversations/17/messages",
		strings.NewReader(`{"content":"On my way"}`),
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
	if service.lastContent != "On my way" {
		t.Fatalf("expected content forwarded, got %q", service.lastContent)
	}

	var payload struct {
		Message struct {
			ID      int64  `json:"id"`
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if payload.Message.ID != 9 || payload.Message.Content != "On my way" {
		t.Fatalf("unexpected message: %+v", payload.Message)
	}
}

func TestGetMessagesUnknownConversationReturnsNotFound(t *testing.T) {
	service := &stubChatService{messagesErr: pgx.ErrNoRows}
	app := newChatTestApp(service, "client")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations/999/messages", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
