package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/coachdesk/coachdesk-backend/internal/models"
	"github.com/coachdesk/coachdesk-backend/internal/repository"
)

type conversationStore interface {
	CreateOrGet(ctx context.Context, userID int64, coachID int64) (*models.Conversation, error)
	Touch(ctx context.Context, conversationID int64) error
}

type messageStore interface {
	Create(ctx context.Context, conversationID int64, senderID int64, content string) (*models.ChatMessage, error)
}

type taskStore interface {
	Create(ctx context.Context, input repository.CreateTaskInput) (*models.Task, error)
}

type resourceStore interface {
	Create(ctx context.Context, input repository.CreateResourceInput) (*models.Resource, error)
	Share(ctx context.Context, resourceID int64, clientID int64, sharedBy int64) (*models.ResourceShare, error)
}

// deliveryNotifier pushes a delivered chat message to the recipient's open
// websocket connections. Best effort; an offline client reads it later.
type deliveryNotifier interface {
	NotifyMessage(recipientID int64, message *models.ChatMessage)
}

// MessageMaterializer sends a message element as a chat message from the coach
// to the client, in their regular personal conversation.
type MessageMaterializer struct {
	clients       clientReader
	conversations conversationStore
	messages      messageStore
	notifier      deliveryNotifier
}

func NewMessageMaterializer(
	clients clientReader,
	conversations conversationStore,
	messages messageStore,
	notifier deliveryNotifier,
) *MessageMaterializer {
	return &MessageMaterializer{
		clients:       clients,
		conversations: conversations,
		messages:      messages,
		notifier:      notifier,
	}
}

func (m *MessageMaterializer) Kind() string { return models.ElementKindMessage }

func (m *MessageMaterializer) Materialize(
	ctx context.Context,
	enrollment *models.EnrollmentDetail,
	element models.TemplateElement,
	programDay int,
) (ArtifactRef, error) {
	client, err := m.clients.GetByID(ctx, enrollment.ClientID)
	if err != nil {
		return ArtifactRef{}, fmt.Errorf("resolve client %d: %w", enrollment.ClientID, err)
	}

	conversation, err := m.conversations.CreateOrGet(ctx, client.UserID, enrollment.CoachID)
	if err != nil {
		return ArtifactRef{}, fmt.Errorf("conversation for client %d: %w", enrollment.ClientID, err)
	}

	content := strings.TrimSpace(element.Data.Message)
	if content == "" {
		content = element.Title
	}
	content = fmt.Sprintf("Day %d of %s\n\n%s", programDay, enrollment.TemplateName, content)

	message, err := m.messages.Create(ctx, conversation.ID, enrollment.CoachID, content)
	if err != nil {
		return ArtifactRef{}, fmt.Errorf("send message: %w", err)
	}
	if err := m.conversations.Touch(ctx, conversation.ID); err != nil {
		return ArtifactRef{}, fmt.Errorf("touch conversation: %w", err)
	}

	if m.notifier != nil {
		m.notifier.NotifyMessage(client.UserID, message)
	}

	return ArtifactRef{Kind: models.ElementKindMessage, ID: message.ID}, nil
}

// TaskMaterializer creates a pending task assigned to the client. The source
// element id is recorded so re-running a day can be traced back.
type TaskMaterializer struct {
	tasks taskStore
}

func NewTaskMaterializer(tasks taskStore) *TaskMaterializer {
	return &TaskMaterializer{tasks: tasks}
}

func (m *TaskMaterializer) Kind() string { return models.ElementKindTask }

func (m *TaskMaterializer) Materialize(
	ctx context.Context,
	enrollment *models.EnrollmentDetail,
	element models.TemplateElement,
	_ int,
) (ArtifactRef, error) {
	var description *string
	if trimmed := strings.TrimSpace(element.Data.Description); trimmed != "" {
		description = &trimmed
	}

	elementID := element.ID
	task, err := m.tasks.Create(ctx, repository.CreateTaskInput{
		CoachID:         enrollment.CoachID,
		ClientID:        enrollment.ClientID,
		Title:           element.Title,
		Description:     description,
		SourceElementID: &elementID,
	})
	if err != nil {
		return ArtifactRef{}, fmt.Errorf("create task: %w", err)
	}

	return ArtifactRef{Kind: models.ElementKindTask, ID: task.ID}, nil
}

// DocumentMaterializer shares a library resource with the client. Elements
// authored from the coach's library carry a resource id; elements with only a
// URL get a resource row created on first delivery.
type DocumentMaterializer struct {
	resources resourceStore
}

func NewDocumentMaterializer(resources resourceStore) *DocumentMaterializer {
	return &DocumentMaterializer{resources: resources}
}

func (m *DocumentMaterializer) Kind() string { return models.ElementKindDocument }

func (m *DocumentMaterializer) Materialize(
	ctx context.Context,
	enrollment *models.EnrollmentDetail,
	element models.TemplateElement,
	_ int,
) (ArtifactRef, error) {
	resourceID := element.Data.ResourceID
	if resourceID == 0 {
		url := strings.TrimSpace(element.Data.URL)
		if url == "" {
			return ArtifactRef{}, fmt.Errorf("document element %d has neither resource id nor url", element.ID)
		}
		title := strings.TrimSpace(element.Data.Title)
		if title == "" {
			title = element.Title
		}
		resource, err := m.resources.Create(ctx, repository.CreateResourceInput{
			CoachID: enrollment.CoachID,
			Title:   title,
			URL:     url,
		})
		if err != nil {
			return ArtifactRef{}, fmt.Errorf("create resource: %w", err)
		}
		resourceID = resource.ID
	}

	share, err := m.resources.Share(ctx, resourceID, enrollment.ClientID, enrollment.CoachID)
	if err != nil {
		return ArtifactRef{}, fmt.Errorf("share resource %d: %w", resourceID, err)
	}

	return ArtifactRef{Kind: models.ElementKindDocument, ID: share.ID}, nil
}
