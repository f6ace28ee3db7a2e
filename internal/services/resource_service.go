package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/coachdesk/coachdesk-backend/internal/models"
	"github.com/coachdesk/coachdesk-backend/internal/repository"
)

type resourceFullStore interface {
	Create(ctx context.Context, input repository.CreateResourceInput) (*models.Resource, error)
	GetByID(ctx context.Context, resourceID int64) (*models.Resource, error)
	ListByCoachID(ctx context.Context, coachID int64) ([]models.Resource, error)
	Share(ctx context.Context, resourceID int64, clientID int64, sharedBy int64) (*models.ResourceShare, error)
	ListSharedWithUser(ctx context.Context, userID int64) ([]models.SharedResource, error)
}

type UploadResourceInput struct {
	Title    string
	File     multipart.File
	Filename string
}

// ResourceService is the coach's media library: uploaded files land in object
// storage, link resources keep an external URL, and shares expose either to a
// client. The delivery pipeline's document materializer writes shares too.
type ResourceService struct {
	resources resourceFullStore
	clients   clientReader
	storage   StorageService
}

func NewResourceService(
	resources resourceFullStore,
	clients clientReader,
	storage StorageService,
) *ResourceService {
	return &ResourceService{
		resources: resources,
		clients:   clients,
		storage:   storage,
	}
}

func (s *ResourceService) UploadResource(
	ctx context.Context,
	coachID int64,
	input UploadResourceInput,
) (*models.Resource, error) {
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}

	title := strings.TrimSpace(input.Title)
	if coachID <= 0 || title == "" || input.File == nil {
		return nil, ErrInvalidInput
	}

	filename := buildResourceFilename(input.Filename)
	fileURL, err := s.storage.UploadFile(ctx, input.File, filename, "resources")
	if err != nil {
		return nil, err
	}

	original := strings.TrimSpace(input.Filename)
	resource, err := s.resources.Create(ctx, repository.CreateResourceInput{
		CoachID:  coachID,
		Title:    title,
		URL:      fileURL,
		FileName: &original,
	})
	if err != nil {
		cleanupErr := s.storage.DeleteFile(ctx, fileURL)
		if cleanupErr != nil {
			return nil, errors.Join(err, fmt.Errorf("cleanup failed: %w", cleanupErr))
		}
		return nil, err
	}

	return resource, nil
}

func (s *ResourceService) CreateLinkResource(
	ctx context.Context,
	coachID int64,
	title string,
	url string,
) (*models.Resource, error) {
	title = strings.TrimSpace(title)
	url = strings.TrimSpace(url)
	if coachID <= 0 || title == "" || url == "" {
		return nil, ErrInvalidInput
	}

	return s.resources.Create(ctx, repository.CreateResourceInput{
		CoachID: coachID,
		Title:   title,
		URL:     url,
	})
}

func (s *ResourceService) ListResources(ctx context.Context, coachID int64) ([]models.Resource, error) {
	return s.resources.ListByCoachID(ctx, coachID)
}

func (s *ResourceService) ShareResource(
	ctx context.Context,
	actorID int64,
	role string,
	resourceID int64,
	clientID int64,
) (*models.ResourceShare, error) {
	if resourceID <= 0 || clientID <= 0 {
		return nil, ErrInvalidInput
	}

	resource, err := s.resources.GetByID(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if !canManageEnrollment(role, actorID, resource.CoachID) {
		return nil, ErrForbidden
	}

	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if client.CoachID != resource.CoachID {
		return nil, ErrForbidden
	}

	return s.resources.Share(ctx, resourceID, clientID, resource.CoachID)
}

func (s *ResourceService) ListSharedWithMe(ctx context.Context, actorID int64, role string) ([]models.SharedResource, error) {
	if role != models.RoleClient {
		return nil, ErrForbidden
	}
	return s.resources.ListSharedWithUser(ctx, actorID)
}

func buildResourceFilename(original string) string {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(original)))
	if ext == "" {
		ext = ".bin"
	}
	return uuid.NewString() + ext
}
