package services

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coachdesk/coachdesk-backend/internal/models"
	"github.com/coachdesk/coachdesk-backend/internal/repository"
)

type templateStore interface {
	GetByID(ctx context.Context, templateID int64) (*models.ProgramTemplate, error)
	ListByCoachID(ctx context.Context, coachID int64, limit int, offset int) ([]models.ProgramTemplate, error)
	ListElements(ctx context.Context, templateID int64) ([]models.TemplateElement, error)
	Delete(ctx context.Context, templateID int64) (bool, error)
	Stats(ctx context.Context, coachID int64) (*models.TemplateStats, error)
}

type enrollmentCreator interface {
	Create(ctx context.Context, templateID int64, clientID int64, coachID int64) (*models.Enrollment, error)
	Exists(ctx context.Context, templateID int64, clientID int64) (bool, error)
	ListByClientID(ctx context.Context, clientID int64, coachID int64) ([]models.EnrollmentDetail, error)
	ListEnrolledForTemplate(ctx context.Context, templateID int64, coachID int64) ([]models.EnrolledClient, error)
	HasActiveForTemplate(ctx context.Context, templateID int64) (bool, error)
}

type ElementInput struct {
	Kind          string
	Title         string
	Week          int
	Day           int
	ScheduledTime string
	Data          models.ElementData
}

type CreateTemplateInput struct {
	Name        string
	Description *string
	Duration    int
	Elements    []ElementInput
}

// ProgramService owns the template catalog and enrollment creation. Template
// writes that touch elements run inside a transaction so a template is never
// visible with half its elements.
type ProgramService struct {
	db          *pgxpool.Pool
	templates   templateStore
	enrollments enrollmentCreator
	clients     clientReader
}

func NewProgramService(
	db *pgxpool.Pool,
	templates templateStore,
	enrollments enrollmentCreator,
	clients clientReader,
) *ProgramService {
	return &ProgramService{
		db:          db,
		templates:   templates,
		enrollments: enrollments,
		clients:     clients,
	}
}

func (s *ProgramService) CreateTemplate(
	ctx context.Context,
	coachID int64,
	input CreateTemplateInput,
) (*models.TemplateDetail, error) {
	name := strings.TrimSpace(input.Name)
	if coachID <= 0 || name == "" || input.Duration <= 0 {
		return nil, ErrInvalidInput
	}
	if err := validateElements(input.Elements, input.Duration); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txTemplateRepo := repository.NewTemplateRepository(tx)

	template, err := txTemplateRepo.Create(ctx, repository.CreateTemplateInput{
		CoachID:     coachID,
		Name:        name,
		Description: trimOptional(input.Description),
		Duration:    input.Duration,
	})
	if err != nil {
		return nil, err
	}

	elements := make([]models.TemplateElement, 0, len(input.Elements))
	for _, element := range input.Elements {
		created, err := txTemplateRepo.CreateElement(ctx, template.ID, elementInputToRepo(element))
		if err != nil {
			return nil, err
		}
		elements = append(elements, *created)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &models.TemplateDetail{ProgramTemplate: *template, Elements: elements}, nil
}

func (s *ProgramService) GetTemplate(
	ctx context.Context,
	actorID int64,
	role string,
	templateID int64,
) (*models.TemplateDetail, error) {
	template, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !canManageEnrollment(role, actorID, template.CoachID) {
		return nil, ErrForbidden
	}

	elements, err := s.templates.ListElements(ctx, templateID)
	if err != nil {
		return nil, err
	}

	return &models.TemplateDetail{ProgramTemplate: *template, Elements: elements}, nil
}

func (s *ProgramService) ListTemplates(
	ctx context.Context,
	coachID int64,
	limit int,
	offset int,
) ([]models.ProgramTemplate, error) {
	return s.templates.ListByCoachID(ctx, coachID, limit, offset)
}

// UpdateTemplate replaces the template definition, elements included. Once any
// enrollment has started, elements are frozen: the delivery pipeline treats
// them as immutable.
func (s *ProgramService) UpdateTemplate(
	ctx context.Context,
	actorID int64,
	role string,
	templateID int64,
	input CreateTemplateInput,
) (*models.TemplateDetail, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || input.Duration <= 0 {
		return nil, ErrInvalidInput
	}
	if err := validateElements(input.Elements, input.Duration); err != nil {
		return nil, err
	}

	template, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !canManageEnrollment(role, actorID, template.CoachID) {
		return nil, ErrForbidden
	}

	inUse, err := s.enrollments.HasActiveForTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, ErrTemplateInUse
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txTemplateRepo := repository.NewTemplateRepository(tx)

	updated, err := txTemplateRepo.Update(ctx, templateID, name, trimOptional(input.Description), input.Duration)
	if err != nil {
		return nil, err
	}

	if err := txTemplateRepo.DeleteElements(ctx, templateID); err != nil {
		return nil, err
	}

	elements := make([]models.TemplateElement, 0, len(input.Elements))
	for _, element := range input.Elements {
		created, err := txTemplateRepo.CreateElement(ctx, templateID, elementInputToRepo(element))
		if err != nil {
			return nil, err
		}
		elements = append(elements, *created)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &models.TemplateDetail{ProgramTemplate: *updated, Elements: elements}, nil
}

func (s *ProgramService) DeleteTemplate(
	ctx context.Context,
	actorID int64,
	role string,
	templateID int64,
) error {
	template, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		return err
	}
	if !canManageEnrollment(role, actorID, template.CoachID) {
		return ErrForbidden
	}

	inUse, err := s.enrollments.HasActiveForTemplate(ctx, templateID)
	if err != nil {
		return err
	}
	if inUse {
		return ErrTemplateInUse
	}

	deleted, err := s.templates.Delete(ctx, templateID)
	if err != nil {
		return err
	}
	if !deleted {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *ProgramService) DuplicateTemplate(
	ctx context.Context,
	actorID int64,
	role string,
	templateID int64,
	newName string,
) (*models.TemplateDetail, error) {
	original, err := s.GetTemplate(ctx, actorID, role, templateID)
	if err != nil {
		return nil, err
	}

	elements := make([]ElementInput, 0, len(original.Elements))
	for _, element := range original.Elements {
		elements = append(elements, ElementInput{
			Kind:          element.Kind,
			Title:         element.Title,
			Week:          element.Week,
			Day:           element.Day,
			ScheduledTime: element.ScheduledTime,
			Data:          element.Data,
		})
	}

	return s.CreateTemplate(ctx, actorID, CreateTemplateInput{
		Name:        newName,
		Description: original.Description,
		Duration:    original.Duration,
		Elements:    elements,
	})
}

func (s *ProgramService) TemplateStats(ctx context.Context, coachID int64) (*models.TemplateStats, error) {
	return s.templates.Stats(ctx, coachID)
}

// EnrollClient creates an enrollment in status enrolled; the program does not
// begin until the coach explicitly starts it.
func (s *ProgramService) EnrollClient(
	ctx context.Context,
	actorID int64,
	role string,
	templateID int64,
	clientID int64,
) (*models.Enrollment, error) {
	if templateID <= 0 || clientID <= 0 {
		return nil, ErrInvalidInput
	}

	template, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !canManageEnrollment(role, actorID, template.CoachID) {
		return nil, ErrForbidden
	}

	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if client.CoachID != template.CoachID {
		return nil, ErrForbidden
	}

	exists, err := s.enrollments.Exists(ctx, templateID, clientID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrConflict
	}

	return s.enrollments.Create(ctx, templateID, clientID, template.CoachID)
}

func (s *ProgramService) ListEnrolledClients(
	ctx context.Context,
	actorID int64,
	role string,
	templateID int64,
) ([]models.EnrolledClient, error) {
	template, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !canManageEnrollment(role, actorID, template.CoachID) {
		return nil, ErrForbidden
	}

	return s.enrollments.ListEnrolledForTemplate(ctx, templateID, template.CoachID)
}

func (s *ProgramService) ListClientPrograms(
	ctx context.Context,
	actorID int64,
	role string,
	clientID int64,
) ([]models.EnrollmentDetail, error) {
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if !canManageEnrollment(role, actorID, client.CoachID) {
		return nil, ErrForbidden
	}

	return s.enrollments.ListByClientID(ctx, clientID, client.CoachID)
}

func validateElements(elements []ElementInput, duration int) error {
	for _, element := range elements {
		if !models.ValidElementKind(element.Kind) {
			return ErrInvalidInput
		}
		if strings.TrimSpace(element.Title) == "" {
			return ErrInvalidInput
		}
		if element.Week < 1 || element.Week > duration {
			return ErrInvalidInput
		}
		if element.Day < 1 || element.Day > 7 {
			return ErrInvalidInput
		}
	}
	return nil
}

func elementInputToRepo(element ElementInput) repository.CreateElementInput {
	scheduledTime := strings.TrimSpace(element.ScheduledTime)
	if scheduledTime == "" {
		scheduledTime = "09:00:00"
	}
	return repository.CreateElementInput{
		Kind:          element.Kind,
		Title:         strings.TrimSpace(element.Title),
		Week:          element.Week,
		Day:           element.Day,
		ScheduledTime: scheduledTime,
		Data:          element.Data,
	}
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
