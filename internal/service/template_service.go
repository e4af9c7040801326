package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuskit/reportcard-api/internal/dto"
	"github.com/campuskit/reportcard-api/internal/models"
	appErrors "github.com/campuskit/reportcard-api/pkg/errors"
)

type templateAdminStore interface {
	templateStore
	List(ctx context.Context, board *models.BoardType) ([]models.BoardTemplate, error)
	Create(ctx context.Context, tpl *models.BoardTemplate) error
	Update(ctx context.Context, tpl *models.BoardTemplate) error
}

// TemplateService manages board templates. Template bodies are checked
// against the render allow list at save time so a bad template fails on
// upload rather than on the first render.
type TemplateService struct {
	repo     templateAdminStore
	policies policyStore
	validate *validator.Validate
	logger   *zap.Logger
}

// NewTemplateService constructs the template service.
func NewTemplateService(repo templateAdminStore, policies policyStore, validate *validator.Validate, logger *zap.Logger) *TemplateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateService{repo: repo, policies: policies, validate: validate, logger: logger}
}

// Get returns one template.
func (s *TemplateService) Get(ctx context.Context, id string) (*models.BoardTemplate, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns templates, optionally narrowed to one board.
func (s *TemplateService) List(ctx context.Context, board *models.BoardType) ([]models.BoardTemplate, error) {
	return s.repo.List(ctx, board)
}

// Create registers a template after checking its body and policy code.
func (s *TemplateService) Create(ctx context.Context, req dto.CreateTemplateRequest) (*models.BoardTemplate, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template payload")
	}
	tpl := &models.BoardTemplate{
		Name:       req.Name,
		BoardType:  req.BoardType,
		PolicyCode: req.PolicyCode,
		Body:       req.Body,
		CSS:        req.CSS,
		Fields:     req.Fields,
		IsDefault:  req.IsDefault,
		IsActive:   true,
	}
	if err := s.checkTemplate(ctx, tpl); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, tpl); err != nil {
		return nil, err
	}
	s.logger.Info("template created",
		zap.String("template_id", tpl.ID),
		zap.String("board", string(tpl.BoardType)),
		zap.Bool("default", tpl.IsDefault))
	return tpl, nil
}

// Update replaces the mutable fields of a template.
func (s *TemplateService) Update(ctx context.Context, id string, req dto.UpdateTemplateRequest) (*models.BoardTemplate, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template payload")
	}
	tpl, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tpl.Name = req.Name
	tpl.PolicyCode = req.PolicyCode
	tpl.Body = req.Body
	tpl.CSS = req.CSS
	tpl.Fields = req.Fields
	tpl.IsDefault = req.IsDefault
	tpl.IsActive = req.IsActive
	if err := s.checkTemplate(ctx, tpl); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

// checkTemplate rejects bodies referencing placeholders outside the
// allow list and policy codes that do not resolve.
func (s *TemplateService) checkTemplate(ctx context.Context, tpl *models.BoardTemplate) error {
	allowed := allowedPlaceholders(tpl)
	for _, match := range placeholderPattern.FindAllStringSubmatch(tpl.Body, -1) {
		if _, ok := allowed[match[1]]; !ok {
			return appErrors.Clone(appErrors.ErrRenderSanitization,
				fmt.Sprintf("template body references placeholder %q outside its allow list", match[1]))
		}
	}
	if s.policies != nil {
		if _, err := s.policies.GetByCode(ctx, tpl.PolicyCode); err != nil {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("policy code %s does not resolve", tpl.PolicyCode))
		}
	}
	return nil
}
