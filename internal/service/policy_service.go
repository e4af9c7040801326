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

type policyStore interface {
	GetByCode(ctx context.Context, code string) (*models.GradingPolicy, error)
	List(ctx context.Context) ([]models.GradingPolicy, error)
	Create(ctx context.Context, policy *models.GradingPolicy) error
	Deactivate(ctx context.Context, id string) error
}

// PolicyService owns grading policy registration and the board-specific
// selection rules the aggregator depends on.
type PolicyService struct {
	repo     policyStore
	validate *validator.Validate
	logger   *zap.Logger
}

// NewPolicyService constructs the policy service.
func NewPolicyService(repo policyStore, validate *validator.Validate, logger *zap.Logger) *PolicyService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyService{repo: repo, validate: validate, logger: logger}
}

// BuiltinPolicies returns the scales seeded on first boot. Bands are
// fixed once a report card references the code; scale revisions are new
// codes, not edits.
func BuiltinPolicies() []models.GradingPolicy {
	return []models.GradingPolicy{
		{
			Code:      models.PolicyCBSETraditional,
			BoardType: string(models.BoardCBSE),
			Domain:    models.DomainPercentage,
			DomainMax: 100,
			Bands: models.GradeBandList{
				{Min: 90, Max: 100, Grade: "A+", Remark: "Outstanding"},
				{Min: 80, Max: 89, Grade: "A", Remark: "Excellent"},
				{Min: 70, Max: 79, Grade: "B+", Remark: "Very Good"},
				{Min: 60, Max: 69, Grade: "B", Remark: "Good"},
				{Min: 50, Max: 59, Grade: "C", Remark: "Satisfactory"},
				{Min: 35, Max: 49, Grade: "D", Remark: "Needs Improvement"},
				{Min: 0, Max: 34, Grade: "F", Remark: "Unsatisfactory"},
			},
			IsActive: true,
		},
		{
			Code:      models.PolicyStateFA,
			BoardType: string(models.BoardState),
			Domain:    models.DomainMarks,
			DomainMax: 20,
			Bands: models.GradeBandList{
				{Min: 19, Max: 20, Grade: "O", Remark: "Outstanding"},
				{Min: 15, Max: 18, Grade: "A", Remark: "Excellent Progress"},
				{Min: 11, Max: 14, Grade: "B", Remark: "Good"},
				{Min: 6, Max: 10, Grade: "C", Remark: "Pass"},
				{Min: 0, Max: 5, Grade: "D", Remark: "Needs Improvement"},
			},
			IsActive: true,
		},
		{
			Code:      models.PolicyStateSA,
			BoardType: string(models.BoardState),
			Domain:    models.DomainPercentage,
			DomainMax: 100,
			Bands: models.GradeBandList{
				{Min: 90, Max: 100, Grade: "O", Remark: "Outstanding"},
				{Min: 72, Max: 89, Grade: "A", Remark: "Excellent Progress"},
				{Min: 52, Max: 71, Grade: "B", Remark: "Good"},
				{Min: 34, Max: 51, Grade: "C", Remark: "Pass"},
				{Min: 0, Max: 33, Grade: "D", Remark: "Needs Improvement"},
			},
			IsActive: true,
		},
	}
}

// SelectPolicyCode resolves the policy an exam group grades with. State
// board formative windows grade raw subject marks; everything else
// grades the aggregate percentage.
func SelectPolicyCode(board models.BoardType, assessment models.AssessmentType) string {
	if board == models.BoardState {
		if assessment == models.AssessmentFormative || assessment == models.AssessmentUnitTest || assessment == models.AssessmentMonthly {
			return models.PolicyStateFA
		}
		return models.PolicyStateSA
	}
	return models.PolicyCBSETraditional
}

// Resolve loads the active policy for an exam group and checks it fits
// the group's assessment domain.
func (s *PolicyService) Resolve(ctx context.Context, board models.BoardType, assessment models.AssessmentType) (*models.GradingPolicy, error) {
	code := SelectPolicyCode(board, assessment)
	policy, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPolicyMismatch.Code, appErrors.ErrPolicyMismatch.Status, "grading policy is malformed")
	}
	return policy, nil
}

// GetByCode returns one policy.
func (s *PolicyService) GetByCode(ctx context.Context, code string) (*models.GradingPolicy, error) {
	return s.repo.GetByCode(ctx, code)
}

// List returns all registered policies.
func (s *PolicyService) List(ctx context.Context) ([]models.GradingPolicy, error) {
	return s.repo.List(ctx)
}

// Create registers a custom policy after validating its band table.
func (s *PolicyService) Create(ctx context.Context, req dto.CreatePolicyRequest) (*models.GradingPolicy, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid policy payload")
	}

	bands := make(models.GradeBandList, 0, len(req.Bands))
	for _, b := range req.Bands {
		bands = append(bands, models.GradeBand{Min: b.Min, Max: b.Max, Grade: b.Grade, Remark: b.Remark})
	}
	policy := &models.GradingPolicy{
		Code:      req.Code,
		BoardType: req.BoardType,
		Domain:    models.GradeDomain(req.Domain),
		DomainMax: req.DomainMax,
		Bands:     bands,
		IsActive:  true,
	}
	if err := policy.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if policy.Domain != models.DomainMarks && policy.Domain != models.DomainPercentage {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown grading domain %q", req.Domain))
	}

	if existing, err := s.repo.GetByCode(ctx, policy.Code); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("policy %s already registered", policy.Code))
	}

	if err := s.repo.Create(ctx, policy); err != nil {
		return nil, err
	}
	s.logger.Info("grading policy registered", zap.String("code", policy.Code), zap.String("board", policy.BoardType))
	return policy, nil
}

// Deactivate retires a policy. Report cards graded under it keep their
// grades; the code simply stops resolving for new runs.
func (s *PolicyService) Deactivate(ctx context.Context, id string) error {
	return s.repo.Deactivate(ctx, id)
}

// Seed inserts any builtin policy missing from storage.
func (s *PolicyService) Seed(ctx context.Context) error {
	for _, policy := range BuiltinPolicies() {
		if _, err := s.repo.GetByCode(ctx, policy.Code); err == nil {
			continue
		}
		seeded := policy
		if err := s.repo.Create(ctx, &seeded); err != nil {
			return fmt.Errorf("seed policy %s: %w", policy.Code, err)
		}
		s.logger.Info("seeded builtin grading policy", zap.String("code", policy.Code))
	}
	return nil
}
