package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuskit/reportcard-api/internal/dto"
	"github.com/campuskit/reportcard-api/internal/models"
	appErrors "github.com/campuskit/reportcard-api/pkg/errors"
)

type coScholasticStore interface {
	Get(ctx context.Context, studentID, term, academicYear string) (*models.CoScholasticRecord, error)
	ListBySection(ctx context.Context, sectionID, term, academicYear string) ([]models.CoScholasticRecord, error)
	Upsert(ctx context.Context, record *models.CoScholasticRecord) error
}

// CoScholasticService manages trait grading. Drafts may be partial;
// completing a record requires every trait graded with a valid letter.
type CoScholasticService struct {
	repo     coScholasticStore
	students studentStore
	validate *validator.Validate
	logger   *zap.Logger
}

// NewCoScholasticService constructs the co-scholastic service.
func NewCoScholasticService(repo coScholasticStore, students studentStore, validate *validator.Validate, logger *zap.Logger) *CoScholasticService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CoScholasticService{repo: repo, students: students, validate: validate, logger: logger}
}

// Upsert stores trait grades for one student and term, merging into any
// existing draft. Completed records reopen to draft when edited.
func (s *CoScholasticService) Upsert(ctx context.Context, req dto.UpsertCoScholasticRequest, actorID string) (*models.CoScholasticRecord, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid co-scholastic payload")
	}
	if err := validateTraits(req.Traits); err != nil {
		return nil, err
	}
	student, err := s.students.GetByID(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.Get(ctx, req.StudentID, req.Term, req.AcademicYear)
	if err != nil {
		record = &models.CoScholasticRecord{
			StudentID:    req.StudentID,
			SchoolID:     student.SchoolID,
			Term:         req.Term,
			AcademicYear: req.AcademicYear,
			Traits:       models.TraitGrades{},
		}
	}
	if record.Traits == nil {
		record.Traits = models.TraitGrades{}
	}
	for key, grade := range req.Traits {
		record.Traits[key] = strings.ToUpper(grade)
	}
	record.Status = models.CoScholasticDraft
	if actorID != "" {
		record.UpdatedBy = &actorID
	}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Complete marks a record finished. The error names every missing trait
// so the teacher can fill the exact gaps.
func (s *CoScholasticService) Complete(ctx context.Context, req dto.CompleteCoScholasticRequest, actorID string) (*models.CoScholasticRecord, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid co-scholastic payload")
	}
	record, err := s.repo.Get(ctx, req.StudentID, req.Term, req.AcademicYear)
	if err != nil {
		return nil, err
	}
	if missing := record.Traits.Missing(); len(missing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrIncompleteTraits,
			fmt.Sprintf("traits not yet graded: %s", strings.Join(missing, ", ")))
	}
	record.Status = models.CoScholasticCompleted
	if actorID != "" {
		record.UpdatedBy = &actorID
	}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, err
	}
	s.logger.Info("co-scholastic record completed",
		zap.String("student_id", record.StudentID),
		zap.String("term", record.Term))
	return record, nil
}

// Get returns one student's record.
func (s *CoScholasticService) Get(ctx context.Context, studentID, term, academicYear string) (*models.CoScholasticRecord, error) {
	return s.repo.Get(ctx, studentID, term, academicYear)
}

// ListBySection returns the records of a section for review screens.
func (s *CoScholasticService) ListBySection(ctx context.Context, sectionID, term, academicYear string) ([]models.CoScholasticRecord, error) {
	return s.repo.ListBySection(ctx, sectionID, term, academicYear)
}

func validateTraits(traits models.TraitGrades) error {
	known := make(map[string]struct{}, len(models.CoScholasticTraits))
	for _, key := range models.CoScholasticTraits {
		known[key] = struct{}{}
	}
	valid := make(map[string]struct{}, len(models.CoScholasticGrades))
	for _, g := range models.CoScholasticGrades {
		valid[g] = struct{}{}
	}
	for key, grade := range traits {
		if _, ok := known[key]; !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown trait %q", key))
		}
		if _, ok := valid[strings.ToUpper(grade)]; !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("trait %q has invalid grade %q", key, grade))
		}
	}
	return nil
}
