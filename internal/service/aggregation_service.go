package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/reportcard-api/internal/models"
	appErrors "github.com/campuskit/reportcard-api/pkg/errors"
)

type markStore interface {
	GetExamGroup(ctx context.Context, id string) (*models.ExamGroup, error)
	ListExamGroups(ctx context.Context, schoolID string) ([]models.ExamGroup, error)
	ListPapers(ctx context.Context, examGroupID, section string) ([]models.ExamPaper, error)
	ListMarksForStudent(ctx context.Context, examGroupID, studentID string) ([]models.Mark, error)
	ListStudentIDsWithMarks(ctx context.Context, examGroupID string, sectionID *string) ([]string, error)
}

type reportCardStore interface {
	Upsert(ctx context.Context, card *models.ReportCard) error
	GetByKey(ctx context.Context, studentID, examGroupID string) (*models.ReportCard, error)
	ListByExamGroup(ctx context.Context, examGroupID string) ([]models.ReportCard, error)
}

type studentStore interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]models.Student, error)
	GetSection(ctx context.Context, id string) (*models.Section, error)
	GetSchool(ctx context.Context, id string) (*models.School, error)
}

type policyResolver interface {
	Resolve(ctx context.Context, board models.BoardType, assessment models.AssessmentType) (*models.GradingPolicy, error)
}

// AggregationConfig tunes the bulk run.
type AggregationConfig struct {
	StudentFanout    int
	MarkFetchRetries int
}

// AggregationService computes report cards from entered marks. A bulk
// run fans out per student, waits for every aggregation to settle, then
// assigns ranks in a single pass so rank never reflects a half-finished
// group.
type AggregationService struct {
	marks    markStore
	cards    reportCardStore
	students studentStore
	policies policyResolver
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      AggregationConfig

	mu         sync.Mutex
	groupLocks map[string]*sync.Mutex
}

// NewAggregationService constructs the aggregation service.
func NewAggregationService(marks markStore, cards reportCardStore, students studentStore, policies policyResolver, metrics *MetricsService, logger *zap.Logger, cfg AggregationConfig) *AggregationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StudentFanout <= 0 {
		cfg.StudentFanout = 8
	}
	if cfg.MarkFetchRetries < 0 {
		cfg.MarkFetchRetries = 0
	}
	return &AggregationService{
		marks:      marks,
		cards:      cards,
		students:   students,
		policies:   policies,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
		groupLocks: make(map[string]*sync.Mutex),
	}
}

// lockGroup serialises bulk runs per exam group. Two concurrent runs for
// the same group would race the rank pass; runs for different groups
// proceed independently.
func (s *AggregationService) lockGroup(examGroupID string) func() {
	s.mu.Lock()
	lock, ok := s.groupLocks[examGroupID]
	if !ok {
		lock = &sync.Mutex{}
		s.groupLocks[examGroupID] = lock
	}
	s.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

// ListExamGroups returns the school's exam groups.
func (s *AggregationService) ListExamGroups(ctx context.Context, schoolID string) ([]models.ExamGroup, error) {
	return s.marks.ListExamGroups(ctx, schoolID)
}

// Aggregate computes and persists the report card for one student in one
// exam group. Re-running overwrites the previous aggregate for the same
// (student, exam group) key. Published cards are immutable here; they
// only change through the lifecycle's audited regeneration.
func (s *AggregationService) Aggregate(ctx context.Context, studentID, examGroupID string) (*models.ReportCard, error) {
	group, err := s.marks.GetExamGroup(ctx, examGroupID)
	if err != nil {
		return nil, err
	}
	school, err := s.students.GetSchool(ctx, group.SchoolID)
	if err != nil {
		return nil, err
	}
	policy, err := s.policies.Resolve(ctx, school.BoardType, group.AssessmentType)
	if err != nil {
		return nil, err
	}

	previousRank := 0
	if existing, err := s.cards.GetByKey(ctx, studentID, examGroupID); err == nil {
		if existing.Status == models.ReportStatusPublished || existing.Status == models.ReportStatusDistributed {
			return nil, appErrors.Clone(appErrors.ErrReportFinalized, "report card is published; regenerate through the lifecycle endpoint")
		}
		previousRank = existing.Rank
	}

	draft, err := s.buildDraft(ctx, group, policy, studentID)
	if err != nil {
		return nil, err
	}
	// A single-student run cannot re-rank the group; the previous rank
	// stands until the next bulk pass.
	draft.Rank = previousRank

	card := draftToCard(draft)
	card.Status = models.ReportStatusGenerated
	card.GeneratedAt = time.Now().UTC()
	if err := s.cards.Upsert(ctx, card); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ReportCardGenerated(string(group.AssessmentType))
	}
	return card, nil
}

// GenerateReports aggregates every student with marks in the exam group,
// then ranks the group. Partial failures do not abort the run; the
// result names each failed student.
func (s *AggregationService) GenerateReports(ctx context.Context, examGroupID string, sectionID *string) (*models.BatchResult, error) {
	unlock := s.lockGroup(examGroupID)
	defer unlock()

	group, err := s.marks.GetExamGroup(ctx, examGroupID)
	if err != nil {
		return nil, err
	}
	school, err := s.students.GetSchool(ctx, group.SchoolID)
	if err != nil {
		return nil, err
	}
	policy, err := s.policies.Resolve(ctx, school.BoardType, group.AssessmentType)
	if err != nil {
		return nil, err
	}

	studentIDs, err := s.marks.ListStudentIDsWithMarks(ctx, examGroupID, sectionID)
	if err != nil {
		return nil, err
	}
	if len(studentIDs) == 0 {
		return &models.BatchResult{ExamGroupID: examGroupID}, nil
	}

	type outcome struct {
		draft *models.ReportCardDraft
		fail  *models.BatchFailure
	}
	outcomes := make([]outcome, len(studentIDs))
	sem := make(chan struct{}, s.cfg.StudentFanout)
	var wg sync.WaitGroup

	for i, studentID := range studentIDs {
		wg.Add(1)
		go func(idx int, id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			draft, err := s.buildDraft(ctx, group, policy, id)
			if err != nil {
				outcomes[idx] = outcome{fail: &models.BatchFailure{StudentID: id, Reason: err.Error()}}
				return
			}
			outcomes[idx] = outcome{draft: draft}
		}(i, studentID)
	}
	wg.Wait()

	drafts := make([]*models.ReportCardDraft, 0, len(studentIDs))
	failures := make([]models.BatchFailure, 0)
	for _, o := range outcomes {
		switch {
		case o.draft != nil:
			drafts = append(drafts, o.draft)
		case o.fail != nil:
			failures = append(failures, *o.fail)
		}
	}

	assignRanks(drafts)

	persisted := 0
	for _, draft := range drafts {
		if existing, err := s.cards.GetByKey(ctx, draft.StudentID, examGroupID); err == nil {
			if existing.Status == models.ReportStatusPublished || existing.Status == models.ReportStatusDistributed {
				failures = append(failures, models.BatchFailure{StudentID: draft.StudentID, Reason: "report card already published"})
				continue
			}
		}
		card := draftToCard(draft)
		card.Status = models.ReportStatusGenerated
		card.GeneratedAt = time.Now().UTC()
		if err := s.cards.Upsert(ctx, card); err != nil {
			failures = append(failures, models.BatchFailure{StudentID: draft.StudentID, Reason: err.Error()})
			continue
		}
		persisted++
		if s.metrics != nil {
			s.metrics.ReportCardGenerated(string(group.AssessmentType))
		}
	}

	result := &models.BatchResult{ExamGroupID: examGroupID, Succeeded: persisted, Failed: failures}
	if len(failures) > 0 {
		s.logger.Warn("bulk generation finished with failures",
			zap.String("exam_group_id", examGroupID),
			zap.Int("succeeded", persisted),
			zap.Int("failed", len(failures)))
	}
	return result, nil
}

// buildDraft aggregates one student without touching storage state.
func (s *AggregationService) buildDraft(ctx context.Context, group *models.ExamGroup, policy *models.GradingPolicy, studentID string) (*models.ReportCardDraft, error) {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	section, err := s.students.GetSection(ctx, student.SectionID)
	if err != nil {
		return nil, err
	}
	papers, err := s.marks.ListPapers(ctx, group.ID, section.Name)
	if err != nil {
		return nil, err
	}
	marks, err := s.fetchMarks(ctx, group.ID, studentID)
	if err != nil {
		return nil, err
	}
	byPaper := make(map[string]models.Mark, len(marks))
	for _, m := range marks {
		byPaper[m.ExamPaperID] = m
	}

	draft := &models.ReportCardDraft{
		StudentID:   studentID,
		ExamGroupID: group.ID,
		SchoolID:    group.SchoolID,
		PolicyCode:  policy.Code,
	}

	for _, paper := range papers {
		if policy.Domain == models.DomainMarks && paper.MaxMarks != policy.DomainMax {
			return nil, appErrors.Clone(appErrors.ErrPolicyMismatch,
				fmt.Sprintf("paper %s graded out of %.0f but policy %s expects %.0f", paper.Subject, paper.MaxMarks, policy.Code, policy.DomainMax))
		}

		mark, entered := byPaper[paper.ID]
		obtained := 0.0
		absent := false
		if entered {
			obtained = mark.Obtained()
			absent = mark.IsAbsent
		}

		subjectValue := obtained
		if policy.Domain == models.DomainPercentage {
			subjectValue = 0
			if paper.MaxMarks > 0 {
				subjectValue = obtained / paper.MaxMarks * 100
			}
		}
		band, err := policy.Grade(subjectValue)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrOutOfRangeGrade.Code, appErrors.ErrOutOfRangeGrade.Status,
				fmt.Sprintf("subject %s of student %s", paper.Subject, studentID))
		}

		draft.Subjects = append(draft.Subjects, models.SubjectResult{
			Subject:       paper.Subject,
			MaxMarks:      paper.MaxMarks,
			MarksObtained: obtained,
			IsAbsent:      absent,
			Grade:         band.Grade,
			Remark:        band.Remark,
		})
		draft.TotalMarks += paper.MaxMarks
		draft.ObtainedMarks += obtained
	}

	// A zero denominator yields zero percent, never a division error.
	if draft.TotalMarks > 0 {
		draft.Percentage = draft.ObtainedMarks / draft.TotalMarks * 100
	}

	// No papers yet is a legal transient state: the draft carries zero
	// totals and the lowest-band grade for value zero.
	overallValue := draft.Percentage
	if policy.Domain == models.DomainMarks && len(papers) > 0 {
		overallValue = draft.ObtainedMarks / float64(len(papers))
	}
	band, err := policy.Grade(overallValue)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrOutOfRangeGrade.Code, appErrors.ErrOutOfRangeGrade.Status,
			fmt.Sprintf("overall grade of student %s", studentID))
	}
	draft.Grade = band.Grade
	draft.Remark = band.Remark
	return draft, nil
}

// fetchMarks retries transient mark reads before giving up on a student.
func (s *AggregationService) fetchMarks(ctx context.Context, examGroupID, studentID string) ([]models.Mark, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MarkFetchRetries; attempt++ {
		marks, err := s.marks.ListMarksForStudent(ctx, examGroupID, studentID)
		if err == nil {
			return marks, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("fetch marks for %s: %w", studentID, lastErr)
}

// assignRanks applies competition ranking over percentage: equal
// percentages share a rank and the next distinct value skips past them.
func assignRanks(drafts []*models.ReportCardDraft) {
	sort.SliceStable(drafts, func(i, j int) bool {
		if drafts[i].Percentage != drafts[j].Percentage {
			return drafts[i].Percentage > drafts[j].Percentage
		}
		return drafts[i].StudentID < drafts[j].StudentID
	})
	for i := range drafts {
		if i > 0 && drafts[i].Percentage == drafts[i-1].Percentage {
			drafts[i].Rank = drafts[i-1].Rank
			continue
		}
		drafts[i].Rank = i + 1
	}
}

func draftToCard(draft *models.ReportCardDraft) *models.ReportCard {
	return &models.ReportCard{
		StudentID:     draft.StudentID,
		ExamGroupID:   draft.ExamGroupID,
		SchoolID:      draft.SchoolID,
		PolicyCode:    draft.PolicyCode,
		TotalMarks:    draft.TotalMarks,
		ObtainedMarks: draft.ObtainedMarks,
		Percentage:    draft.Percentage,
		Grade:         draft.Grade,
		Remark:        draft.Remark,
		Rank:          draft.Rank,
		Subjects:      draft.Subjects,
	}
}
