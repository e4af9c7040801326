package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/reportcard-api/internal/models"
	appErrors "github.com/campuskit/reportcard-api/pkg/errors"
)

// MarkRepository reads exam groups, papers and entered marks. Marks are
// written by the marks-entry system upstream; this API only aggregates
// them, so the repository exposes no mark mutation.
type MarkRepository struct {
	db *sqlx.DB
}

// NewMarkRepository constructs repository.
func NewMarkRepository(db *sqlx.DB) *MarkRepository {
	return &MarkRepository{db: db}
}

// GetExamGroup returns an exam group by ID.
func (r *MarkRepository) GetExamGroup(ctx context.Context, id string) (*models.ExamGroup, error) {
	const query = `SELECT id, school_id, name, description, exam_type, assessment_type, term, academic_year,
        start_date, end_date, is_published, created_by, created_at, updated_at
        FROM exam_groups WHERE id = $1`
	var group models.ExamGroup
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam group not found")
		}
		return nil, fmt.Errorf("get exam group: %w", err)
	}
	return &group, nil
}

// ListExamGroups returns the exam groups of a school, newest first.
func (r *MarkRepository) ListExamGroups(ctx context.Context, schoolID string) ([]models.ExamGroup, error) {
	const query = `SELECT id, school_id, name, description, exam_type, assessment_type, term, academic_year,
        start_date, end_date, is_published, created_by, created_at, updated_at
        FROM exam_groups WHERE school_id = $1 ORDER BY start_date DESC`
	var groups []models.ExamGroup
	if err := r.db.SelectContext(ctx, &groups, query, schoolID); err != nil {
		return nil, fmt.Errorf("list exam groups: %w", err)
	}
	return groups, nil
}

// ListPapers returns the papers of an exam group for one section, in
// subject order.
func (r *MarkRepository) ListPapers(ctx context.Context, examGroupID, section string) ([]models.ExamPaper, error) {
	const query = `SELECT id, exam_group_id, school_id, section, subject, max_marks, pass_marks, exam_date, created_at, updated_at
        FROM exam_papers
        WHERE exam_group_id = $1 AND section = $2
        ORDER BY subject`
	var papers []models.ExamPaper
	if err := r.db.SelectContext(ctx, &papers, query, examGroupID, section); err != nil {
		return nil, fmt.Errorf("list exam papers: %w", err)
	}
	return papers, nil
}

// ListMarksForStudent returns every mark of one student across the
// group's papers, keyed usable to join against papers.
func (r *MarkRepository) ListMarksForStudent(ctx context.Context, examGroupID, studentID string) ([]models.Mark, error) {
	const query = `SELECT m.id, m.exam_paper_id, m.student_id, m.school_id, m.marks_obtained, m.is_absent,
        m.remarks, m.entered_by, m.entered_at, m.updated_at
        FROM marks m
        JOIN exam_papers ep ON ep.id = m.exam_paper_id
        WHERE ep.exam_group_id = $1 AND m.student_id = $2`
	var marks []models.Mark
	if err := r.db.SelectContext(ctx, &marks, query, examGroupID, studentID); err != nil {
		return nil, fmt.Errorf("list marks for student: %w", err)
	}
	return marks, nil
}

// ListStudentIDsWithMarks returns the distinct active students with at
// least one mark row in the exam group, the population a bulk run
// aggregates. A non-empty sectionID narrows the roster.
func (r *MarkRepository) ListStudentIDsWithMarks(ctx context.Context, examGroupID string, sectionID *string) ([]string, error) {
	query := `SELECT DISTINCT m.student_id
        FROM marks m
        JOIN exam_papers ep ON ep.id = m.exam_paper_id
        JOIN students st ON st.id = m.student_id
        WHERE ep.exam_group_id = $1 AND st.is_active`
	args := []interface{}{examGroupID}
	if sectionID != nil && *sectionID != "" {
		query += " AND st.section_id = $2"
		args = append(args, *sectionID)
	}
	query += " ORDER BY m.student_id"
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list students with marks: %w", err)
	}
	return ids, nil
}
