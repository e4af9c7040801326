package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/reportcard-api/internal/models"
	appErrors "github.com/campuskit/reportcard-api/pkg/errors"
)

// StudentRepository reads student and section data owned by the student
// information system upstream.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, school_id, section_id, admission_no, roll_no, first_name, last_name,
        father_name, mother_name, date_of_birth, academic_year, is_active, created_at, updated_at`

// GetByID fetches one student.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1`, studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &student, nil
}

// GetByIDs fetches a batch of students keyed by ID.
func (r *StudentRepository) GetByIDs(ctx context.Context, ids []string) (map[string]models.Student, error) {
	result := make(map[string]models.Student, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id IN (%s)`, studentColumns, strings.Join(placeholders, ","))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get students: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var student models.Student
		if err := rows.StructScan(&student); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		result[student.ID] = student
	}
	return result, nil
}

// ListBySection returns the active students of a section in roll number order.
func (r *StudentRepository) ListBySection(ctx context.Context, sectionID string) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE section_id = $1 AND is_active ORDER BY roll_no`, studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, sectionID); err != nil {
		return nil, fmt.Errorf("list students by section: %w", err)
	}
	return students, nil
}

// GetSection fetches a section by ID.
func (r *StudentRepository) GetSection(ctx context.Context, id string) (*models.Section, error) {
	const query = `SELECT id, school_id, class_name, name, created_at FROM sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, fmt.Errorf("get section: %w", err)
	}
	return &section, nil
}

// GetSchool fetches a school by ID.
func (r *StudentRepository) GetSchool(ctx context.Context, id string) (*models.School, error) {
	const query = `SELECT id, name, board_type, address, created_at, updated_at FROM schools WHERE id = $1`
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, fmt.Errorf("get school: %w", err)
	}
	return &school, nil
}
