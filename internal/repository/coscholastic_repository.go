package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/reportcard-api/internal/models"
	appErrors "github.com/campuskit/reportcard-api/pkg/errors"
)

// CoScholasticRepository persists co-scholastic trait records, unique per
// (student_id, term, academic_year).
type CoScholasticRepository struct {
	db *sqlx.DB
}

// NewCoScholasticRepository constructs repository.
func NewCoScholasticRepository(db *sqlx.DB) *CoScholasticRepository {
	return &CoScholasticRepository{db: db}
}

const coScholasticColumns = `id, student_id, school_id, term, academic_year, traits, status, updated_by, created_at, updated_at`

// Get returns the record for one student in one term.
func (r *CoScholasticRepository) Get(ctx context.Context, studentID, term, academicYear string) (*models.CoScholasticRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM coscholastic_records WHERE student_id = $1 AND term = $2 AND academic_year = $3`, coScholasticColumns)
	var record models.CoScholasticRecord
	if err := r.db.GetContext(ctx, &record, query, studentID, term, academicYear); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "co-scholastic record not found")
		}
		return nil, fmt.Errorf("get co-scholastic record: %w", err)
	}
	return &record, nil
}

// ListBySection returns records for every student of a section in one term.
func (r *CoScholasticRepository) ListBySection(ctx context.Context, sectionID, term, academicYear string) ([]models.CoScholasticRecord, error) {
	const query = `SELECT c.id, c.student_id, c.school_id, c.term, c.academic_year, c.traits, c.status, c.updated_by, c.created_at, c.updated_at
        FROM coscholastic_records c
        JOIN students st ON st.id = c.student_id
        WHERE st.section_id = $1 AND c.term = $2 AND c.academic_year = $3
        ORDER BY st.roll_no`
	var records []models.CoScholasticRecord
	if err := r.db.SelectContext(ctx, &records, query, sectionID, term, academicYear); err != nil {
		return nil, fmt.Errorf("list co-scholastic records: %w", err)
	}
	return records, nil
}

// Upsert inserts or refreshes the record for its (student, term, year) key.
func (r *CoScholasticRepository) Upsert(ctx context.Context, record *models.CoScholasticRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.UpdatedAt = now
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	const query = `INSERT INTO coscholastic_records (id, student_id, school_id, term, academic_year, traits, status, updated_by, created_at, updated_at)
        VALUES (:id, :student_id, :school_id, :term, :academic_year, :traits, :status, :updated_by, :created_at, :updated_at)
        ON CONFLICT (student_id, term, academic_year)
        DO UPDATE SET traits = EXCLUDED.traits,
            status = EXCLUDED.status,
            updated_by = EXCLUDED.updated_by,
            updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert co-scholastic record: %w", err)
	}
	return nil
}
