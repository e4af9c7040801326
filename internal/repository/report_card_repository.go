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

// ReportCardRepository persists aggregated report cards, unique per
// (student_id, exam_group_id).
type ReportCardRepository struct {
	db *sqlx.DB
}

// NewReportCardRepository constructs repository.
func NewReportCardRepository(db *sqlx.DB) *ReportCardRepository {
	return &ReportCardRepository{db: db}
}

const reportCardColumns = `id, student_id, exam_group_id, school_id, template_id, policy_code,
        total_marks, obtained_marks, percentage, grade, remark, rank, subjects, status,
        generated_at, published_at, created_at, updated_at`

// Upsert inserts or refreshes the report card for its (student, exam
// group) key. The row mirrors the card including published_at, so a
// regenerated card clears its publish timestamp; guarded status moves
// go through UpdateStatus.
func (r *ReportCardRepository) Upsert(ctx context.Context, card *models.ReportCard) error {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if card.GeneratedAt.IsZero() {
		card.GeneratedAt = now
	}
	card.UpdatedAt = now
	const query = `INSERT INTO report_cards (id, student_id, exam_group_id, school_id, template_id, policy_code,
            total_marks, obtained_marks, percentage, grade, remark, rank, subjects, status, generated_at, published_at, created_at, updated_at)
        VALUES (:id, :student_id, :exam_group_id, :school_id, :template_id, :policy_code,
            :total_marks, :obtained_marks, :percentage, :grade, :remark, :rank, :subjects, :status, :generated_at, :published_at, :generated_at, :updated_at)
        ON CONFLICT (student_id, exam_group_id)
        DO UPDATE SET total_marks = EXCLUDED.total_marks,
            obtained_marks = EXCLUDED.obtained_marks,
            percentage = EXCLUDED.percentage,
            grade = EXCLUDED.grade,
            remark = EXCLUDED.remark,
            rank = EXCLUDED.rank,
            subjects = EXCLUDED.subjects,
            policy_code = EXCLUDED.policy_code,
            status = EXCLUDED.status,
            generated_at = EXCLUDED.generated_at,
            published_at = EXCLUDED.published_at,
            updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, card); err != nil {
		return fmt.Errorf("upsert report card: %w", err)
	}
	return nil
}

// GetByKey fetches the report card for one student in one exam group.
func (r *ReportCardRepository) GetByKey(ctx context.Context, studentID, examGroupID string) (*models.ReportCard, error) {
	query := fmt.Sprintf(`SELECT %s FROM report_cards WHERE student_id = $1 AND exam_group_id = $2`, reportCardColumns)
	var card models.ReportCard
	if err := r.db.GetContext(ctx, &card, query, studentID, examGroupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report card not found")
		}
		return nil, fmt.Errorf("get report card: %w", err)
	}
	return &card, nil
}

// GetByID fetches a report card by primary key.
func (r *ReportCardRepository) GetByID(ctx context.Context, id string) (*models.ReportCard, error) {
	query := fmt.Sprintf(`SELECT %s FROM report_cards WHERE id = $1`, reportCardColumns)
	var card models.ReportCard
	if err := r.db.GetContext(ctx, &card, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report card not found")
		}
		return nil, fmt.Errorf("get report card: %w", err)
	}
	return &card, nil
}

// ListByExamGroup returns all cards of an exam group ordered by rank.
func (r *ReportCardRepository) ListByExamGroup(ctx context.Context, examGroupID string) ([]models.ReportCard, error) {
	query := fmt.Sprintf(`SELECT %s FROM report_cards WHERE exam_group_id = $1 ORDER BY rank, student_id`, reportCardColumns)
	var cards []models.ReportCard
	if err := r.db.SelectContext(ctx, &cards, query, examGroupID); err != nil {
		return nil, fmt.Errorf("list report cards: %w", err)
	}
	return cards, nil
}

// ListByStudent returns all report cards of a student, newest first.
func (r *ReportCardRepository) ListByStudent(ctx context.Context, studentID string) ([]models.ReportCard, error) {
	query := fmt.Sprintf(`SELECT %s FROM report_cards WHERE student_id = $1 ORDER BY generated_at DESC`, reportCardColumns)
	var cards []models.ReportCard
	if err := r.db.SelectContext(ctx, &cards, query, studentID); err != nil {
		return nil, fmt.Errorf("list student report cards: %w", err)
	}
	return cards, nil
}

// UpdateStatus moves a card into the target status, guarded by the
// expected current status so concurrent transitions cannot race.
func (r *ReportCardRepository) UpdateStatus(ctx context.Context, id string, from, to models.ReportStatus, publishedAt *time.Time) error {
	const query = `UPDATE report_cards SET status = $1, published_at = COALESCE($2, published_at), updated_at = $3
        WHERE id = $4 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, to, publishedAt, time.Now().UTC(), id, from)
	if err != nil {
		return fmt.Errorf("update report card status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update report card status: %w", err)
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrIllegalTransition, fmt.Sprintf("report card is no longer %s", from))
	}
	return nil
}

