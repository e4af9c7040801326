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

// TemplateRepository persists board templates.
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository constructs repository.
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const templateColumns = `id, name, board_type, policy_code, body, css, fields, is_default, is_active, created_at, updated_at`

// GetByID fetches a template by primary key.
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.BoardTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM board_templates WHERE id = $1`, templateColumns)
	var tpl models.BoardTemplate
	if err := r.db.GetContext(ctx, &tpl, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return &tpl, nil
}

// GetDefaultByBoard returns the single default active template for a board.
func (r *TemplateRepository) GetDefaultByBoard(ctx context.Context, board models.BoardType) (*models.BoardTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM board_templates WHERE board_type = $1 AND is_default AND is_active`, templateColumns)
	var tpl models.BoardTemplate
	if err := r.db.GetContext(ctx, &tpl, query, board); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no default template for board %s", board))
		}
		return nil, fmt.Errorf("get default template: %w", err)
	}
	return &tpl, nil
}

// List returns templates, optionally filtered by board.
func (r *TemplateRepository) List(ctx context.Context, board *models.BoardType) ([]models.BoardTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM board_templates`, templateColumns)
	args := []interface{}{}
	if board != nil {
		query += ` WHERE board_type = $1`
		args = append(args, *board)
	}
	query += ` ORDER BY board_type, is_default DESC, name`
	var templates []models.BoardTemplate
	if err := r.db.SelectContext(ctx, &templates, query, args...); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// Create inserts a template. When the new template is the default, the
// previous default of the same board is demoted in the same transaction.
func (r *TemplateRepository) Create(ctx context.Context, tpl *models.BoardTemplate) error {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if tpl.IsDefault {
		if err := demoteDefault(ctx, tx, tpl.BoardType, now); err != nil {
			tx.Rollback() //nolint:errcheck
			return err
		}
	}
	const query = `INSERT INTO board_templates (id, name, board_type, policy_code, body, css, fields, is_default, is_active, created_at, updated_at)
        VALUES (:id, :name, :board_type, :policy_code, :body, :css, :fields, :is_default, :is_active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, tpl); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create template: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit template: %w", err)
	}
	return nil
}

// Update rewrites a template's mutable fields with the same single
// default guarantee as Create.
func (r *TemplateRepository) Update(ctx context.Context, tpl *models.BoardTemplate) error {
	now := time.Now().UTC()
	tpl.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if tpl.IsDefault {
		if err := demoteDefault(ctx, tx, tpl.BoardType, now); err != nil {
			tx.Rollback() //nolint:errcheck
			return err
		}
	}
	const query = `UPDATE board_templates SET name = :name, policy_code = :policy_code, body = :body, css = :css, fields = :fields,
        is_default = :is_default, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, query, tpl)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update template: %w", err)
	}
	if affected == 0 {
		tx.Rollback() //nolint:errcheck
		return appErrors.Clone(appErrors.ErrNotFound, "template not found")
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit template update: %w", err)
	}
	return nil
}

func demoteDefault(ctx context.Context, tx *sqlx.Tx, board models.BoardType, now time.Time) error {
	const query = `UPDATE board_templates SET is_default = FALSE, updated_at = $1 WHERE board_type = $2 AND is_default`
	if _, err := tx.ExecContext(ctx, query, now, board); err != nil {
		return fmt.Errorf("demote default template: %w", err)
	}
	return nil
}
