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

// PolicyRepository persists grading policies.
type PolicyRepository struct {
	db *sqlx.DB
}

// NewPolicyRepository constructs repository.
func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// GetByCode returns the active policy registered under a code.
func (r *PolicyRepository) GetByCode(ctx context.Context, code string) (*models.GradingPolicy, error) {
	const query = `SELECT id, code, board_type, domain, domain_max, bands, is_active, created_at, updated_at
        FROM grading_policies WHERE code = $1 AND is_active`
	var policy models.GradingPolicy
	if err := r.db.GetContext(ctx, &policy, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("grading policy %s not found", code))
		}
		return nil, fmt.Errorf("get grading policy: %w", err)
	}
	return &policy, nil
}

// List returns all policies, active first.
func (r *PolicyRepository) List(ctx context.Context) ([]models.GradingPolicy, error) {
	const query = `SELECT id, code, board_type, domain, domain_max, bands, is_active, created_at, updated_at
        FROM grading_policies ORDER BY is_active DESC, code`
	var policies []models.GradingPolicy
	if err := r.db.SelectContext(ctx, &policies, query); err != nil {
		return nil, fmt.Errorf("list grading policies: %w", err)
	}
	return policies, nil
}

// Create inserts a new policy. Codes are unique across active policies;
// revising a scale means deactivating the old row and inserting a new
// one, existing report cards keep the bands they were graded with.
func (r *PolicyRepository) Create(ctx context.Context, policy *models.GradingPolicy) error {
	if policy.ID == "" {
		policy.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	policy.CreatedAt = now
	policy.UpdatedAt = now
	const query = `INSERT INTO grading_policies (id, code, board_type, domain, domain_max, bands, is_active, created_at, updated_at)
        VALUES (:id, :code, :board_type, :domain, :domain_max, :bands, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, policy); err != nil {
		return fmt.Errorf("create grading policy: %w", err)
	}
	return nil
}

// Deactivate retires a policy without deleting it.
func (r *PolicyRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE grading_policies SET is_active = FALSE, updated_at = $1 WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("deactivate grading policy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate grading policy: %w", err)
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "grading policy not found")
	}
	return nil
}
