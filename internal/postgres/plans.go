package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davishaupt/baldr/internal/domain"
)

// PlanStore implements domain.PlanStore using PostgreSQL.
// The plan catalog is read-only from this service's perspective.
type PlanStore struct {
	pool *pgxpool.Pool
}

var _ domain.PlanStore = (*PlanStore)(nil)

// NewPlanStore creates a new PlanStore instance.
func NewPlanStore(pool *pgxpool.Pool) *PlanStore {
	return &PlanStore{pool: pool}
}

const planColumns = `id, name, price_cents, currency, cycle, trial_days, features`

// GetPlan fetches one plan by id.
func (s *PlanStore) GetPlan(ctx context.Context, id string) (*domain.BillingPlan, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM billing_plans WHERE id = $1`, id)
	return scanPlan(row)
}

// ListPlans returns the full catalog ordered by price.
func (s *PlanStore) ListPlans(ctx context.Context) ([]*domain.BillingPlan, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+planColumns+` FROM billing_plans ORDER BY price_cents`)
	if err != nil {
		return nil, fmt.Errorf("failed to list billing plans: %w", err)
	}
	defer rows.Close()

	var plans []*domain.BillingPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func scanPlan(row pgx.Row) (*domain.BillingPlan, error) {
	var p domain.BillingPlan
	err := row.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Currency, &p.Cycle, &p.TrialDays, &p.Features)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan billing plan: %w", err)
	}
	return &p, nil
}
