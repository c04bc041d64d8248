// Package postgres implements the durable store adapters over pgx.
//
// Each adapter is a thin translation layer: SQL in, domain types out. Business
// rules (transition validity, retry eligibility) live in the domain and
// service packages, not here.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davishaupt/baldr/internal/domain"
)

// BillingStore implements domain.BillingStore using PostgreSQL.
type BillingStore struct {
	pool *pgxpool.Pool
}

// Compile-time check that BillingStore implements domain.BillingStore.
var _ domain.BillingStore = (*BillingStore)(nil)

// NewBillingStore creates a new BillingStore instance.
func NewBillingStore(pool *pgxpool.Pool) *BillingStore {
	return &BillingStore{pool: pool}
}

const billingColumns = `tenant_id, external_customer_id, external_subscription_id, billing_status, subscription_metadata, created_at, updated_at`

// Get fetches the billing record for a tenant.
func (s *BillingStore) Get(ctx context.Context, tenantID uuid.UUID) (*domain.TenantBillingRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+billingColumns+` FROM tenant_billing WHERE tenant_id = $1`,
		tenantID,
	)
	return scanBillingRecord(row)
}

// GetByExternalSubscription resolves a tenant by processor subscription id.
func (s *BillingStore) GetByExternalSubscription(ctx context.Context, subscriptionID string) (*domain.TenantBillingRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+billingColumns+` FROM tenant_billing WHERE external_subscription_id = $1`,
		subscriptionID,
	)
	return scanBillingRecord(row)
}

// GetByExternalCustomer resolves a tenant by processor customer id.
func (s *BillingStore) GetByExternalCustomer(ctx context.Context, customerID string) (*domain.TenantBillingRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+billingColumns+` FROM tenant_billing WHERE external_customer_id = $1`,
		customerID,
	)
	return scanBillingRecord(row)
}

// Update applies a partial update as a single row write. COALESCE keeps
// columns untouched when the corresponding parameter is NULL.
func (s *BillingStore) Update(ctx context.Context, tenantID uuid.UUID, params domain.UpdateBillingParams) (*domain.TenantBillingRecord, error) {
	var metadataJSON []byte
	if params.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(params.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode subscription metadata: %w", err)
		}
	}

	var status *string
	if params.Status != nil {
		v := string(*params.Status)
		status = &v
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE tenant_billing SET
			billing_status = COALESCE($2, billing_status),
			external_customer_id = COALESCE($3, external_customer_id),
			external_subscription_id = COALESCE($4, external_subscription_id),
			subscription_metadata = COALESCE($5, subscription_metadata),
			updated_at = now()
		WHERE tenant_id = $1
		RETURNING `+billingColumns,
		tenantID, status, params.ExternalCustomerID, params.ExternalSubscriptionID, metadataJSON,
	)
	return scanBillingRecord(row)
}

func scanBillingRecord(row pgx.Row) (*domain.TenantBillingRecord, error) {
	var (
		rec            domain.TenantBillingRecord
		customerID     *string
		subscriptionID *string
		status         string
		metadataJSON   []byte
	)

	err := row.Scan(&rec.TenantID, &customerID, &subscriptionID, &status, &metadataJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan billing record: %w", err)
	}

	if customerID != nil {
		rec.ExternalCustomerID = *customerID
	}
	if subscriptionID != nil {
		rec.ExternalSubscriptionID = *subscriptionID
	}
	rec.Status = domain.BillingStatus(status)

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode subscription metadata: %w", err)
		}
	}

	return &rec, nil
}
