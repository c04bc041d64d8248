package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davishaupt/baldr/internal/domain"
)

// WebhookLedger implements domain.WebhookLedger using PostgreSQL.
//
// Concurrency model: the UPDATE in Claim is the single-writer lock. Two
// workers racing on the same entry issue the same compare-and-set; exactly
// one row matches the WHERE clause for the winner, the loser sees zero rows
// and gets ErrAlreadyClaimed.
type WebhookLedger struct {
	pool *pgxpool.Pool
}

var _ domain.WebhookLedger = (*WebhookLedger)(nil)

// NewWebhookLedger creates a new WebhookLedger instance.
func NewWebhookLedger(pool *pgxpool.Pool) *WebhookLedger {
	return &WebhookLedger{pool: pool}
}

const ledgerColumns = `id, source, external_event_id, event_type, payload, status, attempts, max_attempts, tenant_id, result, error_message, processed_at, created_at, updated_at`

// Ingest records a delivery, deduplicating on (source, external_event_id).
//
// The insert relies on the partial unique index: ON CONFLICT DO NOTHING
// followed by a fetch of the existing row keeps redeliveries idempotent
// without a serializable transaction. Events without an external id skip
// dedup entirely (each delivery becomes its own row).
func (l *WebhookLedger) Ingest(ctx context.Context, params domain.IngestEventParams) (*domain.WebhookEvent, bool, error) {
	var externalEventID *string
	if params.ExternalEventID != "" {
		externalEventID = &params.ExternalEventID
	}

	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	row := l.pool.QueryRow(ctx,
		`INSERT INTO webhook_events (id, source, external_event_id, event_type, payload, status, attempts, max_attempts)
		 VALUES ($1, $2, $3, $4, $5, $6, 0, $7)
		 ON CONFLICT (source, external_event_id) WHERE external_event_id IS NOT NULL DO NOTHING
		 RETURNING `+ledgerColumns,
		uuid.New(), params.Source, externalEventID, params.EventType, params.Payload,
		string(domain.WebhookStatusPending), maxAttempts,
	)

	event, err := scanWebhookEvent(row)
	if err == nil {
		return event, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	// Conflict path: the delivery was already recorded. Return the existing
	// row unchanged so processed/ignored entries short-circuit upstream.
	row = l.pool.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM webhook_events WHERE source = $1 AND external_event_id = $2`,
		params.Source, params.ExternalEventID,
	)
	event, err = scanWebhookEvent(row)
	if err != nil {
		return nil, false, err
	}
	return event, false, nil
}

// Claim atomically moves an eligible entry to processing.
func (l *WebhookLedger) Claim(ctx context.Context, id uuid.UUID) (*domain.WebhookEvent, error) {
	row := l.pool.QueryRow(ctx,
		`UPDATE webhook_events
		 SET status = $2, attempts = attempts + 1, updated_at = now()
		 WHERE id = $1 AND status = $3 AND attempts < max_attempts
		 RETURNING `+ledgerColumns,
		id, string(domain.WebhookStatusProcessing), string(domain.WebhookStatusPending),
	)

	event, err := scanWebhookEvent(row)
	if err == nil {
		return event, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	// The CAS missed. Distinguish "someone else owns it" from "no such row"
	// so the caller can treat contention as benign.
	var status string
	err = l.pool.QueryRow(ctx, `SELECT status FROM webhook_events WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to check webhook event status: %w", err)
	}
	return nil, fmt.Errorf("%w: status=%s", domain.ErrAlreadyClaimed, status)
}

// MarkProcessed settles the entry as successfully handled.
func (l *WebhookLedger) MarkProcessed(ctx context.Context, id uuid.UUID, tenantID *uuid.UUID, result string) error {
	tag, err := l.pool.Exec(ctx,
		`UPDATE webhook_events
		 SET status = $2, tenant_id = $3, result = $4, processed_at = now(), updated_at = now()
		 WHERE id = $1`,
		id, string(domain.WebhookStatusProcessed), tenantID, result,
	)
	if err != nil {
		return fmt.Errorf("failed to mark webhook event processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkIgnored settles the entry as acknowledged-but-no-op.
func (l *WebhookLedger) MarkIgnored(ctx context.Context, id uuid.UUID, result string) error {
	tag, err := l.pool.Exec(ctx,
		`UPDATE webhook_events
		 SET status = $2, result = $3, processed_at = now(), updated_at = now()
		 WHERE id = $1`,
		id, string(domain.WebhookStatusIgnored), result,
	)
	if err != nil {
		return fmt.Errorf("failed to mark webhook event ignored: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkFailed records a handler failure. The CASE keeps the retry invariant in
// one statement: entries with budget left go back to pending, exhausted ones
// become terminally failed.
func (l *WebhookLedger) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	tag, err := l.pool.Exec(ctx,
		`UPDATE webhook_events
		 SET status = CASE WHEN attempts >= max_attempts THEN $2 ELSE $3 END,
		     error_message = $4,
		     updated_at = now()
		 WHERE id = $1`,
		id, string(domain.WebhookStatusFailed), string(domain.WebhookStatusPending), errMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to mark webhook event failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListRetryable selects entries eligible for another attempt, oldest first,
// using the (status, attempts, created_at) index.
//
// Processing rows stale for longer than staleAfter are a crashed worker's
// leftovers; they are parked back to pending first so the normal Claim CAS
// applies to them as well.
func (l *WebhookLedger) ListRetryable(ctx context.Context, staleAfter time.Duration, limit int) ([]*domain.WebhookEvent, error) {
	_, err := l.pool.Exec(ctx,
		`UPDATE webhook_events
		 SET status = $1, updated_at = now()
		 WHERE status = $2 AND attempts < max_attempts AND updated_at < now() - $3::interval`,
		string(domain.WebhookStatusPending), string(domain.WebhookStatusProcessing),
		fmt.Sprintf("%d seconds", int(staleAfter.Seconds())),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reset stale webhook events: %w", err)
	}

	rows, err := l.pool.Query(ctx,
		`SELECT `+ledgerColumns+` FROM webhook_events
		 WHERE status = $1 AND attempts < max_attempts
		 ORDER BY created_at
		 LIMIT $2`,
		string(domain.WebhookStatusPending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list retryable webhook events: %w", err)
	}
	defer rows.Close()

	var events []*domain.WebhookEvent
	for rows.Next() {
		event, err := scanWebhookEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanWebhookEvent(row pgx.Row) (*domain.WebhookEvent, error) {
	var (
		e               domain.WebhookEvent
		externalEventID *string
		result          *string
		errorMessage    *string
	)

	err := row.Scan(
		&e.ID, &e.Source, &externalEventID, &e.EventType, &e.Payload,
		&e.Status, &e.Attempts, &e.MaxAttempts, &e.TenantID,
		&result, &errorMessage, &e.ProcessedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan webhook event: %w", err)
	}

	if externalEventID != nil {
		e.ExternalEventID = *externalEventID
	}
	if result != nil {
		e.Result = *result
	}
	if errorMessage != nil {
		e.ErrorMessage = *errorMessage
	}
	return &e, nil
}
