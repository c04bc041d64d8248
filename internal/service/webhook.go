package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/davishaupt/baldr/internal/domain"
)

// SourceAsaas tags ledger entries originating from the Asaas webhook
// endpoint. The dedup key is (source, external event id), so a second
// processor integration gets its own namespace.
const SourceAsaas = "asaas"

// Dispatcher outcomes for events acknowledged without reaching a handler.
const (
	ActionDuplicate      = "duplicate"
	ActionInProgress     = "in_progress"
	ActionTenantNotFound = "tenant_not_found"
	ActionUnmodeled      = "unmodeled"
)

// ProcessingResult describes how a webhook delivery was settled. A result
// with Success=true and a benign Action (duplicate, tenant_not_found,
// unmodeled) still acknowledges the delivery; the processor must not retry.
type ProcessingResult struct {
	EventID   uuid.UUID
	EventType string
	TenantID  *uuid.UUID
	Action    string
	Success   bool
	Error     string
}

// WebhookService is the ingestion endpoint and dispatcher for processor
// webhooks. Ingest is the synchronous HTTP path; ProcessEvent is shared with
// the retry worker, which re-drives ledger entries that did not settle.
type WebhookService interface {
	// Ingest authenticates, parses and records a raw webhook delivery, then
	// processes it inline. Authentication and parse failures are rejected
	// before any write; everything after the ledger insert is acknowledged
	// to the processor even when processing fails, because the ledger entry
	// owns the retry from that point.
	Ingest(ctx context.Context, token string, body []byte) (*ProcessingResult, error)

	// ProcessEvent claims a ledger entry and runs it through the matching
	// reconciliation handler, settling the entry as processed, ignored or
	// failed. Safe to call concurrently for the same entry: the claim is a
	// compare-and-swap and losers back off.
	ProcessEvent(ctx context.Context, event *domain.WebhookEvent) (*ProcessingResult, error)
}
