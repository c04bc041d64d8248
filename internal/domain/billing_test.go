package domain_test

import (
	"testing"

	"github.com/davishaupt/baldr/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []domain.BillingStatus{
	domain.BillingStatusTrial,
	domain.BillingStatusPendingPayment,
	domain.BillingStatusActive,
	domain.BillingStatusOverdue,
	domain.BillingStatusSuspended,
	domain.BillingStatusCanceled,
}

// legalTransitions mirrors the adjacency table. The full cross product of
// statuses is checked against it below, so a table edit here must be a
// deliberate domain decision.
var legalTransitions = map[domain.BillingStatus][]domain.BillingStatus{
	domain.BillingStatusTrial:          {domain.BillingStatusActive, domain.BillingStatusPendingPayment, domain.BillingStatusCanceled},
	domain.BillingStatusPendingPayment: {domain.BillingStatusActive, domain.BillingStatusOverdue, domain.BillingStatusCanceled},
	domain.BillingStatusActive:         {domain.BillingStatusOverdue, domain.BillingStatusCanceled},
	domain.BillingStatusOverdue:        {domain.BillingStatusActive, domain.BillingStatusSuspended, domain.BillingStatusCanceled},
	domain.BillingStatusSuspended:      {domain.BillingStatusActive, domain.BillingStatusCanceled},
	domain.BillingStatusCanceled:       {},
}

func isLegal(from, to domain.BillingStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func Test_CanTransition_FullCrossProduct(t *testing.T) {
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			got := domain.CanTransition(from, to)
			want := isLegal(from, to)
			assert.Equal(t, want, got, "CanTransition(%s, %s)", from, to)
		}
	}
}

func Test_Transition_SelfIsNoOp(t *testing.T) {
	// from == to must short-circuit before validation: canceled -> canceled
	// is a no-op even though canceled has no outbound edges.
	for _, s := range allStatuses {
		got, err := domain.Transition(s, s)
		require.NoError(t, err, "self transition for %s", s)
		assert.Equal(t, s, got)
	}
}

func Test_Transition_IllegalPairSurfacesError(t *testing.T) {
	got, err := domain.Transition(domain.BillingStatusCanceled, domain.BillingStatusActive)
	require.Error(t, err)
	assert.True(t, domain.IsInvalidTransition(err))
	assert.Equal(t, domain.BillingStatusCanceled, got, "status must not move on invalid transition")

	var ite *domain.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, domain.BillingStatusCanceled, ite.From)
	assert.Equal(t, domain.BillingStatusActive, ite.To)
}

func Test_Transition_CanceledIsTerminal(t *testing.T) {
	for _, to := range allStatuses {
		if to == domain.BillingStatusCanceled {
			continue
		}
		_, err := domain.Transition(domain.BillingStatusCanceled, to)
		assert.Error(t, err, "canceled -> %s must be rejected", to)
	}
}

func Test_Transition_SuspensionRequiresOverdue(t *testing.T) {
	// A tenant that never reached a paid state can never be suspended.
	for _, from := range []domain.BillingStatus{domain.BillingStatusTrial, domain.BillingStatusPendingPayment, domain.BillingStatusActive} {
		_, err := domain.Transition(from, domain.BillingStatusSuspended)
		assert.Error(t, err, "%s -> suspended must be rejected", from)
	}
}

func Test_AccessPredicates(t *testing.T) {
	tests := []struct {
		status  domain.BillingStatus
		full    bool
		limited bool
	}{
		{domain.BillingStatusTrial, true, false},
		{domain.BillingStatusActive, true, false},
		{domain.BillingStatusPendingPayment, false, true},
		{domain.BillingStatusOverdue, false, true},
		{domain.BillingStatusSuspended, false, false},
		{domain.BillingStatusCanceled, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.full, domain.HasFullAccess(tt.status))
			assert.Equal(t, tt.limited, domain.HasLimitedAccess(tt.status))
			assert.Equal(t, tt.full || tt.limited, domain.HasAnyAccess(tt.status))
		})
	}
}

func Test_BillingStatus_Valid(t *testing.T) {
	for _, s := range allStatuses {
		assert.True(t, s.Valid(), "%s", s)
	}
	assert.False(t, domain.BillingStatus("paused").Valid())
	assert.False(t, domain.BillingStatus("").Valid())
}
