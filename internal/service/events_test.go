package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnownEventType(t *testing.T) {
	assert.True(t, KnownEventType(EventPaymentConfirmed))
	assert.True(t, KnownEventType(EventSubscriptionCanceled))
	assert.True(t, KnownEventType(EventInvoiceCreated))
	assert.False(t, KnownEventType("PAYMENT_TELEPORTED"))
	assert.False(t, KnownEventType(""))
}

func TestEventClassifiers(t *testing.T) {
	assert.True(t, isPaymentEvent(EventPaymentOverdue))
	assert.False(t, isPaymentEvent(EventSubscriptionRenewed))
	assert.True(t, isSubscriptionEvent(EventSubscriptionUpdated))
	assert.False(t, isSubscriptionEvent(EventInvoiceCreated))
}

func TestParseProcessorDate(t *testing.T) {
	got := parseProcessorDate("2025-03-04")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), *got)

	assert.Nil(t, parseProcessorDate(""))
	assert.Nil(t, parseProcessorDate("04/03/2025"))
}
