package event

import (
	"testing"

	"github.com/casehub/backend/internal/domain/shared"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSerializer_RoundTrip(t *testing.T) {
	serializer := NewEventSerializer()
	event := newBudgetChangedEvent(500000, 450000)

	data, err := serializer.Serialize(event)
	require.NoError(t, err)

	decoded, err := serializer.Deserialize(shared.EventTypeBudgetChanged, data)
	require.NoError(t, err)

	assert.Equal(t, event.ID(), decoded.ID())
	assert.Equal(t, event.Source(), decoded.Source())
	assert.True(t, event.OccurredAt().Equal(decoded.OccurredAt()))

	want := event.Payload().(shared.BudgetChangedPayload)
	got := decoded.Payload().(shared.BudgetChangedPayload)
	if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestEventSerializer_KeepsMetadata(t *testing.T) {
	serializer := NewEventSerializer()
	base := newBudgetChangedEvent(1, 0)
	event := shared.NewDomainEvent("budget-service", base.AggregateID(), base.Payload(),
		shared.WithMetadata(shared.MetadataAction, "delete"))

	data, err := serializer.Serialize(event)
	require.NoError(t, err)
	decoded, err := serializer.Deserialize(shared.EventTypeBudgetChanged, data)
	require.NoError(t, err)

	action, ok := decoded.MetadataValue(shared.MetadataAction)
	assert.True(t, ok)
	assert.Equal(t, "delete", action)
}

func TestEventSerializer_Serialize_InvalidEnvelope(t *testing.T) {
	_, err := NewEventSerializer().Serialize(shared.DomainEvent{})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestEventSerializer_Deserialize_Errors(t *testing.T) {
	serializer := NewEventSerializer()
	data, err := serializer.Serialize(newCaseCreatedEvent())
	require.NoError(t, err)

	t.Run("unknown type", func(t *testing.T) {
		_, err := serializer.Deserialize("invoice-paid", data)
		assert.ErrorContains(t, err, "unknown event type")
	})

	t.Run("type mismatch", func(t *testing.T) {
		_, err := serializer.Deserialize(shared.EventTypeBudgetChanged, data)
		assert.ErrorContains(t, err, "event type mismatch")
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := serializer.Deserialize(shared.EventTypeCaseCreated, []byte("{not json"))
		assert.ErrorContains(t, err, "failed to unmarshal event")
	})
}
