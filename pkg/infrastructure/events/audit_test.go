package events

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/relief/pkg/domain/entities"
	"github.com/vsinha/relief/pkg/infrastructure/logging"
	"github.com/vsinha/relief/pkg/infrastructure/metrics"
)

func TestAuditHandler_CountsPublishedEvents(t *testing.T) {
	logger := logging.NewTestLogger()
	store := NewInMemoryEventStore(logger)
	reg := prometheus.NewRegistry()
	require.NoError(t, NewAuditHandler(metrics.NewRecorder(reg), logger).Subscribe(store))

	publisher := NewPublisher(store, logger)
	publisher.Publish(RequestCreatedEvent, "Q1", RequestCreated{Request: entities.Request{ID: "Q1"}})
	publisher.Publish(RequestCreatedEvent, "Q2", RequestCreated{Request: entities.Request{ID: "Q2"}})
	publisher.Publish(ResourceCriticalEvent, "WATER", ResourceCritical{
		Resource: entities.Resource{ID: "WATER", StockLevel: 5, MinimumThreshold: 10},
	})
	publisher.Publish("unrelated.event", "X", nil)

	expected := `
# HELP relief_events_total Lifecycle events appended to the event log by type.
# TYPE relief_events_total counter
relief_events_total{type="request.created"} 2
relief_events_total{type="resource.critical"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "relief_events_total"))
}

func TestAuditHandler_CanHandle(t *testing.T) {
	h := NewAuditHandler(nil, logging.NewTestLogger())
	for _, eventType := range AllEventTypes {
		assert.True(t, h.CanHandle(eventType), eventType)
	}
	assert.False(t, h.CanHandle("unrelated.event"))
	assert.NoError(t, h.Handle(NewEvent(ResourceCriticalEvent, "R", ResourceCritical{})))
}
