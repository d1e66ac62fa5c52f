package events

import (
	"github.com/go-logr/logr"

	"github.com/vsinha/relief/pkg/infrastructure/logging"
	"github.com/vsinha/relief/pkg/infrastructure/metrics"
)

// AuditHandler consumes the event log in process. It counts every event by
// type and logs resources that drop below their minimum threshold.
type AuditHandler struct {
	metrics *metrics.Recorder
	logger  logr.Logger
}

func NewAuditHandler(recorder *metrics.Recorder, logger logr.Logger) *AuditHandler {
	return &AuditHandler{metrics: recorder, logger: logger}
}

// Subscribe registers the handler for every relief event type
func (h *AuditHandler) Subscribe(store EventStore) error {
	return store.Subscribe(AllEventTypes, h)
}

func (h *AuditHandler) CanHandle(eventType string) bool {
	for _, t := range AllEventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

func (h *AuditHandler) Handle(event Event) error {
	h.metrics.ObserveEvent(event.Type())

	switch data := event.Data().(type) {
	case ResourceCritical:
		h.logger.Info("Resource below minimum threshold",
			"resource", data.Resource.ID,
			"stockLevel", data.Resource.StockLevel,
			"minimumThreshold", data.Resource.MinimumThreshold)
	case RequestRejected:
		h.logger.V(logging.DEBUG).Info("Request rejected", "request", data.Request.ID, "reason", data.Reason)
	}
	return nil
}
