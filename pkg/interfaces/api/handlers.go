package api

import (
	"net/http"
	"strconv"

	"github.com/go-logr/logr"

	"github.com/vsinha/relief/pkg/application/dto"
	"github.com/vsinha/relief/pkg/application/services/dashboard"
	"github.com/vsinha/relief/pkg/application/services/intake"
	"github.com/vsinha/relief/pkg/domain/entities"
	domainerrors "github.com/vsinha/relief/pkg/domain/errors"
	"github.com/vsinha/relief/pkg/infrastructure/events"
)

type handler struct {
	dashboard *dashboard.Service
	intake    *intake.Service
	eventLog  events.EventStore
	logger    logr.Logger
}

// RequestBody is the JSON body of create and update calls
type RequestBody struct {
	ID         string `json:"id,omitempty"`
	ShelterID  string `json:"shelter_id"`
	ResourceID string `json:"resource_id"`
	Quantity   int64  `json:"quantity"`
	// Priority accepts a level (1-5) or a name such as "Urgent"
	Priority string `json:"priority"`
}

// ExecuteBody is the JSON body of an execute call
type ExecuteBody struct {
	Quantity int64  `json:"quantity"`
	Comments string `json:"comments"`
}

// RejectBody is the JSON body of a reject call
type RejectBody struct {
	Reason string `json:"reason"`
}

func scopeOf(r *http.Request) entities.Scope {
	return entities.ForDisaster(entities.DisasterID(r.URL.Query().Get("disaster")))
}

func (h *handler) criticalResources(w http.ResponseWriter, r *http.Request) {
	resources, err := h.dashboard.GetCriticalResources(r.Context(), scopeOf(r))
	h.respond(w, resources, err)
}

func (h *handler) shelterCapacity(w http.ResponseWriter, r *http.Request) {
	shelters, err := h.dashboard.GetShelterCapacity(r.Context(), scopeOf(r))
	h.respond(w, shelters, err)
}

func (h *handler) pendingRequests(w http.ResponseWriter, r *http.Request) {
	pending, err := h.dashboard.GetPendingRequests(r.Context(), scopeOf(r))
	h.respond(w, pending, err)
}

func (h *handler) disasterSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.dashboard.GetDisasterSummary(r.Context(), scopeOf(r))
	h.respond(w, summary, err)
}

func (h *handler) recommendations(w http.ResponseWriter, r *http.Request) {
	recs, err := h.dashboard.GetResourceRecommendations(r.Context(), scopeOf(r))
	h.respond(w, recs, err)
}

// allEvents lists the event log from position ?from= (0-based)
func (h *handler) allEvents(w http.ResponseWriter, r *http.Request) {
	from, ok := h.fromParam(w, r)
	if !ok {
		return
	}
	if h.eventLog == nil {
		jsonResponse(h.logger, w, http.StatusOK, []events.Event{})
		return
	}
	all, err := h.eventLog.ReadAllEvents(from)
	h.respond(w, all, err)
}

// requestEvents lists one request's stream from version ?from= (1-based)
func (h *handler) requestEvents(w http.ResponseWriter, r *http.Request) {
	from, ok := h.fromParam(w, r)
	if !ok {
		return
	}
	if h.eventLog == nil {
		jsonResponse(h.logger, w, http.StatusOK, []events.Event{})
		return
	}
	stream, err := h.eventLog.ReadEvents(r.PathValue("id"), from)
	h.respond(w, stream, err)
}

func (h *handler) fromParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("from")
	if raw == "" {
		return 0, true
	}
	from, err := strconv.Atoi(raw)
	if err != nil || from < 0 {
		errorResponse(h.logger, w, http.StatusBadRequest, string(domainerrors.CodeInvalidInput), "from must be a non-negative integer")
		return 0, false
	}
	return from, true
}

func (h *handler) createRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	change, err := h.intake.Create(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	jsonResponse(h.logger, w, http.StatusCreated, change)
}

func (h *handler) updateRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}
	req.ID = entities.RequestID(r.PathValue("id"))
	change, err := h.intake.Update(r.Context(), req)
	h.respond(w, change, err)
}

func (h *handler) deleteRequest(w http.ResponseWriter, r *http.Request) {
	change, err := h.intake.Delete(r.Context(), entities.RequestID(r.PathValue("id")))
	h.respond(w, change, err)
}

func (h *handler) approveRequest(w http.ResponseWriter, r *http.Request) {
	result := h.dashboard.ApproveRequest(r.Context(), entities.RequestID(r.PathValue("id")))
	h.action(w, result)
}

func (h *handler) executeRecommendation(w http.ResponseWriter, r *http.Request) {
	var body ExecuteBody
	if err := parseJSONBody(r, &body); err != nil {
		errorResponse(h.logger, w, http.StatusBadRequest, string(domainerrors.CodeInvalidInput), "invalid JSON body: "+err.Error())
		return
	}
	result := h.dashboard.ExecuteRecommendation(r.Context(),
		entities.RequestID(r.PathValue("id")), entities.Quantity(body.Quantity), body.Comments)
	h.action(w, result)
}

func (h *handler) rejectRequest(w http.ResponseWriter, r *http.Request) {
	var body RejectBody
	if err := parseJSONBody(r, &body); err != nil {
		errorResponse(h.logger, w, http.StatusBadRequest, string(domainerrors.CodeInvalidInput), "invalid JSON body: "+err.Error())
		return
	}
	result := h.dashboard.RejectRequest(r.Context(), entities.RequestID(r.PathValue("id")), body.Reason)
	h.action(w, result)
}

func (h *handler) decodeRequest(w http.ResponseWriter, r *http.Request) (*entities.Request, bool) {
	var body RequestBody
	if err := parseJSONBody(r, &body); err != nil {
		errorResponse(h.logger, w, http.StatusBadRequest, string(domainerrors.CodeInvalidInput), "invalid JSON body: "+err.Error())
		return nil, false
	}
	priority, err := entities.ParsePriority(body.Priority)
	if err != nil {
		errorResponse(h.logger, w, http.StatusBadRequest, string(domainerrors.CodeInvalidInput), err.Error())
		return nil, false
	}
	return &entities.Request{
		ID:                entities.RequestID(body.ID),
		ShelterID:         entities.ShelterID(body.ShelterID),
		ResourceID:        entities.ResourceID(body.ResourceID),
		QuantityRequested: entities.Quantity(body.Quantity),
		Priority:          priority,
	}, true
}

func (h *handler) respond(w http.ResponseWriter, data any, err error) {
	if err != nil {
		h.fail(w, err)
		return
	}
	jsonResponse(h.logger, w, http.StatusOK, data)
}

func (h *handler) action(w http.ResponseWriter, result dto.ActionResult) {
	status := statusFor(result.Code)
	if !result.Success && result.Code == "" {
		status = http.StatusInternalServerError
	}
	jsonResponse(h.logger, w, status, result)
}

func (h *handler) fail(w http.ResponseWriter, err error) {
	code := domainerrors.CodeOf(err)
	status := statusFor(code)
	if status == http.StatusInternalServerError {
		h.logger.Error(err, "request failed")
	}
	errorResponse(h.logger, w, status, string(code), err.Error())
}

// statusFor maps an error code to an HTTP status. An empty code is success.
func statusFor(code domainerrors.ErrorCode) int {
	switch code {
	case "":
		return http.StatusOK
	case domainerrors.CodeInvalidInput:
		return http.StatusBadRequest
	case domainerrors.CodeNotFound:
		return http.StatusNotFound
	case domainerrors.CodeStockConflict, domainerrors.CodeAlreadyTerminal:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
