// Package ingress implements the CloudEvents v1.0 HTTP entry point of
// component G: a JSON CloudEvent in, a decoded command dispatched through
// the bus, a JSON result out. It offers both of component G's two modes:
// direct dispatch through the bus, and queued dispatch through a publisher.
package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	es "github.com/jade/eventsourcing"
	"github.com/jade/eventsourcing/queue"
	"github.com/sirupsen/logrus"
)

// Publisher is the queued-mode half of component G: it durably enqueues a
// CloudEvent for a Receiver to dispatch later, instead of dispatching it
// through the bus inline. *queue.Enqueuer satisfies this.
type Publisher interface {
	Publish(ctx context.Context, ce es.CloudEvent, opts ...queue.EnqueueOption) error
}

// Handler serves POST /api/cloudevents and GET /api/cloudevents/schemas.
// It opens no trace spans of its own; tracing comes only from whatever
// telemetry middleware wraps the command handlers behind the bus.
type Handler struct {
	registry  *es.Registry
	bus       *es.CommandBus
	publisher Publisher
	logger    *logrus.Entry
}

// NewHandler builds a Handler that dispatches directly through bus.
// logger may be nil, in which case an entry on logrus's standard logger is
// used.
func NewHandler(registry *es.Registry, bus *es.CommandBus, logger *logrus.Entry) *Handler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Handler{registry: registry, bus: bus, logger: logger}
}

// NewQueuedHandler builds a Handler that validates and resolves a schema
// exactly as the direct handler does, but publishes the CloudEvent to
// publisher instead of dispatching it through a bus.
func NewQueuedHandler(registry *es.Registry, publisher Publisher, logger *logrus.Entry) *Handler {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Handler{registry: registry, publisher: publisher, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/cloudevents":
		h.handleCloudEvent(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/api/cloudevents/schemas":
		h.handleSchemas(w, r)
	default:
		http.NotFound(w, r)
	}
}

// cloudEventResponse is the wire shape POST /api/cloudevents always
// responds with, whether the CloudEvent was accepted, rejected, or failed.
type cloudEventResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// schemasResponse is the wire shape GET /api/cloudevents/schemas responds
// with.
type schemasResponse struct {
	Schemas []string `json:"schemas"`
	Count   int      `json:"count"`
}

func (h *Handler) handleCloudEvent(w http.ResponseWriter, r *http.Request) {
	var ce es.CloudEvent
	if err := json.NewDecoder(r.Body).Decode(&ce); err != nil {
		h.writeResult(w, ce.ID, http.StatusBadRequest, "rejected", err.Error())
		return
	}
	if err := es.ValidateCloudEvent(ce); err != nil {
		h.writeResult(w, ce.ID, http.StatusBadRequest, "rejected", err.Error())
		return
	}

	schema, err := es.ParseSchema(ce.DataSchema)
	if err != nil {
		h.writeResult(w, ce.ID, http.StatusUnprocessableEntity, "rejected", err.Error())
		return
	}
	if len(ce.Data) == 0 {
		h.writeResult(w, ce.ID, http.StatusUnprocessableEntity, "rejected", "data is required")
		return
	}

	l := h.logger.WithFields(logrus.Fields{"schema": schema.String(), "cloudEventId": ce.ID})

	if h.publisher != nil {
		l.Debug("publishing cloudevent")
		if err := h.publisher.Publish(r.Context(), ce); err != nil {
			l.WithError(err).Warn("cloudevent publish failed")
			h.writeResult(w, ce.ID, http.StatusInternalServerError, "failed", err.Error())
			return
		}
		h.writeResult(w, ce.ID, http.StatusAccepted, "accepted", "")
		return
	}

	l.Debug("dispatching cloudevent")
	_, err = es.DispatchCloudEvent(r.Context(), h.registry, h.bus, ce)
	if err != nil {
		l.WithError(err).Warn("cloudevent dispatch failed")
		status := statusForDispatchError(err)
		h.writeResult(w, ce.ID, status, outcomeForStatus(status), err.Error())
		return
	}

	h.writeResult(w, ce.ID, http.StatusAccepted, "accepted", "")
}

// outcomeForStatus maps a response status code back to the status field
// POST /api/cloudevents reports: 4xx is a rejection the caller can fix by
// resubmitting, 5xx is a failure on this side.
func outcomeForStatus(status int) string {
	if status >= 500 {
		return "failed"
	}
	return "rejected"
}

func (h *Handler) handleSchemas(w http.ResponseWriter, r *http.Request) {
	schemas := h.registry.Schemas()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(schemasResponse{Schemas: schemas, Count: len(schemas)})
}

func (h *Handler) writeResult(w http.ResponseWriter, id string, status int, outcome, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(cloudEventResponse{ID: id, Status: outcome, Message: message})
}

// statusForDispatchError maps a dispatch-time error to one of the three
// non-2xx statuses the CloudEvents response body can report: 422 for a
// schema or decode problem the caller can fix by resubmitting, 500 for
// anything else, including the aggregate's own domain rejections.
func statusForDispatchError(err error) int {
	var noHandler *es.NoHandlerError
	var malformed *es.MalformedPayload
	switch {
	case errors.As(err, &noHandler):
		return http.StatusUnprocessableEntity
	case errors.As(err, &malformed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, es.ErrUnknownSchema):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
