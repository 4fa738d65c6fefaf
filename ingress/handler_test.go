package ingress

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	es "github.com/jade/eventsourcing"
)

type pingCommand struct {
	ID string `json:"id"`
}

func (c *pingCommand) AggregateID() string { return c.ID }

func newTestHandler(t *testing.T) (*Handler, *es.CommandBus) {
	t.Helper()
	registry := es.NewRegistry()
	if err := registry.RegisterCommand(es.CommandSchema("widget", "ping", "1"), func() es.Command {
		return &pingCommand{}
	}); err != nil {
		t.Fatalf("register command: %v", err)
	}

	bus := es.NewCommandBus(10, 1, registry)
	es.Register(bus, func(ctx context.Context, cmd *pingCommand) (es.AppendResult, error) {
		return es.AppendResult{Successful: true, NextExpectedVersion: 1}, nil
	})
	t.Cleanup(bus.Stop)

	return NewHandler(registry, bus, nil), bus
}

func TestHandleCloudEvent_Success(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{
		"id": "evt-1",
		"source": "test",
		"specversion": "1.0",
		"type": "create",
		"dataschema": "urn:schema:jade:command:widget:ping:1",
		"data": {"id": "widget-1"}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/cloudevents", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var result cloudEventResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.ID != "evt-1" {
		t.Fatalf("expected id echoed back, got %q", result.ID)
	}
	if result.Status != "accepted" {
		t.Fatalf("expected status accepted, got %q", result.Status)
	}
}

func TestHandleCloudEvent_BadSpecVersion(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"id":"e","source":"s","specversion":"0.3","dataschema":"urn:schema:jade:command:widget:ping:1","data":{"id":"w"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/cloudevents", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleCloudEvent_UnknownSchema(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"id":"e","source":"s","specversion":"1.0","type":"create","dataschema":"urn:schema:jade:command:widget:missing:1","data":{"id":"w"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/cloudevents", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleCloudEvent_MalformedPayload(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"id":"e","source":"s","specversion":"1.0","type":"create","dataschema":"urn:schema:jade:command:widget:ping:1","data":"not-an-object"}`
	req := httptest.NewRequest(http.MethodPost, "/api/cloudevents", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleCloudEvent_MissingData(t *testing.T) {
	h, _ := newTestHandler(t)

	body := `{"id":"e","source":"s","specversion":"1.0","type":"create","dataschema":"urn:schema:jade:command:widget:ping:1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/cloudevents", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleSchemas(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/cloudevents/schemas", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var result schemasResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Count != 1 || len(result.Schemas) != 1 || result.Schemas[0] != "urn:schema:jade:command:widget:ping:1" {
		t.Fatalf("unexpected schemas response: %+v", result)
	}
}

func TestServeHTTP_NotFound(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
