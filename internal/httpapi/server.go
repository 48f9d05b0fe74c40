package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/accerat/MondayBot/internal/syncengine"
)

// EventDispatcher handles one normalized inbound event.
type EventDispatcher interface {
	Dispatch(ctx context.Context, ev syncengine.NormalizedEvent) error
}

// StatusSource produces the current bot status report.
type StatusSource interface {
	Report() syncengine.StatusReport
}

type ServerConfig struct {
	MaxBodyBytes int64
}

// Server exposes the webhook ingress and the read-only health and status
// surface.
type Server struct {
	dispatcher EventDispatcher
	status     StatusSource
	cfg        ServerConfig
	schema     *jsonschema.Schema
}

func NewServer(dispatcher EventDispatcher, status StatusSource, cfg ServerConfig) (*Server, error) {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	schema, err := compileWebhookSchema()
	if err != nil {
		return nil, err
	}
	return &Server{
		dispatcher: dispatcher,
		status:     status,
		cfg:        cfg,
		schema:     schema,
	}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/health" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case r.URL.Path == "/status" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.status.Report())
	case r.URL.Path == "/webhook/monday" && r.Method == http.MethodPost:
		s.handleWebhook(w, r)
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found", getCorrelationID(r))
	}
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	correlationID := getCorrelationID(r)

	body, ok := s.readRequestBody(w, r, correlationID)
	if !ok {
		return
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "request body is not valid JSON", correlationID)
		return
	}
	if err := s.schema.Validate(doc); err != nil {
		slog.Warn("webhook payload rejected", "correlation_id", correlationID, "err", err)
		writeError(w, http.StatusBadRequest, "invalid_payload", "payload does not match the webhook schema", correlationID)
		return
	}

	var payload struct {
		Challenge string         `json:"challenge"`
		Event     map[string]any `json:"event"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "request body is not valid JSON", correlationID)
		return
	}

	// Endpoint verification: echo the challenge without touching the engine.
	if payload.Challenge != "" {
		writeJSON(w, http.StatusOK, map[string]string{"challenge": payload.Challenge})
		return
	}

	ev, ok := syncengine.NormalizeEvent(payload.Event)
	if !ok {
		// Event types outside the sync surface are acknowledged so the
		// service does not retry them.
		slog.Debug("ignoring unhandled webhook event", "correlation_id", correlationID, "type", payload.Event["type"])
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	slog.Info("webhook event received", "correlation_id", correlationID, "kind", ev.Kind, "item_id", ev.ItemID)
	if err := s.dispatcher.Dispatch(r.Context(), ev); err != nil {
		if errors.Is(err, syncengine.ErrValidation) {
			writeError(w, http.StatusBadRequest, "invalid_payload", err.Error(), correlationID)
			return
		}
		slog.Error("webhook event processing failed", "correlation_id", correlationID, "kind", ev.Kind, "item_id", ev.ItemID, "err", err)
		writeError(w, http.StatusBadGateway, "upstream_error", "event could not be relayed", correlationID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getCorrelationID returns the caller's correlation id, minting one when the
// header is absent so every log line stays traceable.
func getCorrelationID(r *http.Request) string {
	if id := r.Header.Get("X-Correlation-Id"); id != "" {
		return id
	}
	return uuid.NewString()
}

func (s *Server) readRequestBody(w http.ResponseWriter, r *http.Request, correlationID string) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body exceeds configured limit", correlationID)
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body", correlationID)
		return nil, false
	}
	return body, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message, correlationID string) {
	writeJSON(w, status, map[string]any{
		"code":          code,
		"message":       message,
		"correlationId": correlationID,
	})
}
