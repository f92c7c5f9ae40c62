// Package http exposes the call service's webhook and API surface. The
// provider-facing webhooks (/voice, /incoming, /status) must never fail
// outright: a downstream error degrades to best-effort logging so the
// provider's own retry/timeout logic is not triggered spuriously.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/carelinkhq/medcall/internal/call_service/app"
	"github.com/carelinkhq/medcall/internal/call_service/domain"
	"github.com/carelinkhq/medcall/internal/call_service/voice"
)

// CallService is the orchestrator surface this handler needs; an interface
// so tests can substitute a mock.
type CallService interface {
	InitiateCall(ctx context.Context, phoneNumber string) (string, error)
	AnswerScript(answeredBy domain.AnsweredBy) voice.Script
	IncomingCallScript() voice.Script
	HandleRecordingReady(ctx context.Context, callSID, recordingURL string) (voice.Script, error)
	HandleStatusUpdate(ctx context.Context, update app.StatusUpdate)
	ListCalls(ctx context.Context) ([]domain.CallRecord, error)
}

type CallHandler struct {
	service  CallService
	logger   *slog.Logger
	validate *validator.Validate
}

func NewCallHandler(service CallService, logger *slog.Logger, validate *validator.Validate) *CallHandler {
	return &CallHandler{
		service:  service,
		logger:   logger.With("handler", "call"),
		validate: validate,
	}
}

// RegisterRoutes mounts the webhook/API surface on the router.
func (h *CallHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/call", h.TriggerCall)
	r.Post("/api/call/voice", h.Voice)
	r.Post("/api/call/webhook/recording", h.RecordingWebhook)
	r.Post("/api/call/status", h.StatusCallback)
	r.Post("/api/call/incoming", h.IncomingCall)
	r.Get("/api/call/logs", h.ListLogs)
	r.Get("/healthz", h.Health)
}

func (h *CallHandler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With("request_id", chi_middleware.GetReqID(r.Context()))
}

// TriggerCall handles POST /api/call: validates the destination number and
// asks the orchestrator to place the reminder call.
func (h *CallHandler) TriggerCall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	var req TriggerCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "Failed to decode trigger call request", "error", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON body"})
		return
	}

	if err := h.validate.StructCtx(ctx, req); err != nil {
		logger.WarnContext(ctx, "Trigger call request failed validation", "error", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Phone number is required"})
		return
	}

	sid, err := h.service.InitiateCall(ctx, req.PhoneNumber)
	if err != nil {
		if errors.Is(err, domain.ErrMissingPhoneNumber) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Phone number is required"})
			return
		}
		logger.ErrorContext(ctx, "Failed to initiate call", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to initiate call"})
		return
	}

	logger.InfoContext(ctx, "Call initiated", "sid", sid)
	writeJSON(w, http.StatusOK, TriggerCallResponse{Message: "Call initiated", SID: sid})
}

// Voice handles POST /api/call/voice: the provider's answer webhook. Always
// 200 with markup; branching only on the answered-by classification.
func (h *CallHandler) Voice(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)

	if err := r.ParseForm(); err != nil {
		logger.WarnContext(r.Context(), "Failed to parse voice webhook form", "error", err)
	}
	answeredBy := domain.ParseAnsweredBy(r.PostFormValue("AnsweredBy"))
	logger.InfoContext(r.Context(), "Answer webhook received", "answered_by", answeredBy)

	h.writeTwiML(w, r, h.service.AnswerScript(answeredBy))
}

// RecordingWebhook handles POST /api/call/webhook/recording. This is the one
// provider webhook that propagates real failures: the provider retries
// recording callbacks, so a 500 here is recoverable.
func (h *CallHandler) RecordingWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	if err := r.ParseForm(); err != nil {
		logger.WarnContext(ctx, "Failed to parse recording webhook form", "error", err)
	}
	recordingURL := r.PostFormValue("RecordingUrl")
	callSID := r.PostFormValue("CallSid")
	logger = logger.With("call_sid", callSID)

	script, err := h.service.HandleRecordingReady(ctx, callSID, recordingURL)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingRecordingURL), errors.Is(err, domain.ErrMissingCallSID):
			logger.WarnContext(ctx, "Recording webhook missing required field", "error", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			logger.ErrorContext(ctx, "Failed to process recording", "error", err)
			http.Error(w, "Failed to process recording", http.StatusInternalServerError)
		}
		return
	}

	logger.InfoContext(ctx, "Recording processed")
	h.writeTwiML(w, r, script)
}

// StatusCallback handles POST /api/call/status. Always acknowledged with a
// no-content success regardless of inner outcomes.
func (h *CallHandler) StatusCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	if err := r.ParseForm(); err != nil {
		logger.WarnContext(ctx, "Failed to parse status callback form", "error", err)
	}

	duration := 0
	if raw := r.PostFormValue("Duration"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			duration = parsed
		} else {
			logger.WarnContext(ctx, "Unparseable call duration", "raw", raw)
		}
	}

	update := app.StatusUpdate{
		CallSID:         r.PostFormValue("CallSid"),
		To:              r.PostFormValue("To"),
		From:            r.PostFormValue("From"),
		Status:          domain.CallStatus(r.PostFormValue("CallStatus")),
		AnsweredBy:      domain.ParseAnsweredBy(r.PostFormValue("AnsweredBy")),
		DurationSeconds: duration,
	}
	logger.InfoContext(ctx, "Status callback received", "call_sid", update.CallSID, "status", update.Status)

	h.service.HandleStatusUpdate(ctx, update)

	w.WriteHeader(http.StatusOK)
}

// IncomingCall handles POST /api/call/incoming: a patient calling back gets
// the same reminder-and-record flow as a live answer.
func (h *CallHandler) IncomingCall(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)

	if err := r.ParseForm(); err != nil {
		logger.WarnContext(r.Context(), "Failed to parse incoming call form", "error", err)
	}
	logger.InfoContext(r.Context(), "Incoming call", "from", r.PostFormValue("From"))

	h.writeTwiML(w, r, h.service.IncomingCallScript())
}

// ListLogs handles GET /api/call/logs: all call records, newest first.
func (h *CallHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	records, err := h.service.ListCalls(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list call records", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to list call logs"})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *CallHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *CallHandler) writeTwiML(w http.ResponseWriter, r *http.Request, script voice.Script) {
	body, err := renderTwiML(script)
	if err != nil {
		// Rendering is pure and should never fail; degrade to an empty
		// response so the provider does not retry.
		h.requestLogger(r).ErrorContext(r.Context(), "Failed to render TwiML", "error", err)
		body = []byte(xmlFallback)
	}
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.requestLogger(r).WarnContext(r.Context(), "Failed to write TwiML response", "error", err)
	}
}

const xmlFallback = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
