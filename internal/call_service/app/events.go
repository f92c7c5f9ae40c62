package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/carelinkhq/medcall/internal/call_service/domain"
)

// NATS subjects for call lifecycle events consumed by downstream services
// (adherence analytics, care-team alerting).
const (
	SubjectCallStatusUpdated   = "call.status.updated"
	SubjectCallTranscriptReady = "call.transcript.ready"
)

// EventPublisher is the broker surface the orchestrator needs. Publishing is
// best-effort; failures are logged and never fail a webhook.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// CallEvent is the payload published on call lifecycle subjects.
type CallEvent struct {
	EventID    string            `json:"event_id"`
	CallSID    string            `json:"call_sid"`
	Status     domain.CallStatus `json:"status,omitempty"`
	AnsweredBy domain.AnsweredBy `json:"answered_by,omitempty"`
	Transcript string            `json:"transcript,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

func (s *CallAppService) publishEvent(ctx context.Context, subject string, event CallEvent) {
	if s.events == nil {
		return
	}
	event.EventID = uuid.NewString()
	event.OccurredAt = time.Now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to marshal call event", "subject", subject, "error", err)
		return
	}
	if err := s.events.Publish(ctx, subject, data); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish call event", "subject", subject, "call_sid", event.CallSID, "error", err)
	}
}
