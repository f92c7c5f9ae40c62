// Package app holds the call orchestrator: the state machine that routes
// webhook-driven lifecycle events, drives persistence, and decides when to
// escalate to SMS.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/carelinkhq/medcall/internal/call_service/domain"
	"github.com/carelinkhq/medcall/internal/call_service/provider"
	"github.com/carelinkhq/medcall/internal/call_service/repository"
	"github.com/carelinkhq/medcall/internal/call_service/transcription"
	"github.com/carelinkhq/medcall/internal/call_service/voice"
)

const fallbackSMSBody = "We tried to reach you to confirm your medication schedule but could not get through. " +
	"Please take your medications if you have not done so, or call us back."

// CallbackURLs are the publicly reachable webhook targets handed to the
// telephony provider when a call is placed.
type CallbackURLs struct {
	Answer    string
	Status    string
	Recording string
}

// StatusUpdate is one provider status callback, already parsed by transport.
type StatusUpdate struct {
	CallSID         string
	To              string
	From            string
	Status          domain.CallStatus
	AnsweredBy      domain.AnsweredBy
	DurationSeconds int
}

// CallAppService orchestrates the call lifecycle. All collaborators are
// injected so tests can substitute fakes.
type CallAppService struct {
	callRepo    repository.CallRepository
	notifier    provider.Notifier
	fetcher     transcription.Fetcher
	events      EventPublisher
	logger      *slog.Logger
	callbacks   CallbackURLs
	fromNumber  string
	settleDelay time.Duration
}

func NewCallAppService(
	callRepo repository.CallRepository,
	notifier provider.Notifier,
	fetcher transcription.Fetcher,
	events EventPublisher,
	logger *slog.Logger,
	callbacks CallbackURLs,
	fromNumber string,
	settleDelay time.Duration,
) *CallAppService {
	return &CallAppService{
		callRepo:    callRepo,
		notifier:    notifier,
		fetcher:     fetcher,
		events:      events,
		logger:      logger.With("service", "call_app"),
		callbacks:   callbacks,
		fromNumber:  fromNumber,
		settleDelay: settleDelay,
	}
}

// InitiateCall places an outbound reminder call and returns the provider's
// call SID. The record is pre-created as "initiated" so unanswered attempts
// still show up in the log listing; a failed pre-create is not fatal because
// the first webhook upsert converges to the same state.
func (s *CallAppService) InitiateCall(ctx context.Context, phoneNumber string) (string, error) {
	if phoneNumber == "" {
		callsInitiatedCounter.WithLabelValues("validation_error").Inc()
		return "", domain.ErrMissingPhoneNumber
	}

	callSID, err := s.notifier.PlaceCall(ctx, provider.PlaceCallParams{
		To:                   phoneNumber,
		From:                 s.fromNumber,
		AnswerURL:            s.callbacks.Answer,
		StatusCallbackURL:    s.callbacks.Status,
		RecordingCallbackURL: s.callbacks.Recording,
		MachineDetection:     true,
	})
	if err != nil {
		callsInitiatedCounter.WithLabelValues("provider_error").Inc()
		return "", fmt.Errorf("failed to place call to %s: %w", phoneNumber, err)
	}
	s.logger.InfoContext(ctx, "Call initiated", "call_sid", callSID, "to", phoneNumber)
	callsInitiatedCounter.WithLabelValues("success").Inc()

	status := domain.StatusInitiated
	if _, err := s.callRepo.Upsert(ctx, callSID, domain.CallUpdate{
		To:     &phoneNumber,
		From:   &s.fromNumber,
		Status: &status,
	}); err != nil {
		storeFailuresCounter.Inc()
		s.logger.WarnContext(ctx, "Failed to pre-create call record", "call_sid", callSID, "error", err)
	}

	return callSID, nil
}

// AnswerScript maps the provider's answered-by classification onto the voice
// script spoken on pickup. Pure: no persistence, no retry; the provider
// expects markup synchronously.
func (s *CallAppService) AnswerScript(answeredBy domain.AnsweredBy) voice.Script {
	webhooksReceivedCounter.WithLabelValues("answered").Inc()

	switch answeredBy {
	case domain.AnsweredByMachineStart,
		domain.AnsweredByMachineEndBeep,
		domain.AnsweredByMachineEndSilence,
		domain.AnsweredByMachineEndOther,
		domain.AnsweredByFax:
		return voice.Voicemail()
	case domain.AnsweredByHuman, domain.AnsweredByUnknown:
		return voice.Reminder(s.callbacks.Recording)
	}
	return voice.Reminder(s.callbacks.Recording)
}

// IncomingCallScript handles a patient calling us back: same branch as a
// human answer. Stateless; no prior outbound call is required.
func (s *CallAppService) IncomingCallScript() voice.Script {
	webhooksReceivedCounter.WithLabelValues("incoming").Inc()
	return voice.Reminder(s.callbacks.Recording)
}

// HandleRecordingReady waits for the provider to finalize the audio artifact,
// fetches the transcript, and persists both onto the call record. No partial
// upsert happens when transcription fails; the caller gets a definite error.
func (s *CallAppService) HandleRecordingReady(ctx context.Context, callSID, recordingURL string) (voice.Script, error) {
	webhooksReceivedCounter.WithLabelValues("recording").Inc()

	if recordingURL == "" {
		return nil, domain.ErrMissingRecordingURL
	}
	if callSID == "" {
		return nil, domain.ErrMissingCallSID
	}

	if err := s.settle(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	transcript, err := s.fetcher.FetchTranscript(ctx, recordingURL)
	if err != nil {
		transcriptionDurationHist.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, err
	}
	transcriptionDurationHist.WithLabelValues("success").Observe(time.Since(start).Seconds())

	if _, err := s.callRepo.Upsert(ctx, callSID, domain.CallUpdate{
		RecordingURL: &recordingURL,
		Transcript:   &transcript,
	}); err != nil {
		storeFailuresCounter.Inc()
		return nil, fmt.Errorf("failed to store transcript for call %s: %w", callSID, err)
	}

	s.logger.InfoContext(ctx, "Recording transcribed and stored", "call_sid", callSID, "transcript_len", len(transcript))
	s.publishEvent(ctx, SubjectCallTranscriptReady, CallEvent{CallSID: callSID, Transcript: transcript})

	return voice.Closing(), nil
}

// settle pauses so the provider can finalize the recording; cancellable if
// the surrounding request times out.
func (s *CallAppService) settle(ctx context.Context) error {
	if s.settleDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.settleDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleStatusUpdate upserts the full record for a status callback and, for
// unreachable outcomes, escalates to SMS. It never fails: the provider does
// not retry on application errors, so persistence and SMS failures are
// observed but swallowed and the webhook is acknowledged regardless.
func (s *CallAppService) HandleStatusUpdate(ctx context.Context, update StatusUpdate) {
	webhooksReceivedCounter.WithLabelValues("status").Inc()

	logger := s.logger.With("call_sid", update.CallSID, "status", update.Status)

	patch := domain.CallUpdate{
		To:              &update.To,
		From:            &update.From,
		AnsweredBy:      &update.AnsweredBy,
		DurationSeconds: &update.DurationSeconds,
	}
	// A malformed callback without CallStatus must not blank a stored status;
	// COALESCE in the upsert only guards NULL, not the empty string.
	if update.Status != "" {
		patch.Status = &update.Status
	}

	if _, err := s.callRepo.Upsert(ctx, update.CallSID, patch); err != nil {
		storeFailuresCounter.Inc()
		logger.ErrorContext(ctx, "Failed to persist status update", "error", err)
	}

	s.publishEvent(ctx, SubjectCallStatusUpdated, CallEvent{
		CallSID:    update.CallSID,
		Status:     update.Status,
		AnsweredBy: update.AnsweredBy,
	})

	if update.Status.ShouldFallbackToSMS() {
		// Fire-and-forget: the webhook response must not wait on the SMS,
		// and an aborted webhook must not cancel it.
		go s.sendFallbackSMS(update.CallSID, update.To)
	}
}

func (s *CallAppService) sendFallbackSMS(callSID, to string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	messageSID, err := s.notifier.SendSMS(ctx, provider.SendSMSParams{
		To:              to,
		From:            s.fromNumber,
		Body:            fallbackSMSBody,
		ClientReference: uuid.NewString(),
	})
	if err != nil {
		fallbackSMSCounter.WithLabelValues("error").Inc()
		s.logger.Error("Failed to send fallback SMS", "call_sid", callSID, "to", to, "error", err)
		return
	}
	fallbackSMSCounter.WithLabelValues("sent").Inc()
	s.logger.Info("Fallback SMS sent", "call_sid", callSID, "to", to, "message_sid", messageSID)
}

// ListCalls returns all call records, newest first.
func (s *CallAppService) ListCalls(ctx context.Context) ([]domain.CallRecord, error) {
	return s.callRepo.List(ctx)
}
