package domain

import (
	"errors"
	"fmt"
)

// Validation failures on inbound requests; map to 400 at the HTTP boundary.
var (
	ErrMissingPhoneNumber  = errors.New("phone number is required")
	ErrMissingRecordingURL = errors.New("recording URL is required")
	ErrMissingCallSID      = errors.New("call SID is required")
)

// ErrCallNotFound is returned by repositories on reads for an unseen call SID.
var ErrCallNotFound = errors.New("call record not found")

// NotifierError wraps a telephony provider rejection of an outbound call or
// SMS request. Callers decide whether it is fatal (call initiation) or
// recoverable (fallback SMS).
type NotifierError struct {
	Op         string // "place_call" or "send_sms"
	StatusCode int    // provider HTTP status, 0 if the request never completed
	Message    string // provider-supplied error message, if any
	Err        error
}

func (e *NotifierError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("notifier %s failed (status %d): %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("notifier %s failed: %v", e.Op, e.Err)
}

func (e *NotifierError) Unwrap() error { return e.Err }

// TranscriptionError is the terminal failure of the transcription pipeline,
// raised after retries are exhausted or on a non-retryable failure. The last
// underlying cause is attached.
type TranscriptionError struct {
	Attempts int
	Err      error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }
