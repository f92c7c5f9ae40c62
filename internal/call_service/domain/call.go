package domain

import "time"

// CallStatus is the lifecycle status of a call attempt as reported by the
// telephony provider's status callbacks. The provider is the source of truth;
// later callbacks for the same call overwrite earlier values.
type CallStatus string

const (
	StatusInitiated     CallStatus = "initiated"
	StatusQueued        CallStatus = "queued"
	StatusRinging       CallStatus = "ringing"
	StatusInProgress    CallStatus = "in-progress"
	StatusCompleted     CallStatus = "completed"
	StatusVoicemailLeft CallStatus = "voicemail-left"
	StatusBusy          CallStatus = "busy"
	StatusNoAnswer      CallStatus = "no-answer"
	StatusFailed        CallStatus = "failed"
	StatusCanceled      CallStatus = "canceled"
)

// ShouldFallbackToSMS reports whether a status callback carrying this status
// should trigger the unreachable-patient SMS fallback.
func (s CallStatus) ShouldFallbackToSMS() bool {
	switch s {
	case StatusNoAnswer, StatusBusy, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the provider considers the call finished.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusVoicemailLeft, StatusBusy, StatusNoAnswer, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// AnsweredBy classifies who (or what) picked up the call, per the provider's
// answering machine detection.
type AnsweredBy string

const (
	AnsweredByHuman             AnsweredBy = "human"
	AnsweredByMachineStart      AnsweredBy = "machine_start"
	AnsweredByMachineEndBeep    AnsweredBy = "machine_end_beep"
	AnsweredByMachineEndSilence AnsweredBy = "machine_end_silence"
	AnsweredByMachineEndOther   AnsweredBy = "machine_end_other"
	AnsweredByFax               AnsweredBy = "fax"
	AnsweredByUnknown           AnsweredBy = "unknown"
)

// ParseAnsweredBy maps a raw callback value onto the closed enumeration.
// Values the provider has not documented collapse to AnsweredByUnknown.
func ParseAnsweredBy(raw string) AnsweredBy {
	switch AnsweredBy(raw) {
	case AnsweredByHuman,
		AnsweredByMachineStart,
		AnsweredByMachineEndBeep,
		AnsweredByMachineEndSilence,
		AnsweredByMachineEndOther,
		AnsweredByFax:
		return AnsweredBy(raw)
	}
	return AnsweredByUnknown
}

// IsMachine reports whether the classification indicates anything other than
// a live person: an answering machine in any detection phase, or a fax line.
func (a AnsweredBy) IsMachine() bool {
	switch a {
	case AnsweredByMachineStart,
		AnsweredByMachineEndBeep,
		AnsweredByMachineEndSilence,
		AnsweredByMachineEndOther,
		AnsweredByFax:
		return true
	case AnsweredByHuman, AnsweredByUnknown:
		return false
	}
	return false
}

// CallRecord is the single durable record for one physical call attempt,
// keyed by the provider-assigned call SID.
type CallRecord struct {
	CallSID         string     `json:"callSid"`
	To              string     `json:"to"`
	From            string     `json:"from"`
	Status          CallStatus `json:"status"`
	AnsweredBy      AnsweredBy `json:"answeredBy,omitempty"`
	DurationSeconds int        `json:"duration"`
	RecordingURL    string     `json:"recordingUrl,omitempty"`
	Transcript      string     `json:"transcription,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// CallUpdate is a merge patch applied to a CallRecord by upsert. Nil fields
// are left untouched in the stored record; webhooks may arrive in any order,
// so no transition assumes the record already exists.
type CallUpdate struct {
	To              *string
	From            *string
	Status          *CallStatus
	AnsweredBy      *AnsweredBy
	DurationSeconds *int
	RecordingURL    *string
	Transcript      *string
}
