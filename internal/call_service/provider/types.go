package provider

import "context"

// PlaceCallParams carries everything the telephony provider needs to start an
// outbound call, including the three webhook targets it will call back on.
type PlaceCallParams struct {
	To   string
	From string

	// AnswerURL is fetched by the provider when the call is answered and must
	// return voice markup.
	AnswerURL string
	// StatusCallbackURL receives lifecycle status callbacks.
	StatusCallbackURL string
	// RecordingCallbackURL receives the finished-recording callback.
	RecordingCallbackURL string

	// MachineDetection asks the provider to classify who answered.
	MachineDetection bool
}

// SendSMSParams carries an outbound text message.
type SendSMSParams struct {
	To   string
	From string
	Body string

	// ClientReference is our idempotency/trace id for the send attempt.
	ClientReference string
}

// Notifier is the thin outbound interface to the telephony provider.
// Both operations fail with *domain.NotifierError on provider rejection;
// callers decide whether that is fatal.
type Notifier interface {
	// PlaceCall starts an outbound call and returns the provider-assigned
	// call SID, the correlation id for all subsequent webhooks.
	PlaceCall(ctx context.Context, params PlaceCallParams) (string, error)

	// SendSMS sends a text message and returns the provider message SID.
	SendSMS(ctx context.Context, params SendSMSParams) (string, error)
}
