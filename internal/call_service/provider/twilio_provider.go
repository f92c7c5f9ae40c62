package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/carelinkhq/medcall/internal/call_service/domain"
)

// TwilioProvider implements Notifier against the Twilio REST API (or any
// API-compatible emulator pointed at by apiURL).
type TwilioProvider struct {
	logger     *slog.Logger
	httpClient *http.Client
	apiURL     string
	accountSID string
	authToken  string
}

func NewTwilioProvider(logger *slog.Logger, apiURL, accountSID, authToken string, httpClient *http.Client) *TwilioProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TwilioProvider{
		logger:     logger.With("provider", "twilio"),
		httpClient: httpClient,
		apiURL:     strings.TrimRight(apiURL, "/"),
		accountSID: accountSID,
		authToken:  authToken,
	}
}

// twilioResourceResponse is the subset of Twilio's call/message resource
// representation we care about.
type twilioResourceResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type twilioErrorResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

func (p *TwilioProvider) PlaceCall(ctx context.Context, params PlaceCallParams) (string, error) {
	p.logger.InfoContext(ctx, "TwilioProvider: PlaceCall called", "to", params.To)

	form := url.Values{}
	form.Set("To", params.To)
	form.Set("From", params.From)
	form.Set("Url", params.AnswerURL)
	form.Set("StatusCallback", params.StatusCallbackURL)
	// Twilio expects one StatusCallbackEvent parameter per subscribed event.
	for _, event := range []string{"initiated", "ringing", "answered", "completed"} {
		form.Add("StatusCallbackEvent", event)
	}
	if params.RecordingCallbackURL != "" {
		form.Set("RecordingStatusCallback", params.RecordingCallbackURL)
	}
	if params.MachineDetection {
		form.Set("MachineDetection", "DetectMessageEnd")
	}

	resp, err := p.post(ctx, "place_call", "/Calls.json", form)
	if err != nil {
		return "", err
	}
	return resp.SID, nil
}

func (p *TwilioProvider) SendSMS(ctx context.Context, params SendSMSParams) (string, error) {
	p.logger.InfoContext(ctx, "TwilioProvider: SendSMS called", "to", params.To, "client_reference", params.ClientReference)

	form := url.Values{}
	form.Set("To", params.To)
	form.Set("From", params.From)
	form.Set("Body", params.Body)

	resp, err := p.post(ctx, "send_sms", "/Messages.json", form)
	if err != nil {
		return "", err
	}
	return resp.SID, nil
}

// post issues one form-encoded request against the account-scoped resource
// path and decodes the provider's JSON response.
func (p *TwilioProvider) post(ctx context.Context, op, resource string, form url.Values) (*twilioResourceResponse, error) {
	endpoint := fmt.Sprintf("%s/Accounts/%s%s", p.apiURL, p.accountSID, resource)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &domain.NotifierError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.SetBasicAuth(p.accountSID, p.authToken)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to send request to Twilio", "op", op, "error", err)
		return nil, &domain.NotifierError{Op: op, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &domain.NotifierError{Op: op, StatusCode: httpResp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var errResp twilioErrorResponse
		msg := ""
		if jsonErr := json.Unmarshal(respBody, &errResp); jsonErr == nil {
			msg = errResp.Message
		}
		p.logger.WarnContext(ctx, "Twilio request rejected", "op", op, "status_code", httpResp.StatusCode, "message", msg)
		return nil, &domain.NotifierError{
			Op:         op,
			StatusCode: httpResp.StatusCode,
			Message:    msg,
			Err:        fmt.Errorf("twilio returned status %d", httpResp.StatusCode),
		}
	}

	var resp twilioResourceResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &domain.NotifierError{Op: op, StatusCode: httpResp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if resp.SID == "" {
		return nil, &domain.NotifierError{Op: op, StatusCode: httpResp.StatusCode, Err: fmt.Errorf("response missing resource sid")}
	}

	p.logger.InfoContext(ctx, "Twilio request accepted", "op", op, "sid", resp.SID, "provider_status", resp.Status)
	return &resp, nil
}
