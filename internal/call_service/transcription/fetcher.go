// Package transcription downloads recorded call audio and obtains a
// transcript from a speech-to-text provider, insulating the orchestrator
// from transient network failures.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/carelinkhq/medcall/internal/call_service/domain"
)

// Fetcher turns a recording reference into transcript text.
type Fetcher interface {
	FetchTranscript(ctx context.Context, recordingURL string) (string, error)
}

// HTTPFetcher downloads the audio artifact with the provider's credentials
// and submits it to a Deepgram-compatible prerecorded transcription endpoint.
type HTTPFetcher struct {
	logger       *slog.Logger
	httpClient   *http.Client
	sttURL       string
	sttAPIKey    string
	downloadUser string
	downloadPass string
	policy       RetryPolicy
}

// DefaultHTTPTimeout bounds a single download-or-transcribe request when no
// client is injected.
const DefaultHTTPTimeout = 30 * time.Second

func NewHTTPFetcher(logger *slog.Logger, sttURL, sttAPIKey, downloadUser, downloadPass string, policy RetryPolicy, httpClient *http.Client) *HTTPFetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &HTTPFetcher{
		logger:       logger.With("component", "transcription_fetcher"),
		httpClient:   httpClient,
		sttURL:       sttURL,
		sttAPIKey:    sttAPIKey,
		downloadUser: downloadUser,
		downloadPass: downloadPass,
		policy:       policy,
	}
}

// sttResponse mirrors the transcription provider's JSON shape; the primary
// transcript is the first channel's best alternative.
type sttResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// FetchTranscript runs the whole download-and-transcribe pipeline under the
// retry policy. On failure it returns *domain.TranscriptionError with the
// last underlying cause attached.
func (f *HTTPFetcher) FetchTranscript(ctx context.Context, recordingURL string) (string, error) {
	var transcript string
	attempts, err := f.policy.Do(ctx, func(ctx context.Context) error {
		t, err := f.fetchOnce(ctx, recordingURL)
		if err != nil {
			f.logger.WarnContext(ctx, "Transcription attempt failed", "recording_url", recordingURL, "error", err)
			return err
		}
		transcript = t
		return nil
	})
	if err != nil {
		f.logger.ErrorContext(ctx, "Transcription failed", "recording_url", recordingURL, "attempts", attempts, "error", err)
		return "", &domain.TranscriptionError{Attempts: attempts, Err: err}
	}

	f.logger.InfoContext(ctx, "Transcript fetched", "recording_url", recordingURL, "attempts", attempts, "transcript_len", len(transcript))
	return transcript, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, recordingURL string) (string, error) {
	audio, err := f.downloadRecording(ctx, recordingURL)
	if err != nil {
		return "", err
	}
	return f.transcribe(ctx, audio)
}

func (f *HTTPFetcher) downloadRecording(ctx context.Context, recordingURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording download request: %w", err)
	}
	if f.downloadUser != "" {
		req.SetBasicAuth(f.downloadUser, f.downloadPass)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download recording: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("recording download failed: %w", &statusError{code: resp.StatusCode, body: string(body)})
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording body: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("recording download returned empty body")
	}
	return audio, nil
}

func (f *HTTPFetcher) transcribe(ctx context.Context, audio []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.sttURL, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("failed to create transcription request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/wav")
	if f.sttAPIKey != "" {
		req.Header.Set("Authorization", "Token "+f.sttAPIKey)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to submit audio for transcription: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read transcription response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("transcription request failed: %w", &statusError{code: resp.StatusCode, body: string(body)})
	}

	var parsed sttResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode transcription response: %w", err)
	}
	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return "", fmt.Errorf("transcription response contained no alternatives")
	}

	return parsed.Results.Channels[0].Alternatives[0].Transcript, nil
}
