package transcription

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelinkhq/medcall/internal/call_service/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}
}

func newAudioServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok, "recording download must be credentialed")
		assert.Equal(t, "AC_test", user)
		assert.Equal(t, "secret", pass)
		_, _ = w.Write([]byte("RIFF-fake-audio"))
	}))
}

func newFetcher(sttURL string) *HTTPFetcher {
	return NewHTTPFetcher(testLogger(), sttURL, "dg_key", "AC_test", "secret", testPolicy(), nil)
}

func TestFetchTranscript_Success(t *testing.T) {
	audioServer := newAudioServer(t)
	defer audioServer.Close()

	sttServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token dg_key", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "RIFF-fake-audio", string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"yes I took them"}]}]}}`))
	}))
	defer sttServer.Close()

	transcript, err := newFetcher(sttServer.URL).FetchTranscript(context.Background(), audioServer.URL)
	require.NoError(t, err)
	assert.Equal(t, "yes I took them", transcript)
}

func TestFetchTranscript_RetriesTransientThenSucceeds(t *testing.T) {
	audioServer := newAudioServer(t)
	defer audioServer.Close()

	var calls atomic.Int32
	sttServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 3 {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"yes"}]}]}}`))
	}))
	defer sttServer.Close()

	transcript, err := newFetcher(sttServer.URL).FetchTranscript(context.Background(), audioServer.URL)
	require.NoError(t, err)
	assert.Equal(t, "yes", transcript)
	assert.Equal(t, int32(4), calls.Load(), "three 503s then success on the fourth attempt")
}

func TestFetchTranscript_ExhaustsRetries(t *testing.T) {
	audioServer := newAudioServer(t)
	defer audioServer.Close()

	var calls atomic.Int32
	sttServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	defer sttServer.Close()

	_, err := newFetcher(sttServer.URL).FetchTranscript(context.Background(), audioServer.URL)
	require.Error(t, err)

	var transcriptionErr *domain.TranscriptionError
	require.ErrorAs(t, err, &transcriptionErr)
	assert.Equal(t, 4, transcriptionErr.Attempts)
	assert.Equal(t, int32(4), calls.Load())
}

func TestFetchTranscript_PermanentFailureNotRetried(t *testing.T) {
	audioServer := newAudioServer(t)
	defer audioServer.Close()

	var calls atomic.Int32
	sttServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer sttServer.Close()

	_, err := newFetcher(sttServer.URL).FetchTranscript(context.Background(), audioServer.URL)
	require.Error(t, err)

	var transcriptionErr *domain.TranscriptionError
	require.ErrorAs(t, err, &transcriptionErr)
	assert.Equal(t, 1, transcriptionErr.Attempts)
	assert.Equal(t, int32(1), calls.Load(), "4xx must surface immediately without retry")
}

func TestFetchTranscript_MalformedResponseNotRetried(t *testing.T) {
	audioServer := newAudioServer(t)
	defer audioServer.Close()

	var calls atomic.Int32
	sttServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"results":{"channels":[]}}`))
	}))
	defer sttServer.Close()

	_, err := newFetcher(sttServer.URL).FetchTranscript(context.Background(), audioServer.URL)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryPolicy_WorstCase(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: 500 * time.Millisecond}

	// 4 attempts of 10s each plus backoffs of 0.5s, 1s, 2s.
	assert.Equal(t, 43500*time.Millisecond, policy.WorstCase(10*time.Second))

	// The default policy with two 30s requests per attempt must fit inside
	// a write timeout sized from it.
	worst := DefaultRetryPolicy().WorstCase(2 * DefaultHTTPTimeout)
	assert.Equal(t, 243500*time.Millisecond, worst)
}

func TestRetryPolicy_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := RetryPolicy{MaxRetries: 3, BaseDelay: time.Hour}
	_, err := policy.Do(ctx, func(context.Context) error {
		return &statusError{code: http.StatusInternalServerError}
	})
	assert.ErrorIs(t, err, context.Canceled)
}
