package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	renaerrors "github.com/renalabs/rena/pkg/errors"
	"github.com/renalabs/rena/pkg/logging"
)

func newBase(t *testing.T, timeout time.Duration) *Client {
	t.Helper()
	return New(Config{Timeout: timeout, APIKey: "test-key"}, logging.NewNopLogger())
}

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meeting.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF....WAVE"), 0o600))
	return path
}

func TestTranscribeUploadsMultipart(t *testing.T) {
	var gotModel, gotAuth, gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transcribe", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		gotModel = r.FormValue("model")
		if _, hdr, err := r.FormFile("file"); err == nil {
			gotFile = hdr.Filename
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"segments": []map[string]any{
				{"start": 0.0, "end": 2.5, "text": "hello there"},
				{"start": 2.5, "end": 5.0, "text": "welcome"},
			},
			"language": "en",
		})
	}))
	defer srv.Close()

	tc := NewTranscriptionClient(newBase(t, time.Minute), srv.URL)
	segments, err := tc.Transcribe(context.Background(), writeAudio(t), "large-v3")
	require.NoError(t, err)

	require.Len(t, segments, 2)
	assert.Equal(t, "hello there", segments[0].Text)
	assert.Equal(t, 2.5, segments[1].Start)
	assert.Equal(t, "large-v3", gotModel)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "meeting.wav", gotFile)
}

func TestQuotaMapsToTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	sc := NewSynthesisClient(newBase(t, time.Minute), srv.URL)
	_, err := sc.Synthesize(context.Background(), "transcript", "gemini")
	assert.ErrorIs(t, err, renaerrors.ErrQuotaExceeded)
}

func TestServerErrorMapsToUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	dc := NewDiarizationClient(newBase(t, time.Minute), srv.URL)
	_, err := dc.Diarize(context.Background(), writeAudio(t))
	assert.ErrorIs(t, err, renaerrors.ErrServiceUnavailable)
}

func TestConnectionRefusedMapsToUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	ec := NewEmbeddingClient(newBase(t, time.Minute), srv.URL)
	_, err := ec.Embed(context.Background(), []string{"text"})
	assert.ErrorIs(t, err, renaerrors.ErrServiceUnavailable)
}

func TestSlowServerMapsToTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	sc := NewSynthesisClient(newBase(t, 20*time.Millisecond), srv.URL)
	_, err := sc.Synthesize(context.Background(), "transcript", "gemini")
	assert.ErrorIs(t, err, renaerrors.ErrTimeout)
}

func TestEmbedRejectsCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{0.1, 0.2}},
		})
	}))
	defer srv.Close()

	ec := NewEmbeddingClient(newBase(t, time.Minute), srv.URL)
	_, err := ec.Embed(context.Background(), []string{"one", "two"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got 1 vectors for 2 texts")
}

func TestAnswerRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/answer", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "what was decided?", req["question"])
		_ = json.NewEncoder(w).Encode(map[string]string{"answer": "the budget was approved"})
	}))
	defer srv.Close()

	sc := NewSynthesisClient(newBase(t, time.Minute), srv.URL)
	ans, err := sc.Answer(context.Background(), "what was decided?", []string{"ctx"}, "gemini")
	require.NoError(t, err)
	assert.Equal(t, "the budget was approved", ans)
}
