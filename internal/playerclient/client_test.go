package playerclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/orgball2608/fary-stories/internal/domain"
	"github.com/orgball2608/fary-stories/pkg/logger"
	"github.com/orgball2608/fary-stories/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url, token string) *Client {
	c := New(url, token, logger.NewNop())
	c.retry = retry.Config{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1}
	return c
}

func TestListLive(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stories/user/0xabc", r.URL.Path)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode([]domain.StoryItem{
			{ID: "s1", SubjectKey: "0xabc", MediaKind: domain.MediaKindVideo, MediaDurationMs: 3000},
		})
	}))
	defer srv.Close()

	items, err := newTestClient(srv.URL, "").ListLive(context.Background(), " 0xABC")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3*time.Second, items[0].MediaDuration())
	assert.EqualValues(t, 2, calls.Load())
}

func TestRecordView_SendsTokenAndKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/stories/s1/views", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "42", body["viewer_key"])
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, newTestClient(srv.URL, "tok").RecordView(context.Background(), "s1", "42"))
}

func TestRecordView_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"viewer key is required"}`))
	}))
	defer srv.Close()

	err := newTestClient(srv.URL, "").RecordView(context.Background(), "s1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "viewer key is required")
	assert.EqualValues(t, 1, calls.Load())
}

func TestRecordView_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL, "").RecordView(context.Background(), "gone", "42")
	assert.ErrorIs(t, err, ErrNotFound)
}
