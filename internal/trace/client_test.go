package trace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateFeedbackPostsScoreAndReturnsID(t *testing.T) {
	var got feedbackRequest
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/feedback", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotKey = r.Header.Get("X-API-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Feedback{ID: "fb-42"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second, nil)
	fb, err := c.CreateFeedback(context.Background(), "run-7", "FACES: 🙂", 0.75, "helpful")
	require.NoError(t, err)
	require.Equal(t, "fb-42", fb.ID)
	require.Equal(t, "secret", gotKey)
	require.Equal(t, feedbackRequest{RunID: "run-7", Key: "FACES: 🙂", Score: 0.75, Comment: "helpful"}, got)
}

func TestCreateFeedbackSurfacesServiceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "run not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second, nil)
	_, err := c.CreateFeedback(context.Background(), "run-missing", "FACES: 😐", 0.5, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
	require.Contains(t, err.Error(), "run not found")
}

func TestRunCollectorKeepsLastReportedRun(t *testing.T) {
	rc := NewRunCollector()

	_, ok := rc.LastRunID()
	require.False(t, ok)

	rc.RunStarted("run-1")
	rc.RunStarted("")
	rc.RunStarted("run-2")

	id, ok := rc.LastRunID()
	require.True(t, ok)
	require.Equal(t, "run-2", id)

	rc.Reset()
	_, ok = rc.LastRunID()
	require.False(t, ok)
}
