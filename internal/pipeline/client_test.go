package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"gamer/internal/chat"
)

type idRecorder struct {
	ids []string
}

func (r *idRecorder) RunStarted(runID string) { r.ids = append(r.ids, runID) }

func relayAll(c *Client, in chat.StreamInput, cfg chat.RunConfig) ([]chat.StreamEvent, error) {
	var got []chat.StreamEvent
	err := c.Stream(context.Background(), in, cfg, func(ev chat.StreamEvent) error {
		got = append(got, ev)
		return nil
	})
	return got, err
}

func TestStreamDecodesEventsInOrder(t *testing.T) {
	var gotReq streamRequest
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"type":"intermediate_text","content":"Searching the index","run_id":"run-1"}`)
		fmt.Fprintln(w, `{"type":"tool_output","content":{"subject_id":"662616"}}`)
		fmt.Fprintln(w)
		fmt.Fprintln(w, `{"type":"final_response","content":"Two procedures were recorded."}`)
	}))
	defer srv.Close()

	rec := &idRecorder{}
	c := NewClient(srv.URL, "", nil)
	in := chat.StreamInput{
		Messages:        []chat.Message{{Role: chat.RoleUser, Content: "What procedures were performed?"}},
		PriorGeneration: "earlier answer",
	}
	cfg := chat.RunConfig{ThreadID: "thread-9", DataRoute: "docdb", Callbacks: []chat.RunCallback{rec}}

	got, err := relayAll(c, in, cfg)
	require.NoError(t, err)
	require.Equal(t, "/threads/thread-9/stream", gotPath)
	require.Equal(t, in.Messages, gotReq.Messages)
	require.Equal(t, "earlier answer", gotReq.PriorGeneration)
	require.Equal(t, "docdb", gotReq.DataRoute)

	require.Equal(t, []chat.StreamEvent{
		{Type: chat.EventIntermediateText, Content: "Searching the index"},
		{Type: chat.EventToolOutput, Content: `{"subject_id":"662616"}`},
		{Type: chat.EventFinalResponse, Content: "Two procedures were recorded."},
	}, got)
	require.Equal(t, []string{"run-1"}, rec.ids)
}

func TestStreamReportsEveryRunIDToCallbacks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"type":"intermediate_text","content":"a","run_id":"run-1"}`)
		fmt.Fprintln(w, `{"type":"intermediate_text","content":"b"}`)
		fmt.Fprintln(w, `{"type":"final_response","content":"done","run_id":"run-2"}`)
	}))
	defer srv.Close()

	rec := &idRecorder{}
	c := NewClient(srv.URL, "", nil)
	_, err := relayAll(c, chat.StreamInput{}, chat.RunConfig{ThreadID: "t", Callbacks: []chat.RunCallback{rec}})
	require.NoError(t, err)
	require.Equal(t, []string{"run-1", "run-2"}, rec.ids)
}

func TestStreamReturnsServiceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "route unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	_, err := relayAll(c, chat.StreamInput{}, chat.RunConfig{ThreadID: "t"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
	require.Contains(t, err.Error(), "route unavailable")
}

func TestStreamReturnsDecodeFaultsMidStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"type":"intermediate_text","content":"ok"}`)
		fmt.Fprintln(w, `{"type": not json`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	got, err := relayAll(c, chat.StreamInput{}, chat.RunConfig{ThreadID: "t"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode stream event")
	require.Len(t, got, 1)
}

func TestStreamStopsWhenEmitRefuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"type":"intermediate_text","content":"a"}`)
		fmt.Fprintln(w, `{"type":"intermediate_text","content":"b"}`)
	}))
	defer srv.Close()

	refused := errors.New("consumer gone")
	c := NewClient(srv.URL, "", nil)
	seen := 0
	err := c.Stream(context.Background(), chat.StreamInput{}, chat.RunConfig{ThreadID: "t"}, func(chat.StreamEvent) error {
		seen++
		return refused
	})
	require.ErrorIs(t, err, refused)
	require.Equal(t, 1, seen)
}

func TestStreamSendsAPIKeyHeader(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		fmt.Fprintln(w, `{"type":"final_response","content":"ok"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sekrit", nil)
	_, err := relayAll(c, chat.StreamInput{}, chat.RunConfig{ThreadID: "t"})
	require.NoError(t, err)
	require.Equal(t, "sekrit", gotKey)
}
