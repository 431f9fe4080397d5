package chat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTypewriterRevealsWordByWord(t *testing.T) {
	region := &recordingRegion{}
	tw := instantTypewriter()

	err := tw.Render(context.Background(), StreamEvent{
		Type:    EventIntermediateText,
		Content: "GAMER retrieves metadata",
	}, region)
	require.NoError(t, err)

	require.Equal(t, []string{
		"GAMER ",
		"GAMER retrieves ",
		"GAMER retrieves metadata ",
		"GAMER retrieves metadata",
	}, region.all())
}

func TestTypewriterFinalWriteMatchesOriginalText(t *testing.T) {
	region := &recordingRegion{}
	tw := instantTypewriter()

	text := "the SmartSPIM instrument ids are listed below"
	err := tw.Render(context.Background(), StreamEvent{Type: EventFinalResponse, Content: text}, region)
	require.NoError(t, err)
	require.Equal(t, text, region.last())
}

func TestTypewriterToolOutputDirectParse(t *testing.T) {
	region := &recordingRegion{}
	tw := instantTypewriter()

	err := tw.Render(context.Background(), StreamEvent{
		Type:    EventToolOutput,
		Content: `{"subject": "662616", "procedures": 4}`,
	}, region)
	require.NoError(t, err)

	// Structured payloads skip pacing entirely.
	writes := region.all()
	require.Len(t, writes, 1)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(writes[0]), &got))
	require.Equal(t, "662616", got["subject"])
}

func TestTypewriterToolOutputDoubleUnwrap(t *testing.T) {
	region := &recordingRegion{}
	tw := instantTypewriter()

	// A JSON-encoded one-element array whose element is itself JSON text.
	inner := `{"instrument_id": "SmartSPIM-01"}`
	wrapped, err := json.Marshal([]string{inner})
	require.NoError(t, err)

	err = tw.Render(context.Background(), StreamEvent{Type: EventToolOutput, Content: string(wrapped)}, region)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(region.last()), &got))
	require.Equal(t, "SmartSPIM-01", got["instrument_id"])
}

func TestTypewriterToolOutputFallsBackToText(t *testing.T) {
	region := &recordingRegion{}
	tw := instantTypewriter()

	err := tw.Render(context.Background(), StreamEvent{
		Type:    EventToolOutput,
		Content: "not json at all",
	}, region)
	require.NoError(t, err)
	require.Equal(t, "not json at all", region.last())
}

func TestTypewriterPropagatesWriteFault(t *testing.T) {
	region := &recordingRegion{err: errRefused}
	tw := instantTypewriter()

	err := tw.Render(context.Background(), StreamEvent{Type: EventIntermediateText, Content: "a b"}, region)
	require.ErrorIs(t, err, errRefused)
}

func TestTypewriterCancelledPacingStillCompletesRegion(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	region := &recordingRegion{}
	tw := &Typewriter{Interval: time.Hour}

	text := "one two three"
	err := tw.Render(ctx, StreamEvent{Type: EventIntermediateText, Content: text}, region)
	require.NoError(t, err)
	require.Equal(t, text, region.last())
}

func TestResolvePayloadUnwrapsNestedObjectDirectly(t *testing.T) {
	_, structured, isText := resolvePayload(StreamEvent{
		Type:    EventToolOutput,
		Content: `[{"modality": "SPIM"}]`,
	})
	require.False(t, isText)
	obj, ok := structured.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "SPIM", obj["modality"])
}

func TestResolvePayloadJSONStringIsText(t *testing.T) {
	text, _, isText := resolvePayload(StreamEvent{
		Type:    EventToolOutput,
		Content: `"plain answer"`,
	})
	require.True(t, isText)
	require.Equal(t, "plain answer", text)
}
