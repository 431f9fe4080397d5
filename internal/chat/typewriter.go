package chat

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

const defaultWordInterval = 30 * time.Millisecond

// Region is one dedicated output area. Every Write replaces the region's
// whole content; the sequencer never reuses a region across events.
type Region interface {
	Write(text string) error
}

// Typewriter reveals an event's payload word by word with a paced delay
// between writes. Pacing suspends cooperatively: cancelling the context
// skips straight to the final write instead of blocking the caller.
type Typewriter struct {
	// Interval between word writes; defaults to 30ms when zero.
	Interval time.Duration
}

// Render writes ev's resolved content into region. Text content gets the
// paced word-by-word reveal; structured tool payloads skip pacing. The last
// write is unconditional and carries the fully resolved content so the
// region ends complete even when pacing was interrupted.
func (t *Typewriter) Render(ctx context.Context, ev StreamEvent, region Region) error {
	text, structured, isText := resolvePayload(ev)

	if isText {
		interval := t.Interval
		if interval <= 0 {
			interval = defaultWordInterval
		}
		var full strings.Builder
		paced := true
		for _, word := range strings.Fields(text) {
			if !paced {
				break
			}
			full.WriteString(word)
			full.WriteString(" ")
			if err := region.Write(full.String()); err != nil {
				return err
			}
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				paced = false
			}
		}
		return region.Write(text)
	}

	pretty, err := json.MarshalIndent(structured, "", "  ")
	if err != nil {
		return region.Write(ev.Content)
	}
	return region.Write(string(pretty))
}

// resolvePayload resolves an event's content for rendering. tool_output
// payloads go through an ordered parse chain: parse the content as JSON;
// when the value is a one-element array, unwrap the element, parsing it a
// second time if it is itself a JSON string. Whatever refuses to parse is
// treated as opaque text.
func resolvePayload(ev StreamEvent) (text string, structured any, isText bool) {
	if ev.Type != EventToolOutput {
		return ev.Content, nil, true
	}

	var value any
	if err := json.Unmarshal([]byte(ev.Content), &value); err != nil {
		return ev.Content, nil, true
	}
	if wrapped, ok := value.([]any); ok && len(wrapped) == 1 {
		switch inner := wrapped[0].(type) {
		case string:
			var nested any
			if err := json.Unmarshal([]byte(inner), &nested); err == nil {
				value = nested
			} else {
				value = inner
			}
		default:
			value = inner
		}
	}
	if s, ok := value.(string); ok {
		return s, nil, true
	}
	return "", value, false
}
