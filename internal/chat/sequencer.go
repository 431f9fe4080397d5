package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Mode selects the sequencer's fault policy for one turn.
type Mode string

const (
	// ModeGuided wraps the whole stream in one progress scope and stops
	// consuming at the first render fault.
	ModeGuided Mode = "guided"
	// ModeDeveloper scopes progress per event; a fault only loses that
	// event's region and consumption continues.
	ModeDeveloper Mode = "developer"
)

// Status is one progress-indicator scope on the surface.
type Status interface {
	Done(label string)
	Fail(label string)
}

// Surface is the display collaborator the sequencer renders into. A fresh
// region is requested for every event; regions are never reused.
type Surface interface {
	NewRegion() Region
	BeginStatus(label string) Status
	ShowError(message string)
}

const generatingLabel = "Generating answer..."

// TurnOutcome is what one pass over the event stream produced.
type TurnOutcome struct {
	// Final is the held final_response, nil when the stream never yielded
	// one. With multiple finals the last one wins.
	Final *StreamEvent
	// Transcript lists the non-final events rendered this turn, in order.
	Transcript []StreamEvent
	// Aborted is set when guided mode stopped consuming after a fault.
	Aborted bool
}

// Sequencer consumes a turn's event stream one event at a time, in order,
// driving the typewriter for every non-final event and holding the final
// response until the stream is exhausted.
type Sequencer struct {
	mode       Mode
	surface    Surface
	typewriter *Typewriter
	logger     *zap.Logger
}

func NewSequencer(mode Mode, surface Surface, tw *Typewriter, logger *zap.Logger) *Sequencer {
	if tw == nil {
		tw = &Typewriter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sequencer{mode: mode, surface: surface, typewriter: tw, logger: logger}
}

// Consume drains events under the sequencer's mode. It never reorders or
// drops events and never lets a render fault escape as an error; the caller
// is responsible for cancelling the producer when Aborted is set.
func (s *Sequencer) Consume(ctx context.Context, events <-chan StreamEvent) TurnOutcome {
	if s.mode == ModeDeveloper {
		return s.consumeDeveloper(ctx, events)
	}
	return s.consumeGuided(ctx, events)
}

func (s *Sequencer) consumeGuided(ctx context.Context, events <-chan StreamEvent) TurnOutcome {
	var out TurnOutcome
	status := s.surface.BeginStatus(generatingLabel)
	for ev := range events {
		if ev.Type == EventFinalResponse {
			out.Final = &StreamEvent{Type: ev.Type, Content: ev.Content}
			continue
		}
		if err := s.renderOne(ctx, ev); err != nil {
			status.Fail("Answer generation failed.")
			s.surface.ShowError(faultMessage(err))
			out.Aborted = true
			return out
		}
		out.Transcript = append(out.Transcript, ev)
	}
	status.Done("Answer generation successful.")
	return out
}

func (s *Sequencer) consumeDeveloper(ctx context.Context, events <-chan StreamEvent) TurnOutcome {
	var out TurnOutcome
	for ev := range events {
		if ev.Type == EventFinalResponse {
			out.Final = &StreamEvent{Type: ev.Type, Content: ev.Content}
			continue
		}
		status := s.surface.BeginStatus(generatingLabel)
		if err := s.renderOne(ctx, ev); err != nil {
			status.Fail("Event render failed.")
			s.surface.ShowError(faultMessage(err))
			continue
		}
		status.Done("Answer generation successful.")
		out.Transcript = append(out.Transcript, ev)
	}
	return out
}

// RenderFinal typewriter-renders the held final response into its own
// region, inside one progress scope, after the stream is exhausted.
func (s *Sequencer) RenderFinal(ctx context.Context, final StreamEvent) error {
	status := s.surface.BeginStatus(generatingLabel)
	if err := s.renderOne(ctx, final); err != nil {
		status.Fail("Answer render failed.")
		s.surface.ShowError(faultMessage(err))
		return err
	}
	status.Done("Answer generation successful.")
	return nil
}

func (s *Sequencer) renderOne(ctx context.Context, ev StreamEvent) error {
	if !ev.Type.Known() {
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	region := s.surface.NewRegion()
	if err := s.typewriter.Render(ctx, ev, region); err != nil {
		s.logger.Warn("event render failed", zap.String("type", string(ev.Type)), zap.Error(err))
		return err
	}
	return nil
}

func faultMessage(err error) string {
	return fmt.Sprintf("An exception of type %T occurred. Arguments: %v", err, err)
}
