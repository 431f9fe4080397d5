package chat

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// StreamInput is the payload handed to the pipeline's streaming entry point.
type StreamInput struct {
	Messages        []Message
	PriorGeneration string
}

// RunCallback observes trace run identifiers minted while a turn executes.
type RunCallback interface {
	RunStarted(runID string)
}

// RunConfig scopes one turn's execution: the session's thread identity, the
// data route the pipeline should answer from and the callbacks that collect
// traced runs.
type RunConfig struct {
	ThreadID  string
	DataRoute string
	Callbacks []RunCallback
}

// Pipeline is the external agent pipeline's streaming contract. Stream
// pushes events through emit in emission order and returns a non-nil error
// on any fault. Implementations must honor ctx and stop emitting once emit
// returns an error.
type Pipeline interface {
	Stream(ctx context.Context, in StreamInput, cfg RunConfig, emit func(StreamEvent) error) error
}

// TurnExecutor republishes one turn's pipeline events. Faults raised while
// producing events never cross the channel boundary: they become exactly one
// terminal error event.
type TurnExecutor struct {
	pipeline Pipeline
	logger   *zap.Logger
}

// NewTurnExecutor wires the executor to a pipeline. The pipeline instance is
// constructed once per process and reused across turns.
func NewTurnExecutor(p Pipeline, logger *zap.Logger) *TurnExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TurnExecutor{pipeline: p, logger: logger}
}

// Execute streams one turn. The returned channel is unbuffered so events are
// handed over strictly in emission order, it always terminates, and it closes
// after the terminal event. history must contain at least the just-appended
// user message.
func (e *TurnExecutor) Execute(ctx context.Context, history []Message, cfg RunConfig, priorGeneration string) <-chan StreamEvent {
	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		var err error
		if len(history) == 0 {
			err = errors.New("empty message history")
		} else {
			err = e.stream(ctx, history, cfg, priorGeneration, out)
		}
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		e.logger.Warn("pipeline stream failed", zap.String("thread_id", cfg.ThreadID), zap.Error(err))
		msg := fmt.Sprintf(
			"An error has occurred with the retrieval from DocDB: %v. Try structuring your query another way.",
			err,
		)
		select {
		case out <- StreamEvent{Type: EventError, Content: msg}:
		case <-ctx.Done():
		}
	}()
	return out
}

func (e *TurnExecutor) stream(ctx context.Context, history []Message, cfg RunConfig, priorGeneration string, out chan<- StreamEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	in := StreamInput{Messages: history, PriorGeneration: priorGeneration}
	return e.pipeline.Stream(ctx, in, cfg, func(ev StreamEvent) error {
		select {
		case out <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}
