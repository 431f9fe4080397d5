package chat

import (
	"context"

	"go.uber.org/zap"
)

// RunCollector is the run-collection boundary: it observes traced run
// identifiers during a turn and hands back the most recent one afterwards.
type RunCollector interface {
	RunCallback
	LastRunID() (string, bool)
	Reset()
}

// TurnResult summarizes one executed turn.
type TurnResult struct {
	// Completed is true when a final response was observed and appended.
	Completed bool
	// Answer is the final response content when Completed.
	Answer string
	// RunID is the trace identifier captured for this turn, empty when the
	// turn produced no traced run.
	RunID string
	// Transcript lists the intermediate events rendered during the turn.
	Transcript []StreamEvent
	// Aborted is set when guided mode stopped the stream after a fault.
	Aborted bool
}

// Runner drives one turn end to end: append the query, stream the pipeline,
// sequence the events, then bind the final response and run identifier into
// the session. Exactly one turn is in flight per session at a time.
type Runner struct {
	executor  *TurnExecutor
	session   *Session
	collector RunCollector
	logger    *zap.Logger
}

func NewRunner(executor *TurnExecutor, session *Session, collector RunCollector, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{executor: executor, session: session, collector: collector, logger: logger}
}

// Session exposes the runner's session store.
func (r *Runner) Session() *Session {
	return r.session
}

// RunTurn executes one user query under the given mode, rendering through
// surface. route is the data route hint forwarded to the pipeline. The
// assistant message is appended only after the whole stream is drained, and
// never when the stream ends without a final response.
func (r *Runner) RunTurn(ctx context.Context, query, route string, mode Mode, surface Surface, tw *Typewriter) TurnResult {
	r.session.AppendUser(query)
	history := r.session.Messages()
	prior, _ := r.session.Generation()
	r.collector.Reset()

	cfg := RunConfig{
		ThreadID:  r.session.ThreadID(),
		DataRoute: route,
		Callbacks: []RunCallback{r.collector},
	}

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := r.executor.Execute(turnCtx, history, cfg, prior)
	seq := NewSequencer(mode, surface, tw, r.logger)
	outcome := seq.Consume(turnCtx, events)
	if outcome.Aborted {
		// Release the producer, then drain what it managed to emit. A final
		// held before the fault is discarded: an aborted turn never
		// completes.
		cancel()
		for range events {
		}
		outcome.Final = nil
	}

	result := TurnResult{Transcript: outcome.Transcript, Aborted: outcome.Aborted}
	if outcome.Final == nil {
		r.logger.Info("turn ended without final response",
			zap.String("thread_id", cfg.ThreadID),
			zap.Int("events", len(outcome.Transcript)),
			zap.Bool("aborted", outcome.Aborted))
		return result
	}

	if err := seq.RenderFinal(ctx, *outcome.Final); err != nil {
		return result
	}

	runID, _ := r.collector.LastRunID()
	r.session.CompleteTurn(outcome.Final.Content, runID)
	result.Completed = true
	result.Answer = outcome.Final.Content
	result.RunID = runID
	r.logger.Info("turn completed",
		zap.String("thread_id", cfg.ThreadID),
		zap.String("run_id", runID),
		zap.Int("events", len(outcome.Transcript)))
	return result
}
