package trace

import (
	"context"
	"fmt"

	"gamer/internal/chat"
)

// faceScores maps each face symbol to its fixed score.
var faceScores = map[string]float64{
	"😀": 1.0,
	"🙂": 0.75,
	"😐": 0.5,
	"🙁": 0.25,
	"😞": 0.0,
}

// FaceSymbols lists the accepted face symbols from best to worst.
func FaceSymbols() []string {
	return []string{"😀", "🙂", "😐", "🙁", "😞"}
}

// FaceScore returns the score for a face symbol.
func FaceScore(symbol string) (float64, bool) {
	score, ok := faceScores[symbol]
	return score, ok
}

// ErrUnknownFace is wrapped into the error returned for symbols outside the
// accepted scale.
var ErrUnknownFace = fmt.Errorf("unknown face symbol")

// ErrNoRun is returned when no completed turn has a run identifier to score.
var ErrNoRun = fmt.Errorf("no traced run to score")

// ErrAlreadyScored is returned when the run was already scored this session.
var ErrAlreadyScored = fmt.Errorf("run already scored")

// FeedbackCreator is the slice of the tracing client the binder needs.
type FeedbackCreator interface {
	CreateFeedback(ctx context.Context, runID, key string, score float64, comment string) (Feedback, error)
}

// Binder translates a face selection into a feedback submission against the
// session's current run identifier, and records the acceptance so a stale
// identifier is never scored twice.
type Binder struct {
	client  FeedbackCreator
	session *chat.Session
}

// NewBinder wires a binder to a tracing client and a session.
func NewBinder(client FeedbackCreator, session *chat.Session) *Binder {
	return &Binder{client: client, session: session}
}

// Submit validates the face symbol, resolves the run identifier from the
// session and submits the score. The symbol is checked before any network
// call; an unknown symbol never reaches the service.
func (b *Binder) Submit(ctx context.Context, symbol, comment string) (Feedback, error) {
	score, ok := faceScores[symbol]
	if !ok {
		return Feedback{}, fmt.Errorf("%w: %q", ErrUnknownFace, symbol)
	}

	runID := b.session.RunID()
	if runID == "" {
		return Feedback{}, ErrNoRun
	}
	if b.session.Scored(runID) {
		return Feedback{}, fmt.Errorf("%w: %s", ErrAlreadyScored, runID)
	}

	fb, err := b.client.CreateFeedback(ctx, runID, "FACES: "+symbol, score, comment)
	if err != nil {
		return Feedback{}, err
	}
	b.session.MarkScored(runID, fb.ID, score)
	return fb, nil
}
