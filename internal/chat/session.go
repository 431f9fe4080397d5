package chat

import (
	"sync"

	"github.com/google/uuid"
)

// Session holds the per-session conversation state: thread identity, the
// append-only message history, the last completed generation and the run
// identifier of the most recent completed turn. All mutation goes through
// the active turn's own path; the mutex only guards against the TUI reading
// while a turn goroutine writes.
type Session struct {
	mu sync.Mutex

	threadID   string
	messages   []Message
	generation string
	hasGen     bool

	runID         string
	scoredRunID   string
	feedbackID    string
	feedbackScore float64
}

// NewSession mints a fresh thread identity. The identity is immutable for
// the session's lifetime.
func NewSession() *Session {
	return &Session{threadID: uuid.NewString()}
}

// ThreadID returns the session's opaque thread identity.
func (s *Session) ThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threadID
}

// AppendUser appends a user message to the history.
func (s *Session) AppendUser(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, Message{Role: RoleUser, Content: content})
}

// Messages returns a copy of the history in conversation order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Generation returns the most recently completed final response, if any.
func (s *Session) Generation() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation, s.hasGen
}

// CompleteTurn records a successful turn: the assistant message is appended,
// the generation is overwritten and the run identifier replaces the previous
// one. Called at most once per turn, after the stream is fully drained.
func (s *Session) CompleteTurn(content, runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, Message{Role: RoleAssistant, Content: content})
	s.generation = content
	s.hasGen = true
	s.runID = runID
}

// RunID returns the run identifier of the most recent completed turn, or
// empty when no turn has completed with a traced run.
func (s *Session) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// MarkScored records an accepted feedback submission for runID. A run id may
// be scored once; Scored reports whether it already was, which is how stale
// identifiers are kept from being resubmitted.
func (s *Session) MarkScored(runID, feedbackID string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scoredRunID = runID
	s.feedbackID = feedbackID
	s.feedbackScore = score
}

// Scored reports whether feedback was already accepted for runID.
func (s *Session) Scored(runID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return runID != "" && s.scoredRunID == runID
}

// Feedback returns the identifier and score of the last accepted feedback.
func (s *Session) Feedback() (id string, score float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feedbackID, s.feedbackScore, s.feedbackID != ""
}
