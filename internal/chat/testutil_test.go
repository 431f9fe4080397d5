package chat

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errRefused = errors.New("region write refused")

// scriptedPipeline emits a fixed event sequence, optionally failing or
// panicking after a prefix of it.
type scriptedPipeline struct {
	events    []StreamEvent
	failAfter int // emit this many events then return failErr; -1 disables
	failErr   error
	panicMsg  string

	gotInput StreamInput
	gotCfg   RunConfig
}

func (p *scriptedPipeline) Stream(ctx context.Context, in StreamInput, cfg RunConfig, emit func(StreamEvent) error) error {
	p.gotInput = in
	p.gotCfg = cfg
	for i, ev := range p.events {
		if p.failAfter >= 0 && i == p.failAfter {
			if p.panicMsg != "" {
				panic(p.panicMsg)
			}
			if p.failErr == nil {
				p.failErr = errors.New("pipeline fault")
			}
			return p.failErr
		}
		if err := emit(ev); err != nil {
			return err
		}
	}
	if p.failAfter >= len(p.events) {
		if p.panicMsg != "" {
			panic(p.panicMsg)
		}
		return p.failErr
	}
	return nil
}

func newScriptedPipeline(events ...StreamEvent) *scriptedPipeline {
	return &scriptedPipeline{events: events, failAfter: -1}
}

// recordingRegion captures every write in order.
type recordingRegion struct {
	mu     sync.Mutex
	writes []string
	err    error // returned on every Write when set
}

func (r *recordingRegion) Write(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.writes = append(r.writes, text)
	return nil
}

func (r *recordingRegion) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.writes))
	copy(out, r.writes)
	return out
}

func (r *recordingRegion) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.writes) == 0 {
		return ""
	}
	return r.writes[len(r.writes)-1]
}

type recordedStatus struct {
	label string
	state string // "open", "done", "failed"
}

func (s *recordedStatus) Done(label string) { s.state = "done"; s.label = label }
func (s *recordedStatus) Fail(label string) { s.state = "failed"; s.label = label }

// fakeSurface hands out recording regions and records status scopes and
// surfaced errors. failRegion makes the Nth region (zero-based) fail all
// writes.
type fakeSurface struct {
	mu         sync.Mutex
	regions    []*recordingRegion
	statuses   []*recordedStatus
	errors     []string
	failRegion int
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{failRegion: -1}
}

func (s *fakeSurface) NewRegion() Region {
	s.mu.Lock()
	defer s.mu.Unlock()
	region := &recordingRegion{}
	if len(s.regions) == s.failRegion {
		region.err = errRefused
	}
	s.regions = append(s.regions, region)
	return region
}

func (s *fakeSurface) BeginStatus(label string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := &recordedStatus{label: label, state: "open"}
	s.statuses = append(s.statuses, status)
	return status
}

func (s *fakeSurface) ShowError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, message)
}

// memoryCollector is the runner-facing run collector used in tests.
type memoryCollector struct {
	mu  sync.Mutex
	ids []string
}

func (c *memoryCollector) RunStarted(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, id)
}

func (c *memoryCollector) LastRunID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ids) == 0 {
		return "", false
	}
	return c.ids[len(c.ids)-1], true
}

func (c *memoryCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = nil
}

// instantTypewriter removes pacing so tests run fast.
func instantTypewriter() *Typewriter {
	return &Typewriter{Interval: time.Nanosecond}
}
