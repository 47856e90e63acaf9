package xr

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Simulated is a scripted Module for local runs and tests. It answers the
// probe with a fixed outcome after Delay, or never answers when Hang is set.
type Simulated struct {
	Supported bool
	Delay     time.Duration
	Hang      bool
	// Err, when set, makes Initialize settle abnormally.
	Err error

	mu          sync.Mutex
	initCalls   int
	startCalls  int
	startedOnce chan struct{}
}

// NewSimulated returns a Simulated module that reports supported after delay.
func NewSimulated(supported bool, delay time.Duration) *Simulated {
	return &Simulated{Supported: supported, Delay: delay}
}

func (s *Simulated) Initialize(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	s.initCalls++
	s.mu.Unlock()

	if s.Hang {
		<-ctx.Done()
		return OutcomeUnsupported, ctx.Err()
	}

	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return OutcomeUnsupported, ctx.Err()
		}
	}

	if s.Err != nil {
		return OutcomeUnsupported, s.Err
	}
	if !s.Supported {
		slog.InfoContext(ctx, "xr session not supported", "driver", "simulated")
	}
	return OutcomeFromBool(s.Supported), nil
}

func (s *Simulated) Start(ctx context.Context) {
	s.mu.Lock()
	s.startCalls++
	ch := s.startedLocked()
	if s.startCalls == 1 {
		close(ch)
	}
	s.mu.Unlock()

	slog.InfoContext(ctx, "simulated xr session running")
}

// Started is closed on the first Start call.
func (s *Simulated) Started() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedLocked()
}

// Calls reports how many times Initialize and Start were invoked.
func (s *Simulated) Calls() (initCalls, startCalls int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initCalls, s.startCalls
}

func (s *Simulated) startedLocked() chan struct{} {
	if s.startedOnce == nil {
		s.startedOnce = make(chan struct{})
	}
	return s.startedOnce
}
