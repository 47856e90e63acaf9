// Package sequencer drives one XR runtime handle from capability probing to a
// running session. Each Sequencer performs a single, non-retried bootstrap.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"arc-framework/xrboot/internal/telemetry"
	"arc-framework/xrboot/internal/xr"
)

var (
	// ErrAlreadyInitialized is returned by Run after the first call.
	ErrAlreadyInitialized = errors.New("bootstrap already initialized")
	// ErrAlreadySettled is returned when an outcome arrives outside Probing.
	ErrAlreadySettled = errors.New("bootstrap outcome already settled")
	// ErrInitTimeout marks a probe that did not settle within the init timeout.
	ErrInitTimeout = errors.New("runtime initialization timed out")
	// ErrInitRejected marks a probe that settled abnormally.
	ErrInitRejected = errors.New("runtime initialization rejected")
)

// Runtime is the subset of *xr.Handle the sequencer drives.
type Runtime interface {
	ID() string
	Initialize(ctx context.Context) (xr.Outcome, error)
	Start(ctx context.Context)
}

// Result is a snapshot of one bootstrap run.
type Result struct {
	HandleID  string     `json:"handleId"`
	State     State      `json:"state"`
	Outcome   string     `json:"outcome,omitempty"`
	Error     string     `json:"error,omitempty"`
	ProbeMs   int64      `json:"probeMs"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	SettledAt *time.Time `json:"settledAt,omitempty"`
}

// settlement carries the single answer of a probe back to Run.
type settlement struct {
	outcome xr.Outcome
	err     error
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithDiagnostics sets the sink for "init ok" / "init failed".
func WithDiagnostics(d Diagnostics) Option {
	return func(s *Sequencer) { s.diag = d }
}

// WithInitTimeout bounds how long Run waits for the probe. Zero waits until
// the context passed to Run is done.
func WithInitTimeout(d time.Duration) Option {
	return func(s *Sequencer) { s.initTimeout = d }
}

// WithClock overrides time.Now for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Sequencer) { s.now = now }
}

// Sequencer owns one runtime handle and moves it through
// idle → probing → (ready → running | failed | faulted).
type Sequencer struct {
	rt          Runtime
	diag        Diagnostics
	initTimeout time.Duration
	now         func() time.Time

	mu     sync.RWMutex
	state  State
	result Result

	done     chan struct{}
	doneOnce sync.Once
}

// New returns an idle Sequencer for rt.
func New(rt Runtime, opts ...Option) *Sequencer {
	s := &Sequencer{
		rt:   rt,
		diag: LogDiagnostics{},
		now:  time.Now,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.result = Result{HandleID: rt.ID(), State: StateIdle}
	telemetry.RecordState(StateIdle.String())
	return s
}

// State returns the current lifecycle state.
func (s *Sequencer) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns a copy of the current result.
func (s *Sequencer) Snapshot() Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Done is closed once the sequencer reaches a terminal state.
func (s *Sequencer) Done() <-chan struct{} {
	return s.done
}

// Run issues the single probe and waits for it to settle. A supported outcome
// emits MsgInitOK and starts the runtime; an unsupported one emits
// MsgInitFailed and returns a nil error. A probe that errors, panics, times
// out or outlives ctx leaves the sequencer faulted and returns the cause.
func (s *Sequencer) Run(ctx context.Context) (*Result, error) {
	if err := s.fire(ctx, EventInitialize); err != nil {
		return nil, ErrAlreadyInitialized
	}

	ctx, span := otel.Tracer("xrboot").Start(ctx, "xrboot.bootstrap")
	defer span.End()
	span.SetAttributes(attribute.String("xr.handle", s.rt.ID()))

	started := s.now()
	s.mu.Lock()
	s.result.StartedAt = &started
	s.mu.Unlock()

	var timeout <-chan time.Time
	if s.initTimeout > 0 {
		t := time.NewTimer(s.initTimeout)
		defer t.Stop()
		timeout = t.C
	}

	// An abandoned probe is cancelled once Run returns.
	probeCtx, cancelProbe := context.WithCancel(ctx)
	defer cancelProbe()
	settled := s.probe(probeCtx)

	var err error
	select {
	case st := <-settled:
		s.recordProbe(started)
		if st.err != nil {
			err = s.fault(ctx, fmt.Errorf("%w: %w", ErrInitRejected, st.err))
			break
		}
		err = s.settle(ctx, st.outcome)
	case <-timeout:
		s.recordProbe(started)
		err = s.fault(ctx, fmt.Errorf("%w after %s", ErrInitTimeout, s.initTimeout))
	case <-ctx.Done():
		s.recordProbe(started)
		err = s.fault(ctx, ctx.Err())
	}

	res := s.Snapshot()
	span.SetAttributes(attribute.String("bootstrap.state", res.State.String()))
	if res.State == StateFaulted {
		span.SetStatus(codes.Error, res.Error)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return &res, err
}

// probe calls Initialize on its own goroutine and delivers exactly one
// settlement. The channel is buffered so an abandoned probe does not block.
func (s *Sequencer) probe(ctx context.Context) <-chan settlement {
	out := make(chan settlement, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				out <- settlement{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		outcome, err := s.rt.Initialize(ctx)
		out <- settlement{outcome: outcome, err: err}
	}()
	return out
}

// settle applies a probe outcome. It is one-shot: any call after the first
// returns ErrAlreadySettled without side effects.
func (s *Sequencer) settle(ctx context.Context, outcome xr.Outcome) error {
	ev := EventUnsupported
	if outcome.Supported() {
		ev = EventSupported
	}
	if err := s.fire(ctx, ev); err != nil {
		return ErrAlreadySettled
	}

	settledAt := s.now()
	s.mu.Lock()
	s.result.Outcome = outcome.String()
	s.result.SettledAt = &settledAt
	s.mu.Unlock()
	telemetry.RecordOutcome(outcome.String())

	if !outcome.Supported() {
		s.diag.Emit(ctx, MsgInitFailed)
		s.finish()
		return nil
	}

	s.diag.Emit(ctx, MsgInitOK)
	if err := s.fire(ctx, EventStart); err != nil {
		return err
	}
	// Fire-and-forget: the runtime's own success after start is not observed.
	s.rt.Start(ctx)
	s.finish()
	return nil
}

// fault moves a probing sequencer to Faulted and returns cause. No diagnostic
// is emitted and the runtime is never started.
func (s *Sequencer) fault(ctx context.Context, cause error) error {
	if err := s.fire(ctx, EventFault); err != nil {
		return ErrAlreadySettled
	}

	settledAt := s.now()
	s.mu.Lock()
	s.result.Error = cause.Error()
	s.result.SettledAt = &settledAt
	s.mu.Unlock()
	telemetry.RecordOutcome("fault")

	slog.ErrorContext(ctx, "xr runtime initialization fault", "handle", s.rt.ID(), "err", cause)
	s.finish()
	return cause
}

// fire applies one Transition under the lock.
func (s *Sequencer) fire(ctx context.Context, ev Event) error {
	s.mu.Lock()
	prev := s.state
	next, err := Transition(prev, ev)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next
	s.result.State = next
	s.mu.Unlock()

	telemetry.RecordState(next.String())
	slog.DebugContext(ctx, "bootstrap transition", "from", prev.String(), "to", next.String(), "event", ev.String())
	return nil
}

func (s *Sequencer) recordProbe(started time.Time) {
	elapsed := s.now().Sub(started)
	s.mu.Lock()
	s.result.ProbeMs = elapsed.Milliseconds()
	s.mu.Unlock()
	telemetry.RecordProbeDuration(elapsed)
}

func (s *Sequencer) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}
