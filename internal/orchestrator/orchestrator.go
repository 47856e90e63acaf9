// Package orchestrator runs the single bootstrap of a process and fans its
// result out to the configured reporters.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"arc-framework/xrboot/internal/sequencer"
	"arc-framework/xrboot/internal/telemetry"
)

// reportTimeout bounds result delivery independently of the bootstrap
// context, which may already be expired when a probe times out.
const reportTimeout = 10 * time.Second

// Bootstrapper is satisfied by *sequencer.Sequencer.
type Bootstrapper interface {
	Run(ctx context.Context) (*sequencer.Result, error)
	State() sequencer.State
	Snapshot() sequencer.Result
}

// Reporter delivers a bootstrap result to an external store. Implementations
// live in the clients package.
type Reporter interface {
	Name() string
	Report(ctx context.Context, res sequencer.Result) error
	Probe(ctx context.Context) ProbeResult
}

// Orchestrator owns the sequencer and the reporters.
type Orchestrator struct {
	seq       Bootstrapper
	reporters []Reporter

	deliveries map[string]DeliveryResult
	mu         sync.RWMutex
}

// New constructs an Orchestrator. reporters may be empty.
func New(seq Bootstrapper, reporters ...Reporter) *Orchestrator {
	return &Orchestrator{
		seq:       seq,
		reporters: reporters,
	}
}

// RunBootstrap runs the sequencer and publishes its result. The sequencer's
// error is returned unchanged; reporter failures are recorded in the report
// and never turn a settled bootstrap into an error. A second call returns
// sequencer.ErrAlreadyInitialized and a nil report.
func (o *Orchestrator) RunBootstrap(ctx context.Context) (*BootstrapReport, error) {
	res, err := o.seq.Run(ctx)
	if res == nil {
		return nil, err
	}

	deliveries := o.publish(ctx, *res)

	o.mu.Lock()
	o.deliveries = deliveries
	o.mu.Unlock()

	return &BootstrapReport{Result: *res, Deliveries: deliveries}, err
}

// publish sends res to every reporter concurrently. A failing reporter does
// not cancel its siblings.
func (o *Orchestrator) publish(ctx context.Context, res sequencer.Result) map[string]DeliveryResult {
	if len(o.reporters) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	deliveries := make(map[string]DeliveryResult, len(o.reporters))
	var mu sync.Mutex
	var g errgroup.Group

	for _, r := range o.reporters {
		g.Go(func() error {
			d := deliveryFor(r.Name(), r.Report(ctx, res))
			logDelivery(ctx, d)
			telemetry.RecordReport(d.Name, d.Status == StatusOK)
			mu.Lock()
			deliveries[d.Name] = d
			mu.Unlock()
			return nil
		})
	}

	// Every goroutine returns nil.
	_ = g.Wait()
	return deliveries
}

// RunDeepHealth probes every reporter backend concurrently.
func (o *Orchestrator) RunDeepHealth(ctx context.Context) map[string]ProbeResult {
	results := make(map[string]ProbeResult, len(o.reporters))
	var mu sync.Mutex
	var g errgroup.Group

	for _, r := range o.reporters {
		g.Go(func() error {
			probe := r.Probe(ctx)
			mu.Lock()
			results[r.Name()] = probe
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// Status returns the current sequencer snapshot with the last deliveries.
func (o *Orchestrator) Status() BootstrapReport {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var deliveries map[string]DeliveryResult
	if o.deliveries != nil {
		deliveries = make(map[string]DeliveryResult, len(o.deliveries))
		for k, v := range o.deliveries {
			deliveries[k] = v
		}
	}
	return BootstrapReport{Result: o.seq.Snapshot(), Deliveries: deliveries}
}

// State returns the sequencer state.
func (o *Orchestrator) State() sequencer.State {
	return o.seq.State()
}

// IsBootstrapInProgress returns true while the probe is outstanding.
func (o *Orchestrator) IsBootstrapInProgress() bool {
	return o.seq.State() == sequencer.StateProbing
}

// IsReady returns true once the runtime has been started.
func (o *Orchestrator) IsReady() bool {
	return o.seq.State() == sequencer.StateRunning
}

func logDelivery(ctx context.Context, d DeliveryResult) {
	if d.Status == StatusOK {
		slog.InfoContext(ctx, "bootstrap report delivered", "reporter", d.Name)
		return
	}
	slog.WarnContext(ctx, "bootstrap report failed", "reporter", d.Name, "error", d.Error)
}

func deliveryFor(name string, err error) DeliveryResult {
	if err == nil {
		return DeliveryResult{Name: name, Status: StatusOK}
	}
	return DeliveryResult{Name: name, Status: StatusError, Error: err.Error()}
}
