package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker"

	"arc-framework/xrboot/internal/config"
	"arc-framework/xrboot/internal/orchestrator"
	"arc-framework/xrboot/internal/sequencer"
)

const (
	natsReporterName = "nats"
	natsStreamMaxAge = 7 * 24 * time.Hour
)

// jsContext is the subset of nats.JetStreamContext used for stream management
// and publishing, so tests can run without a NATS server.
type jsContext interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	UpdateStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSReporter publishes each bootstrap result to JetStream on
// "<subject_prefix>.<state>", provisioning the stream on first use.
type NATSReporter struct {
	url           string
	stream        string
	subjectPrefix string
	cb            *gobreaker.CircuitBreaker
	newJS         func(url string) (jsContext, func(), error)
}

// NewNATSReporter constructs a NATSReporter. Connections are opened lazily
// inside Report and Probe.
func NewNATSReporter(cfg config.NATSConfig, cb *gobreaker.CircuitBreaker) *NATSReporter {
	return &NATSReporter{
		url:           cfg.URL,
		stream:        cfg.Stream,
		subjectPrefix: cfg.SubjectPrefix,
		cb:            cb,
		newJS:         realNewJS,
	}
}

func (c *NATSReporter) Name() string { return natsReporterName }

// Report ensures the stream exists and publishes res with the handle id as
// the JetStream message id, so a redelivered report is deduplicated.
func (c *NATSReporter) Report(ctx context.Context, res sequencer.Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding bootstrap result: %w", err)
	}

	_, err = c.cb.Execute(func() (any, error) {
		js, cleanup, err := c.newJS(c.url)
		if err != nil {
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}
		defer cleanup()

		if err := c.provisionStream(js); err != nil {
			return nil, err
		}

		subject := c.subject(res.State)
		if _, err := js.Publish(subject, payload, nats.MsgId(res.HandleID), nats.Context(ctx)); err != nil {
			return nil, fmt.Errorf("publishing %s: %w", subject, err)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("nats report: %w", err)
	}
	return nil
}

// Probe verifies NATS connectivity. A missing stream is healthy: it is
// created on the first Report.
func (c *NATSReporter) Probe(ctx context.Context) orchestrator.ProbeResult {
	start := time.Now()

	_, err := c.cb.Execute(func() (any, error) {
		js, cleanup, err := c.newJS(c.url)
		if err != nil {
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}
		defer cleanup()

		_, infoErr := js.StreamInfo(c.stream, nats.Context(ctx))
		if infoErr != nil && !errors.Is(infoErr, nats.ErrStreamNotFound) {
			return nil, fmt.Errorf("stream info: %w", infoErr)
		}
		return nil, nil
	})

	result := orchestrator.ProbeResult{
		Name:      natsReporterName,
		OK:        err == nil,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		result.Error = breakerError(err)
	}
	return result
}

func (c *NATSReporter) subject(state sequencer.State) string {
	return c.subjectPrefix + "." + state.String()
}

// provisionStream creates the stream if it does not exist, or updates it if
// it does.
func (c *NATSReporter) provisionStream(js jsContext) error {
	cfg := &nats.StreamConfig{
		Name:      c.stream,
		Subjects:  []string{c.subjectPrefix + ".>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    natsStreamMaxAge,
	}

	_, err := js.StreamInfo(c.stream)
	switch {
	case errors.Is(err, nats.ErrStreamNotFound):
		if _, addErr := js.AddStream(cfg); addErr != nil {
			return fmt.Errorf("creating stream %s: %w", c.stream, addErr)
		}
	case err != nil:
		return fmt.Errorf("querying stream %s: %w", c.stream, err)
	default:
		if _, updErr := js.UpdateStream(cfg); updErr != nil {
			return fmt.Errorf("updating stream %s: %w", c.stream, updErr)
		}
	}
	return nil
}

// realNewJS opens a NATS connection and returns its JetStream context plus a
// cleanup that closes the connection.
func realNewJS(url string) (jsContext, func(), error) {
	nc, err := nats.Connect(url, nats.Name("xrboot"))
	if err != nil {
		return nil, func() {}, fmt.Errorf("nats connect %s: %w", url, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, func() {}, fmt.Errorf("nats jetstream context: %w", err)
	}

	return js, func() { nc.Close() }, nil
}
