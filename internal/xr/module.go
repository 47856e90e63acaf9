package xr

import (
	"context"
	"fmt"
	"io"

	"github.com/sony/gobreaker"

	"arc-framework/xrboot/internal/config"
)

// NewModule builds the Module selected by cfg.Driver. The breaker is used only
// by drivers that make network calls.
func NewModule(cfg config.RuntimeConfig, cb *gobreaker.CircuitBreaker) (Module, error) {
	switch cfg.Driver {
	case config.DriverSimulated:
		return &Simulated{
			Supported: cfg.Simulated.Supported,
			Delay:     cfg.Simulated.Delay,
			Hang:      cfg.Simulated.Hang,
		}, nil
	case config.DriverRemote:
		return NewRemote(cfg.Remote, cfg.Session, cb), nil
	default:
		return nil, fmt.Errorf("unknown runtime driver %q", cfg.Driver)
	}
}

// cancelOnClose releases a per-request context once the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
