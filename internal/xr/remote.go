package xr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"arc-framework/xrboot/internal/config"
)

// ErrNoSession is returned when the device agent answers a session request
// without an identifier.
var ErrNoSession = errors.New("device agent returned no session id")

type sessionRequest struct {
	Mode             string   `json:"mode"`
	OptionalFeatures []string `json:"optionalFeatures,omitempty"`
	ReferenceSpace   string   `json:"referenceSpace"`
}

type supportResponse struct {
	Supported bool `json:"supported"`
}

type sessionResponse struct {
	ID string `json:"id"`
}

// Remote drives an XR device agent over HTTP. Initialize asks whether the
// configured session mode is supported and, if so, acquires the session and
// its reference space. Start asks the agent to begin the session's frame loop.
type Remote struct {
	baseURL        string
	session        config.SessionConfig
	requestTimeout time.Duration
	cb             *gobreaker.CircuitBreaker
	httpDo         func(req *http.Request) (*http.Response, error)

	mu        sync.Mutex
	sessionID string
	inflight  sync.WaitGroup
}

// NewRemote constructs a Remote. No request is made at construction time.
func NewRemote(cfg config.RemoteConfig, session config.SessionConfig, cb *gobreaker.CircuitBreaker) *Remote {
	return &Remote{
		baseURL:        cfg.URL,
		session:        session,
		requestTimeout: cfg.RequestTimeout,
		cb:             cb,
		httpDo:         http.DefaultClient.Do,
	}
}

// Initialize probes support and acquires a session. An agent that reports
// support but then refuses the session settles abnormally.
func (r *Remote) Initialize(ctx context.Context) (Outcome, error) {
	res, err := r.cb.Execute(func() (any, error) {
		supported, err := r.querySupport(ctx)
		if err != nil {
			return OutcomeUnsupported, err
		}
		if !supported {
			return OutcomeUnsupported, nil
		}

		id, err := r.requestSession(ctx)
		if err != nil {
			return OutcomeUnsupported, err
		}

		r.mu.Lock()
		r.sessionID = id
		r.mu.Unlock()
		return OutcomeSupported, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return OutcomeUnsupported, fmt.Errorf("circuit open: %w", err)
		}
		return OutcomeUnsupported, err
	}

	outcome := res.(Outcome)
	if !outcome.Supported() {
		slog.InfoContext(ctx, "xr session not supported", "driver", "remote", "mode", r.session.Mode)
	}
	return outcome, nil
}

// Start fires the start request in the background. Failures are logged only.
func (r *Remote) Start(ctx context.Context) {
	r.mu.Lock()
	id := r.sessionID
	r.mu.Unlock()
	if id == "" {
		return
	}

	// Detach from the caller's deadline; the session outlives the bootstrap.
	ctx = context.WithoutCancel(ctx)

	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()

		_, err := r.cb.Execute(func() (any, error) {
			endpoint := fmt.Sprintf("%s/xr/v1/sessions/%s/start", r.baseURL, url.PathEscape(id))
			resp, err := r.do(ctx, http.MethodPost, endpoint, nil)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusAccepted, http.StatusNoContent, http.StatusOK:
				return nil, nil
			default:
				return nil, fmt.Errorf("start session %s returned HTTP %d", id, resp.StatusCode)
			}
		})
		if err != nil {
			slog.WarnContext(ctx, "xr session start failed", "session", id, "err", err)
			return
		}
		slog.InfoContext(ctx, "xr session started", "session", id)
	}()
}

// Close waits for in-flight start requests.
func (r *Remote) Close() error {
	r.inflight.Wait()
	return nil
}

func (r *Remote) querySupport(ctx context.Context) (bool, error) {
	endpoint := fmt.Sprintf("%s/xr/v1/support?mode=%s", r.baseURL, url.QueryEscape(r.session.Mode))
	resp, err := r.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("support query returned HTTP %d", resp.StatusCode)
	}

	var body supportResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decoding support response: %w", err)
	}
	return body.Supported, nil
}

func (r *Remote) requestSession(ctx context.Context) (string, error) {
	payload, err := json.Marshal(sessionRequest{
		Mode:             r.session.Mode,
		OptionalFeatures: r.session.OptionalFeatures,
		ReferenceSpace:   r.session.ReferenceSpace,
	})
	if err != nil {
		return "", fmt.Errorf("encoding session request: %w", err)
	}

	resp, err := r.do(ctx, http.MethodPost, r.baseURL+"/xr/v1/sessions", payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("session request returned HTTP %d", resp.StatusCode)
	}

	var body sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding session response: %w", err)
	}
	if body.ID == "" {
		return "", ErrNoSession
	}
	return body.ID, nil
}

// do issues one request bounded by requestTimeout. The returned response body
// remains readable until the caller closes it.
func (r *Remote) do(ctx context.Context, method, endpoint string, body []byte) (*http.Response, error) {
	var cancel context.CancelFunc = func() {}
	if r.requestTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.requestTimeout)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("building request %s %s: %w", method, endpoint, err)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.httpDo(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}
