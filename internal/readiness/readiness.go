// Package readiness blocks until renderer resources become reachable.
//
// Supported resources are http:// and https:// URLs, which are ready once a
// GET answers with a 2xx status, and file:// URLs, which are ready once the
// file exists. Every resource is awaited concurrently with its own timeout;
// the wait succeeds only when all of them are ready.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vk/omnibuild/internal/ctxlog"
	"golang.org/x/sync/errgroup"
)

// DefaultInterval is the delay between two probes of the same resource.
const DefaultInterval = 250 * time.Millisecond

// TimeoutError reports a resource that did not become ready in time.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
	// Last is the error of the final probe, if any.
	Last error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s", e.Timeout, e.URL)
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

// Unwrap provides compatibility for errors.Is and errors.As.
func (e *TimeoutError) Unwrap() error {
	return e.Last
}

// Waiter polls resources until they are ready.
type Waiter struct {
	Client   *http.Client
	Interval time.Duration
}

// New creates a Waiter with the default interval and HTTP client.
func New() *Waiter {
	return &Waiter{Client: http.DefaultClient, Interval: DefaultInterval}
}

// Wait blocks until every URL is ready. URLs with an unsupported scheme are
// logged and skipped. The first timeout cancels the remaining waits and is
// returned.
func (w *Waiter) Wait(ctx context.Context, urls []string, timeout time.Duration) error {
	logger := ctxlog.FromContext(ctx)

	g, gctx := errgroup.WithContext(ctx)
	for _, u := range urls {
		probe := w.probeFor(u)
		if probe == nil {
			logger.Warn("Invalid renderer url, ignored.", "url", u)
			continue
		}
		g.Go(func() error {
			logger.Info("Wait for renderer.", "url", u)
			return w.waitOne(gctx, u, timeout, probe)
		})
	}
	return g.Wait()
}

type probeFunc func(ctx context.Context) error

func (w *Waiter) probeFor(u string) probeFunc {
	switch {
	case strings.HasPrefix(u, "http://"), strings.HasPrefix(u, "https://"):
		return func(ctx context.Context) error { return w.probeHTTP(ctx, u) }
	case strings.HasPrefix(u, "file://"):
		path := filepath.FromSlash(strings.TrimPrefix(u, "file://"))
		return func(context.Context) error {
			_, err := os.Stat(path)
			return err
		}
	}
	return nil
}

func (w *Waiter) probeHTTP(ctx context.Context, u string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "*/*")

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}

func (w *Waiter) waitOne(ctx context.Context, u string, timeout time.Duration, probe probeFunc) error {
	logger := ctxlog.FromContext(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	interval := w.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	for {
		last := probe(waitCtx)
		if last == nil {
			logger.Debug("Resource ready.", "url", u, "duration", time.Since(start))
			return nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(last, context.DeadlineExceeded) {
				last = nil
			}
			return &TimeoutError{URL: u, Timeout: timeout, Last: last}
		case <-ticker.C:
		}
	}
}
