package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"modelproxy-http/internal/metrics"
	"modelproxy-http/internal/model"
)

// ForwardTimeout applies when a bound profile carries no timeout.
const ForwardTimeout = 5000 * time.Millisecond

// call delivers exactly one outcome. Whichever of the response path and the
// timeout completes first wins; the other becomes a no-op.
type call struct {
	done      chan model.Outcome
	completed atomic.Bool
}

func newCall() *call {
	return &call{done: make(chan model.Outcome, 1)}
}

// claim reports whether the caller is the first to finish the call.
func (c *call) claim() bool {
	return c.completed.CompareAndSwap(false, true)
}

// deliver sends the outcome and closes the channel. Only the claimant calls it.
func (c *call) deliver(o model.Outcome) {
	c.done <- o
	close(c.done)
}

// Forward implements Proxy.
func (hp *HTTPProxy) Forward(ctx context.Context, params any, cookie string) (*model.Result, error) {
	o := <-hp.ForwardAsync(ctx, params, cookie)
	return o.Result, o.Err
}

// ForwardAsync implements Proxy. Precondition failures are delivered before
// it returns and without touching the network. An empty cookie counts as absent.
func (hp *HTTPProxy) ForwardAsync(ctx context.Context, params any, cookie string) <-chan model.Outcome {
	c := newCall()
	p := hp.profile
	logger := hp.logger.With("call_id", uuid.NewString())

	if !hp.resolved() {
		hp.finish(c, logger, model.Outcome{
			Err: model.NewConfigError(p.ID, "status %q does not forward to an upstream", p.Status),
		})
		return c.done
	}
	if p.CookieNeeded && cookie == "" {
		hp.finish(c, logger, model.Outcome{Err: &model.ProxyError{
			Kind:        model.KindConfig,
			InterfaceID: p.ID,
			Err:         model.ErrCookieRequired,
		}})
		return c.done
	}

	query, err := EncodeParams(params)
	if err != nil {
		hp.finish(c, logger, model.Outcome{Err: model.NewConfigError(p.ID, "%v", err)})
		return c.done
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = ForwardTimeout
	}

	ctx, cancel := context.WithCancel(ctx)
	req, target, err := hp.newForwardRequest(ctx, query, cookie)
	if err != nil {
		cancel()
		hp.finish(c, logger, model.Outcome{Err: model.NewConfigError(p.ID, "build request: %v", err)})
		return c.done
	}

	logger.Debug("forwarding", "method", req.Method, "url", target)

	timer := time.AfterFunc(timeout, func() {
		hp.finish(c, logger, model.Outcome{Err: &model.ProxyError{
			Kind:        model.KindTimeout,
			InterfaceID: p.ID,
			URL:         target,
			Err:         fmt.Errorf("no response within %s", timeout),
		}})
		// The response is no longer wanted; abort the socket.
		cancel()
	})

	go func() {
		defer cancel()
		o := hp.roundTrip(req, target, logger)
		timer.Stop()
		hp.finish(c, logger, o)
	}()

	return c.done
}

// newForwardRequest builds the upstream request. The resolved path already
// ends in '&', so a GET appends the query directly.
func (hp *HTTPProxy) newForwardRequest(ctx context.Context, query, cookie string) (*http.Request, string, error) {
	escapedPath, rawQuery, _ := strings.Cut(hp.path, "?")
	path, err := url.PathUnescape(escapedPath)
	if err != nil {
		return nil, "", err
	}

	var body io.Reader
	if hp.profile.Method == model.MethodGet {
		rawQuery += query
	} else {
		body = strings.NewReader(query)
	}

	u := &url.URL{
		Scheme:   hp.scheme,
		Host:     hp.hostPort(),
		Path:     path,
		RawPath:  escapedPath,
		RawQuery: rawQuery,
	}

	req, err := http.NewRequestWithContext(ctx, hp.profile.Method, u.String(), body)
	if err != nil {
		return nil, "", err
	}
	// Keep the query exactly as serialized.
	req.URL.RawQuery = rawQuery

	if hp.profile.Method == model.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.ContentLength = int64(len(query))
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	return req, u.String(), nil
}

// roundTrip sends req and turns the response into an outcome. The whole body
// is read before any decoding.
func (hp *HTTPProxy) roundTrip(req *http.Request, target string, logger *slog.Logger) model.Outcome {
	p := hp.profile
	start := time.Now()

	resp, err := hp.engine.pool.Do(req)
	if err != nil {
		return model.Outcome{Err: transportError(p.ID, target, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Outcome{Err: transportError(p.ID, target, fmt.Errorf("read response: %w", err))}
	}

	logger.Debug("upstream response",
		"status", resp.StatusCode,
		"size", humanize.Bytes(uint64(len(body))),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		return model.Outcome{Err: &model.ProxyError{
			Kind:         model.KindUpstreamStatus,
			InterfaceID:  p.ID,
			URL:          target,
			StatusCode:   resp.StatusCode,
			ResponseText: string(body),
		}}
	}

	v, err := decodeResult(body, p)
	if err != nil {
		return model.Outcome{Err: &model.ProxyError{
			Kind:        model.KindDecode,
			InterfaceID: p.ID,
			URL:         target,
			Err:         err,
		}}
	}

	return model.Outcome{Result: &model.Result{
		Body:      v,
		SetCookie: resp.Header.Values("Set-Cookie"),
	}}
}

// finish completes c with o. Only the first finisher records and delivers.
func (hp *HTTPProxy) finish(c *call, logger *slog.Logger, o model.Outcome) {
	if !c.claim() {
		logger.Debug("discarding late outcome")
		return
	}
	if o.Err != nil {
		kind := model.KindOf(o.Err)
		hp.recordForward(kind.String())
		logger.Warn("forward failed", "kind", kind.String(), "err", o.Err)
	} else {
		hp.recordForward(metrics.OutcomeOK)
	}
	c.deliver(o)
}

// transportError classifies a failure to obtain or read a response. A caller
// deadline counts as a timeout; everything else is a network failure.
func transportError(id, target string, err error) *model.ProxyError {
	kind := model.KindNetwork
	if errors.Is(err, context.DeadlineExceeded) {
		kind = model.KindTimeout
	}
	return &model.ProxyError{
		Kind:        kind,
		InterfaceID: id,
		URL:         target,
		Err:         err,
	}
}
