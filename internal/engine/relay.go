package engine

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"modelproxy-http/internal/metrics"
	"modelproxy-http/internal/model"
)

// isHopByHopHeader reports whether a canonical header name belongs to a single
// connection and must not be relayed.
func isHopByHopHeader(name string) bool {
	switch name {
	case "Connection",
		"Proxy-Connection",
		"Keep-Alive",
		"Proxy-Authenticate",
		"Proxy-Authorization",
		"Te",
		"Trailer",
		"Transfer-Encoding",
		"Upgrade":
		return true
	default:
		return false
	}
}

// relayHeaders copies the inbound headers for the upstream request. Bodies
// are not decompressed on the way back, so Accept-Encoding is dropped.
func relayHeaders(in http.Header) http.Header {
	out := make(http.Header, len(in))
	for name, values := range in {
		if isHopByHopHeader(name) || name == "Accept-Encoding" {
			continue
		}
		out[name] = append([]string(nil), values...)
	}
	return out
}

// Relay implements Proxy. The inbound query is appended to the resolved
// upstream path and the inbound body is streamed through unbuffered. The
// upstream reply is read in full, decoded per the profile encoding, and
// written back with its status, Content-Type, and Set-Cookie headers. Any
// failure is answered with 500 and the error text.
func (hp *HTTPProxy) Relay(w http.ResponseWriter, r *http.Request) {
	p := hp.profile
	logger := hp.logger.With("call_id", uuid.NewString())

	if !hp.resolved() {
		hp.relayFailed(w, logger, model.NewConfigError(p.ID, "status %q does not relay to an upstream", p.Status))
		return
	}

	req, target, err := hp.newRelayRequest(r)
	if err != nil {
		hp.relayFailed(w, logger, model.NewConfigError(p.ID, "build request: %v", err))
		return
	}

	logger.Debug("relaying", "method", req.Method, "url", target)
	start := time.Now()

	resp, err := hp.engine.pool.Do(req)
	if err != nil {
		hp.relayFailed(w, logger, transportError(p.ID, target, err))
		return
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		hp.relayFailed(w, logger, transportError(p.ID, target, err))
		return
	}

	out, err := decodeRelayBody(body, p)
	if err != nil {
		hp.relayFailed(w, logger, &model.ProxyError{
			Kind:        model.KindDecode,
			InterfaceID: p.ID,
			URL:         target,
			Err:         err,
		})
		return
	}

	h := w.Header()
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		h.Set("Content-Type", ct)
	}
	for _, c := range resp.Header.Values("Set-Cookie") {
		h.Add("Set-Cookie", c)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(out); err != nil {
		logger.Debug("write relay response", "err", err)
	}

	logger.Debug("relayed",
		"status", resp.StatusCode,
		"size", humanize.Bytes(uint64(len(out))),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	hp.recordRelay(metrics.OutcomeOK)
}

func (hp *HTTPProxy) newRelayRequest(r *http.Request) (*http.Request, string, error) {
	escapedPath, rawQuery, _ := strings.Cut(hp.path, "?")
	path, err := url.PathUnescape(escapedPath)
	if err != nil {
		return nil, "", err
	}
	rawQuery += r.URL.RawQuery

	u := &url.URL{
		Scheme:   hp.scheme,
		Host:     hp.hostPort(),
		Path:     path,
		RawPath:  escapedPath,
		RawQuery: rawQuery,
	}

	var body io.Reader
	if r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0 {
		body = r.Body
	}

	req, err := http.NewRequestWithContext(r.Context(), hp.profile.Method, u.String(), body)
	if err != nil {
		return nil, "", err
	}
	req.URL.RawQuery = rawQuery
	req.Header = relayHeaders(r.Header)
	req.Host = hp.hostname
	if body != nil {
		req.ContentLength = r.ContentLength
	}
	return req, u.String(), nil
}

func (hp *HTTPProxy) relayFailed(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := model.KindOf(err)
	hp.recordRelay(kind.String())
	logger.Warn("relay failed", "kind", kind.String(), "err", err)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = io.WriteString(w, err.Error())
}
