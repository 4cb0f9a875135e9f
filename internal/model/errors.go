package model

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a forwarding failure.
type Kind int

// Failure kinds.
const (
	KindConfig Kind = iota + 1
	KindNetwork
	KindTimeout
	KindUpstreamStatus
	KindDecode
)

// Sentinels matched by errors.Is against a *ProxyError of the same kind.
var (
	ErrConfig         = errors.New("config error")
	ErrNetwork        = errors.New("request failed")
	ErrTimeout        = errors.New("request timed out")
	ErrUpstreamStatus = errors.New("response error")
	ErrDecode         = errors.New("result has syntax error")
)

// ErrCookieRequired is the cause of a KindConfig error for a call that
// omitted the cookie its profile requires.
var ErrCookieRequired = errors.New("cookie is required")

// String returns a short label suitable for metrics and logs.
func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindUpstreamStatus:
		return "upstream_status"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindConfig:
		return ErrConfig
	case KindNetwork:
		return ErrNetwork
	case KindTimeout:
		return ErrTimeout
	case KindUpstreamStatus:
		return ErrUpstreamStatus
	case KindDecode:
		return ErrDecode
	default:
		return nil
	}
}

// ProxyError is a classified failure of one call or profile.
type ProxyError struct {
	Kind        Kind
	InterfaceID string
	URL         string

	// StatusCode and ResponseText are set for KindUpstreamStatus.
	StatusCode   int
	ResponseText string

	Err error
}

func (e *ProxyError) Error() string {
	var b strings.Builder
	if s := e.Kind.sentinel(); s != nil {
		b.WriteString(s.Error())
	} else {
		b.WriteString("proxy error")
	}
	if e.InterfaceID != "" {
		fmt.Fprintf(&b, ": interface %s", e.InterfaceID)
	}
	if e.URL != "" {
		fmt.Fprintf(&b, ", url %s", e.URL)
	}
	if e.Kind == KindUpstreamStatus {
		fmt.Fprintf(&b, ", status code %d", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ProxyError) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *ProxyError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// KindOf returns the kind of the first *ProxyError in err's chain, or 0.
func KindOf(err error) Kind {
	var pe *ProxyError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}

// NewConfigError builds a KindConfig error for an interface.
func NewConfigError(interfaceID, format string, args ...any) *ProxyError {
	return &ProxyError{
		Kind:        KindConfig,
		InterfaceID: interfaceID,
		Err:         fmt.Errorf(format, args...),
	}
}
