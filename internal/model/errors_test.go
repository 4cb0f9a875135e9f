package model

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestProxyError_Is(t *testing.T) {
	tests := []struct {
		kind Kind
		want error
	}{
		{KindConfig, ErrConfig},
		{KindNetwork, ErrNetwork},
		{KindTimeout, ErrTimeout},
		{KindUpstreamStatus, ErrUpstreamStatus},
		{KindDecode, ErrDecode},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &ProxyError{Kind: tt.kind, InterfaceID: "x"})
			if !errors.Is(err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false, want true", err, tt.want)
			}
			if errors.Is(err, ErrConfig) != (tt.kind == KindConfig) {
				t.Errorf("errors.Is(%v, ErrConfig) mismatched for kind %s", err, tt.kind)
			}
			if got := KindOf(err); got != tt.kind {
				t.Errorf("KindOf() = %v, want %v", got, tt.kind)
			}
		})
	}
}

func TestProxyError_Message(t *testing.T) {
	err := &ProxyError{
		Kind:         KindUpstreamStatus,
		InterfaceID:  "search",
		URL:          "http://mock/api",
		StatusCode:   404,
		ResponseText: "not found",
	}

	msg := err.Error()
	for _, want := range []string{"response error", "interface search", "url http://mock/api", "status code 404"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want it to contain %q", msg, want)
		}
	}
}

func TestProxyError_UnwrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := &ProxyError{Kind: KindNetwork, Err: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if !strings.HasSuffix(err.Error(), ": boom") {
		t.Errorf("Error() = %q, want cause suffix", err.Error())
	}
}

func TestKindOf_PlainError(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != 0 {
		t.Errorf("KindOf(plain) = %v, want 0", got)
	}
}

func TestIsMockStatus(t *testing.T) {
	for status, want := range map[string]bool{
		"mock":    true,
		"mockerr": true,
		"online":  false,
		"":        false,
		"MOCK":    false,
	} {
		if got := IsMockStatus(status); got != want {
			t.Errorf("IsMockStatus(%q) = %v, want %v", status, got, want)
		}
	}
}
