// Package model defines shared types for the forwarding engine.
package model

import "time"

// Reserved status labels. A profile in one of these statuses never contacts
// a real upstream.
const (
	StatusMock    = "mock"
	StatusMockErr = "mockerr"
)

// EncodingRaw disables character decoding; the body is passed through as bytes.
const EncodingRaw = "raw"

// DefaultEncoding is used when a profile does not name one.
const DefaultEncoding = "utf-8"

// Supported request methods.
const (
	MethodGet  = "GET"
	MethodPost = "POST"
)

// Supported response data types.
const (
	DataTypeJSON  = "json"
	DataTypeJSONP = "jsonp"
	DataTypeText  = "text"
)

// IsMockStatus reports whether status is one of the mock sentinels.
func IsMockStatus(status string) bool {
	return status == StatusMock || status == StatusMockErr
}

// RawProfile is an interface definition as it appears in a profile file.
type RawProfile struct {
	ID                  string            `yaml:"id"`
	URLs                map[string]string `yaml:"urls"`
	Status              string            `yaml:"status"`
	Engine              string            `yaml:"engine"`
	Method              string            `yaml:"method"`
	DataType            string            `yaml:"dataType"`
	Encoding            string            `yaml:"encoding"`
	IsCookieNeeded      bool              `yaml:"isCookieNeeded"`
	Timeout             int               `yaml:"timeout"` // milliseconds
	Version             string            `yaml:"version"`
	RuleFile            string            `yaml:"ruleFile"`
	IsRuleStatic        bool              `yaml:"isRuleStatic"`
	BypassProxyOnClient bool              `yaml:"bypassProxyOnClient"`
}

// Profile is the canonical form of a RawProfile. It is read-only once built
// and may be shared by concurrent calls.
type Profile struct {
	ID     string
	URLs   map[string]string
	Status string
	Engine string

	// Method is MethodGet, MethodPost, or empty when the raw value was not recognized.
	Method string
	// DataType is one of the DataType constants, or empty when not recognized.
	DataType string
	Encoding string

	CookieNeeded bool
	Timeout      time.Duration
	Version      string
	RuleFile     string
	RuleStatic   bool
	Bypass       bool

	// URL is the upstream selected by Status. Empty for mock statuses.
	URL string
}

// IsMock reports whether the profile is in a mock status.
func (p *Profile) IsMock() bool {
	return IsMockStatus(p.Status)
}

// Result is the decoded outcome of a successful forward.
type Result struct {
	// Body is []byte for raw encoding, string for text, or the parsed JSON value.
	Body any
	// SetCookie holds the upstream Set-Cookie header values, nil when absent.
	SetCookie []string
}

// Outcome carries either a Result or an error. Exactly one is set.
type Outcome struct {
	Result *Result
	Err    error
}
