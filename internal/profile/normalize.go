// Package profile turns raw interface definitions into canonical profiles
// and loads them from disk.
package profile

import (
	"maps"
	"os"
	"strings"
	"time"

	"modelproxy-http/internal/model"
)

// DefaultTimeout applies when a raw profile has no positive timeout.
const DefaultTimeout = 2000 * time.Millisecond

// Defaults supplies registry-level fallbacks for fields a raw profile omits.
type Defaults interface {
	Status() string
	Engine() string
}

var methods = map[string]string{
	model.MethodGet:  model.MethodGet,
	model.MethodPost: model.MethodPost,
}

var dataTypes = map[string]string{
	model.DataTypeJSON:  model.DataTypeJSON,
	model.DataTypeJSONP: model.DataTypeJSONP,
	model.DataTypeText:  model.DataTypeText,
}

// Normalize validates raw and returns its canonical form. raw is not modified.
//
// The only validation failure is a profile with no upstream URLs whose rule
// file does not exist. An unrecognized method or data type normalizes to the
// empty string; rejecting it is left to the caller.
func Normalize(raw model.RawProfile, defaults Defaults) (*model.Profile, error) {
	status := raw.Status
	if !model.IsMockStatus(status) {
		if _, ok := raw.URLs[status]; !ok {
			status = defaults.Status()
		}
	}

	if len(raw.URLs) == 0 && !fileExists(raw.RuleFile) {
		return nil, model.NewConfigError(raw.ID, "no urls configured and rule file %q is not available", raw.RuleFile)
	}

	engine := raw.Engine
	if engine == "" {
		engine = defaults.Engine()
	}

	method := raw.Method
	if method == "" {
		method = model.MethodGet
	}

	dataType := raw.DataType
	if dataType == "" {
		dataType = model.DataTypeJSON
	}

	encoding := strings.ToLower(strings.TrimSpace(raw.Encoding))
	if encoding == "" {
		encoding = model.DefaultEncoding
	}

	timeout := time.Duration(raw.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	p := &model.Profile{
		ID:           raw.ID,
		URLs:         maps.Clone(raw.URLs),
		Status:       status,
		Engine:       engine,
		Method:       methods[strings.ToUpper(method)],
		DataType:     dataTypes[strings.ToLower(dataType)],
		Encoding:     encoding,
		CookieNeeded: raw.IsCookieNeeded,
		Timeout:      timeout,
		Version:      raw.Version,
		RuleFile:     raw.RuleFile,
		RuleStatic:   raw.IsRuleStatic,
		Bypass:       raw.BypassProxyOnClient,
	}

	if p.IsMock() {
		p.Bypass = false
	} else {
		p.URL = raw.URLs[status]
	}

	return p, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
