package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// EncodeParams serializes call parameters into a query string.
//
// nil and "" produce "". A string passes through unchanged. []string and
// []any are joined with "&" without re-encoding; list elements that are
// themselves lists or objects are written as JSON. A map produces key=value
// pairs in key order: keys are written verbatim, values are percent-encoded
// after nested values are JSON-encoded. Structs are encoded through their
// JSON object form. Top-level numbers and booleans produce "".
func EncodeParams(params any) (string, error) {
	switch v := params.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []string:
		return strings.Join(v, "&"), nil
	case []any:
		return joinList(v)
	case map[string]string:
		obj := make(map[string]any, len(v))
		for k, s := range v {
			obj[k] = s
		}
		return encodeObject(obj)
	case map[string]any:
		return encodeObject(v)
	}

	if _, ok := scalarString(params); ok {
		return "", nil
	}

	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	switch g := generic.(type) {
	case map[string]any:
		return encodeObject(g)
	case []any:
		return joinList(g)
	default:
		return "", nil
	}
}

func joinList(items []any) (string, error) {
	parts := make([]string, len(items))
	for i, item := range items {
		switch x := item.(type) {
		case nil:
		case string:
			parts[i] = x
		default:
			s, err := objectValue(x)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
	}
	return strings.Join(parts, "&"), nil
}

func encodeObject(obj map[string]any) (string, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		val, err := objectValue(obj[k])
		if err != nil {
			return "", fmt.Errorf("encode param %q: %w", k, err)
		}
		pairs = append(pairs, k+"="+EncodeURIComponent(val))
	}
	return strings.Join(pairs, "&"), nil
}

// objectValue renders one map value: strings and scalars as text, anything
// else (including nil) as JSON.
func objectValue(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	if s, ok := scalarString(v); ok {
		return s, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.FormatInt(int64(x), 10), true
	case int8:
		return strconv.FormatInt(int64(x), 10), true
	case int16:
		return strconv.FormatInt(int64(x), 10), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint:
		return strconv.FormatUint(uint64(x), 10), true
	case uint8:
		return strconv.FormatUint(uint64(x), 10), true
	case uint16:
		return strconv.FormatUint(uint64(x), 10), true
	case uint32:
		return strconv.FormatUint(uint64(x), 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float32:
		return formatNumber(float64(x)), true
	case float64:
		return formatNumber(x), true
	case json.Number:
		return x.String(), true
	default:
		return "", false
	}
}

// formatNumber prints f the way a JavaScript number converts to a string.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}

	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		mant, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
		return mant + "e" + exp[:1] + strings.TrimLeft(exp[1:], "0")
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

const upperhex = "0123456789ABCDEF"

// EncodeURIComponent percent-encodes every byte of s except ASCII letters,
// digits and - _ . ! ~ * ' ( ).
func EncodeURIComponent(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if shouldEscape(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldEscape(c) {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&15])
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func shouldEscape(c byte) bool {
	if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' {
		return false
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return false
	}
	return true
}
