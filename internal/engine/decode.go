package engine

import (
	"encoding/json"
	"fmt"
	"regexp"

	"golang.org/x/text/encoding/htmlindex"

	"modelproxy-http/internal/model"
)

// jsonpPattern captures the payload of a callback(...) wrapper.
var jsonpPattern = regexp.MustCompile(`^\s*[A-Za-z_$][\w$.]*\s*\(([\s\S]*)\)\s*;?\s*$`)

// decodeText converts body from the named character encoding to a UTF-8 string.
func decodeText(body []byte, label string) (string, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return "", fmt.Errorf("unsupported encoding %q: %w", label, err)
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", label, err)
	}
	return string(out), nil
}

// decodeResult turns a successful upstream body into the value handed to the
// caller: the bytes themselves for raw encoding, text for text profiles, and
// the parsed value for json and jsonp profiles.
func decodeResult(body []byte, p *model.Profile) (any, error) {
	if p.Encoding == model.EncodingRaw {
		return body, nil
	}

	text, err := decodeText(body, p.Encoding)
	if err != nil {
		return nil, err
	}

	switch p.DataType {
	case model.DataTypeJSON:
		return parseJSON(text)
	case model.DataTypeJSONP:
		if m := jsonpPattern.FindStringSubmatch(text); m != nil {
			text = m[1]
		}
		return parseJSON(text)
	default:
		return text, nil
	}
}

// decodeRelayBody applies the profile's encoding to a relayed body.
func decodeRelayBody(body []byte, p *model.Profile) ([]byte, error) {
	if p.Encoding == model.EncodingRaw {
		return body, nil
	}
	text, err := decodeText(body, p.Encoding)
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

func parseJSON(text string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	return v, nil
}
