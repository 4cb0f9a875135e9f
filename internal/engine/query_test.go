package engine

import (
	"net/url"
	"testing"
)

func TestEncodeParams(t *testing.T) {
	type pageParams struct {
		Page int    `json:"page"`
		Sort string `json:"sort"`
	}

	tests := []struct {
		name   string
		params any
		want   string
	}{
		{"nil", nil, ""},
		{"empty string", "", ""},
		{"string passthrough", "a=1&b=x y", "a=1&b=x y"},
		{"string list", []string{"a=1", "b=x y"}, "a=1&b=x y"},
		{"any list", []any{"a=1", 2, nil}, "a=1&2&"},
		{"list of composites", []any{"a=1", []any{1, "b"}, map[string]any{"k": "v"}}, `a=1&[1,"b"]&{"k":"v"}`},
		{"object", map[string]any{"b": "x y", "a": 1}, "a=1&b=x%20y"},
		{"string map", map[string]string{"q": "a&b=c"}, "q=a%26b%3Dc"},
		{"nested object", map[string]any{"n": map[string]any{"k": "v"}}, "n=%7B%22k%22%3A%22v%22%7D"},
		{"nested list", map[string]any{"ids": []any{1, 2}}, "ids=%5B1%2C2%5D"},
		{"null value", map[string]any{"a": nil}, "a=null"},
		{"bool and float", map[string]any{"on": true, "r": 1.5}, "on=true&r=1.5"},
		{"html not escaped", map[string]any{"h": map[string]any{"t": "<b>"}}, "h=%7B%22t%22%3A%22%3Cb%3E%22%7D"},
		{"struct", pageParams{Page: 2, Sort: "desc"}, "page=2&sort=desc"},
		{"top-level number", 42, ""},
		{"top-level bool", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeParams(tt.params)
			if err != nil {
				t.Fatalf("EncodeParams() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("EncodeParams() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEncodeParams_Unsupported(t *testing.T) {
	_, err := EncodeParams(map[string]any{"f": func() {}})
	if err == nil {
		t.Fatal("EncodeParams() expected error for a function value")
	}
}

func TestEncodeParams_DecodesBack(t *testing.T) {
	params := map[string]any{
		"q":     "shoes & socks",
		"page":  3,
		"utf8":  "你好",
		"range": map[string]any{"min": 1, "max": 9},
	}

	encoded, err := EncodeParams(params)
	if err != nil {
		t.Fatalf("EncodeParams() error = %v", err)
	}
	values, err := url.ParseQuery(encoded)
	if err != nil {
		t.Fatalf("ParseQuery(%q) error = %v", encoded, err)
	}

	want := map[string]string{
		"q":     "shoes & socks",
		"page":  "3",
		"utf8":  "你好",
		"range": `{"max":9,"min":1}`,
	}
	if len(values) != len(want) {
		t.Fatalf("decoded %d keys, want %d: %v", len(values), len(want), values)
	}
	for k, v := range want {
		if got := values.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestEncodeURIComponent(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abcXYZ019", "abcXYZ019"},
		{"-_.!~*'()", "-_.!~*'()"},
		{"x y", "x%20y"},
		{"a+b/c?d#e", "a%2Bb%2Fc%3Fd%23e"},
		{"é", "%C3%A9"},
	}
	for _, tt := range tests {
		if got := EncodeURIComponent(tt.in); got != tt.want {
			t.Errorf("EncodeURIComponent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{100, "100"},
		{0.1, "0.1"},
		{-2.5, "-2.5"},
		{1e21, "1e+21"},
		{1e-7, "1e-7"},
		{123456789012, "123456789012"},
	}
	for _, tt := range tests {
		if got := formatNumber(tt.in); got != tt.want {
			t.Errorf("formatNumber(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
