package utils

import (
	"net/http"
	"testing"
)

func TestExtractOrigin(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "full url", in: "https://app.example.com/chat?x=1", want: "https://app.example.com"},
		{name: "origin only", in: "https://app.example.com", want: "https://app.example.com"},
		{name: "no scheme passes through", in: "app.example.com", want: "app.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractOrigin(tt.in); got != tt.want {
				t.Errorf("ExtractOrigin(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRealIPExtractor(t *testing.T) {
	extractor, err := NewRealIPExtractor([]string{"10.0.0.0/8"})
	if err != nil {
		t.Fatal(err)
	}

	req, err := http.NewRequest(http.MethodGet, "/", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.RemoteAddr = "10.1.2.3:5000"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.9.9.9")

	if got := extractor.Extract(req); got != "203.0.113.7" {
		t.Errorf("Extract() = %q, want rightmost untrusted hop 203.0.113.7", got)
	}

	req.Header.Del("X-Forwarded-For")
	if got := extractor.Extract(req); got != "10.1.2.3" {
		t.Errorf("Extract() = %q, want remote address fallback 10.1.2.3", got)
	}
}
