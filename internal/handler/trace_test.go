package handler

import (
	"testing"

	"github.com/google/uuid"
)

func TestParseOrGenerateTraceID(t *testing.T) {
	known := "018f6f2c-90c8-7cc9-bb52-1f11d90b7bc1"
	if got := ParseOrGenerateTraceID(known); got != known {
		t.Errorf("valid trace id rewritten: got %q, want %q", got, known)
	}

	for _, input := range []string{"", "not-a-uuid"} {
		got := ParseOrGenerateTraceID(input)
		if _, err := uuid.Parse(got); err != nil {
			t.Errorf("ParseOrGenerateTraceID(%q) = %q, not a UUID: %v", input, got, err)
		}
	}
}
