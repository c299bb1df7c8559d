package shared

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	logger.Info("hello", "key", "value")

	out := buf.String()
	if !strings.Contains(out, "hello") || !strings.Contains(out, "key") {
		t.Errorf("unexpected log output %q", out)
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := WithLogger(NewLogger(&buf), "component", "test")

	logger.Info("hello")

	if !strings.Contains(buf.String(), "component") {
		t.Errorf("expected component field in %q", buf.String())
	}
}

func TestNewNonce(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		nonce := NewNonce()
		if nonce == "" {
			t.Fatal("expected a non-empty nonce")
		}
		if seen[nonce] {
			t.Fatalf("duplicate nonce %s", nonce)
		}
		seen[nonce] = true
	}
}
