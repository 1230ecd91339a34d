package logger

import "testing"

func TestRedactMasksSecretValues(t *testing.T) {
	out := redact([]interface{}{"user_id", "child_001", "api_key", "sk-123", "Password", "hunter2"})
	if out[1] != "child_001" {
		t.Fatalf("expected user_id untouched, got %v", out[1])
	}
	if out[3] != "[REDACTED]" || out[5] != "[REDACTED]" {
		t.Fatalf("expected secrets redacted, got %v", out)
	}
}

func TestRedactKeepsDanglingKey(t *testing.T) {
	out := redact([]interface{}{"a", 1, "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected output %v", out)
	}
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"production", "development", "test"} {
		l, err := New(mode)
		if err != nil {
			t.Fatalf("new %s: %v", mode, err)
		}
		l.With("component", "test").Debug("ok")
	}
}
