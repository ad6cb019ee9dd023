package logger

import "testing"

func TestInitAcceptsKnownLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		if err := Init(level); err != nil {
			t.Fatalf("Init(%q) returned error: %v", level, err)
		}
		if Logger() == nil {
			t.Fatalf("Logger() returned nil after Init(%q)", level)
		}
	}
}

func TestInitFallsBackOnUnknownLevel(t *testing.T) {
	if err := Init("nonsense"); err != nil {
		t.Fatalf("expected graceful fallback, got %v", err)
	}
}

func TestWithModuleReturnsChild(t *testing.T) {
	if WithModule("newsletter") == nil {
		t.Fatal("expected child logger")
	}
}
