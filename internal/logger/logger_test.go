package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New("local", "loud"); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestNewUnknownEnvFallsBackToConsole(t *testing.T) {
	l, err := New("staging", "debug")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !l.Core().Enabled(zap.DebugLevel) {
		t.Error("level override not applied")
	}
}

func TestContextRoundTrip(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected a fallback logger")
	}

	l := zap.NewNop()
	ctx := ContextWithLogger(context.Background(), l)
	if FromContext(ctx) != l {
		t.Error("context logger not returned")
	}
}
