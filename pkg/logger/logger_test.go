package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	ctx := context.Background()

	Get().Info(ctx, "pipeline started", String("day", "2024-03-15"), Int("users", 3))
	out := buf.String()
	if !strings.Contains(out, "pipeline started") {
		t.Errorf("missing message in output: %s", out)
	}
	if !strings.Contains(out, "day=2024-03-15") {
		t.Errorf("missing field in output: %s", out)
	}
	if !strings.Contains(out, "source=") {
		t.Errorf("missing caller in output: %s", out)
	}
}

func TestLoggerNamed(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	Named("collect").Warn(context.Background(), "discarded records", Error(errors.New("bad timestamp")))
	out := buf.String()
	if !strings.Contains(out, "collect.") {
		t.Errorf("missing group prefix in output: %s", out)
	}
}

func TestSetLevelString(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	if err := SetLevelString("error"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Get().Info(context.Background(), "suppressed")
	if buf.Len() != 0 {
		t.Errorf("info output not suppressed at error level: %s", buf.String())
	}

	Get().Error(context.Background(), "surfaced")
	if !strings.Contains(buf.String(), "surfaced") {
		t.Error("error output missing at error level")
	}

	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
	if err := SetLevelString("info"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
