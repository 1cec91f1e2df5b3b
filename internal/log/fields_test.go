package log

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLogFieldsBuilder(t *testing.T) {
	fields := NewFields().
		WithComponent(ComponentLedger).
		WithOperation(OpCreate).
		WithRequestID("req_123").
		WithClientIP("10.0.0.1").
		WithTransaction(7, "2024-03-05", "deposit", 42.5).
		WithError(errors.New("boom"))

	want := map[string]any{
		FieldComponent:   ComponentLedger,
		FieldOperation:   OpCreate,
		FieldRequestID:   "req_123",
		FieldClientIP:    "10.0.0.1",
		FieldTransaction: int64(7),
		FieldDate:        "2024-03-05",
		FieldType:        "deposit",
		FieldAmount:      42.5,
		FieldError:       "boom",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("fields[%q] = %v, want %v", k, fields[k], v)
		}
	}

	slice := fields.ToSlice()
	if len(slice) != len(fields)*2 {
		t.Errorf("ToSlice length = %d, want %d", len(slice), len(fields)*2)
	}
}

func TestLogFieldsWithNilError(t *testing.T) {
	fields := NewFields().WithError(nil)
	if _, ok := fields[FieldError]; ok {
		t.Error("nil error should not add a field")
	}
}

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Component: ComponentWorker,
		Handler:   slog.NewTextHandler(&buf, nil),
	})

	logger.Info("sweep complete", FieldCount, 3)

	out := buf.String()
	if !strings.Contains(out, "component=worker") {
		t.Errorf("output missing component: %q", out)
	}
	if !strings.Contains(out, "count=3") {
		t.Errorf("output missing count: %q", out)
	}
}

func TestWithComponentOverrides(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Component: ComponentApp,
		Handler:   slog.NewTextHandler(&buf, nil),
	})

	if got := logger.WithComponent(ComponentCache).Component(); got != ComponentCache {
		t.Errorf("Component() = %q, want %q", got, ComponentCache)
	}
}
