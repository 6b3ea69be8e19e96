package middleware_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/arareko/pysoa/job"
	"github.com/arareko/pysoa/middleware"
	"github.com/arareko/pysoa/scope"
)

func newTestCall() *middleware.Call {
	return &middleware.Call{
		Index: 1,
		Action: job.ActionRequest{
			Action: "send_email",
			Body:   map[string]any{"to": "someone@example.com"},
		},
		Control: job.ControlHeader{
			Switches:      []string{"7", "12"},
			CorrelationID: "corr_abc123",
		},
	}
}

func okHandler(_ context.Context) (map[string]any, error) {
	return map[string]any{"sent": true}, nil
}

func TestChain_ExecutionOrder(t *testing.T) {
	var order []string

	mw1 := func(ctx context.Context, _ *middleware.Call, next middleware.Handler) (map[string]any, error) {
		order = append(order, "mw1-before")
		body, err := next(ctx)
		order = append(order, "mw1-after")
		return body, err
	}

	mw2 := func(ctx context.Context, _ *middleware.Call, next middleware.Handler) (map[string]any, error) {
		order = append(order, "mw2-before")
		body, err := next(ctx)
		order = append(order, "mw2-after")
		return body, err
	}

	chain := middleware.Chain(mw1, mw2)
	handler := func(_ context.Context) (map[string]any, error) {
		order = append(order, "handler")
		return nil, nil
	}

	if _, err := chain(context.Background(), newTestCall(), handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(order), order)
	}
	for i, want := range expected {
		if order[i] != want {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want)
		}
	}
}

func TestChain_Empty(t *testing.T) {
	chain := middleware.Chain()
	body, err := chain(context.Background(), newTestCall(), okHandler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body["sent"] != true {
		t.Fatalf("body = %v, want sent=true", body)
	}
}

func TestChain_PropagatesError(t *testing.T) {
	mw := func(ctx context.Context, _ *middleware.Call, next middleware.Handler) (map[string]any, error) {
		return next(ctx)
	}
	chain := middleware.Chain(mw)
	want := errors.New("handler error")

	_, err := chain(context.Background(), newTestCall(), func(_ context.Context) (map[string]any, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "ok"},
		{"action error", job.NewActionError(job.NewError(job.CodeInvalid, "bad", "body")), "action_error"},
		{"plain error", errors.New("boom"), "fault"},
		{"fault", job.NewHandlerFault("x", errors.New("boom")), "fault"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := middleware.Outcome(tt.err); got != tt.want {
				t.Errorf("Outcome() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	mw := middleware.Recover(slog.Default())

	_, err := mw(context.Background(), newTestCall(), func(_ context.Context) (map[string]any, error) {
		panic("test panic")
	})
	if err == nil {
		t.Fatal("expected error from panic recovery")
	}

	var fault *job.HandlerFault
	if !errors.As(err, &fault) {
		t.Fatalf("expected *job.HandlerFault, got %T", err)
	}
	if fault.Action != "send_email" {
		t.Errorf("fault.Action = %q, want %q", fault.Action, "send_email")
	}
	if fault.Panic != "test panic" {
		t.Errorf("fault.Panic = %v, want %q", fault.Panic, "test panic")
	}
	if fault.Stack == "" {
		t.Error("expected a captured stack")
	}
}

func TestRecover_PassesThrough(t *testing.T) {
	mw := middleware.Recover(slog.Default())

	body, err := mw(context.Background(), newTestCall(), okHandler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body["sent"] != true {
		t.Fatalf("body = %v, want sent=true", body)
	}
}

func TestRecover_KeepsActionError(t *testing.T) {
	mw := middleware.Recover(slog.Default())
	want := job.NewActionError(job.NewError(job.CodeInvalid, "bad", "body.to"))

	_, err := mw(context.Background(), newTestCall(), func(_ context.Context) (map[string]any, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected action error to pass through, got %v", err)
	}
}

func TestLogging_LevelsByOutcome(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		level   string
		message string
	}{
		{"ok", nil, "level=INFO", "action completed"},
		{"action error", job.NewActionError(job.NewError(job.CodeInvalid, "bad", "body")), "level=WARN", "action returned errors"},
		{"fault", errors.New("boom"), "level=ERROR", "action failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			mw := middleware.Logging(logger)

			_, _ = mw(context.Background(), newTestCall(), func(_ context.Context) (map[string]any, error) {
				return nil, tt.err
			})

			out := buf.String()
			if !strings.Contains(out, "action started") {
				t.Errorf("missing start line in %q", out)
			}
			if !strings.Contains(out, tt.level) || !strings.Contains(out, tt.message) {
				t.Errorf("log output %q missing %s %q", out, tt.level, tt.message)
			}
			if !strings.Contains(out, "correlation_id=corr_abc123") {
				t.Errorf("log output %q missing correlation id", out)
			}
		})
	}
}

func TestScope_RestoresControl(t *testing.T) {
	mw := middleware.Scope()

	var gotID string
	var has7 bool
	_, err := mw(context.Background(), newTestCall(), func(ctx context.Context) (map[string]any, error) {
		gotID = scope.CorrelationID(ctx)
		has7 = scope.HasSwitch(ctx, "7")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotID != "corr_abc123" {
		t.Errorf("CorrelationID = %q, want %q", gotID, "corr_abc123")
	}
	if !has7 {
		t.Error("expected switch 7 to be active")
	}
}
