package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chazu/obstacled/pkg/kernel/sdfx"
	"github.com/chazu/obstacled/pkg/logging"
	"github.com/chazu/obstacled/pkg/obstacle"
	"github.com/chazu/obstacled/pkg/planner"
)

// newLocalEngine returns an engine bound to a fresh in-process registry.
func newLocalEngine(opts ...Option) (*Engine, *obstacle.Registry, *planner.Planner) {
	p := planner.New()
	r := obstacle.New(sdfx.New(), p, obstacle.WithLogger(logging.Discard()))
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	return NewEngine(Local{Registry: r}, opts...), r, p
}

func TestEvaluateEmptyString(t *testing.T) {
	eng, _, _ := newLocalEngine()

	res, evalErrs, err := eng.Evaluate(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if res == nil {
		t.Fatal("expected non-nil result")
	}
	if len(res.Calls) != 0 {
		t.Errorf("expected no calls, got %d", len(res.Calls))
	}
}

func TestEvaluateWhitespaceOnly(t *testing.T) {
	eng, _, _ := newLocalEngine()

	res, evalErrs, err := eng.Evaluate(context.Background(), "   \n\t  \n  ")
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if res == nil || len(res.Calls) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestEvaluateValidExpression(t *testing.T) {
	eng, _, _ := newLocalEngine()

	// Plain arithmetic makes no registry calls.
	res, evalErrs, err := eng.Evaluate(context.Background(), "(+ 1 2)")
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if len(res.Calls) != 0 {
		t.Errorf("expected no calls, got %d", len(res.Calls))
	}
}

func TestEvaluateSyntaxError(t *testing.T) {
	eng, _, _ := newLocalEngine()

	res, evalErrs, err := eng.Evaluate(context.Background(), "(+ 1 2")
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error for syntax error")
	}
	if evalErrs[0].Message == "" {
		t.Error("eval error message should not be empty")
	}
	if res == nil || len(res.Calls) != 0 {
		t.Errorf("syntax error must not make calls, got %+v", res)
	}
}

func TestEvaluateUndefinedSymbol(t *testing.T) {
	eng, _, _ := newLocalEngine()

	_, evalErrs, err := eng.Evaluate(context.Background(), "(+ 1 undefined-symbol)")
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error for undefined symbol")
	}
}

func TestEvalErrorImplementsError(t *testing.T) {
	e := EvalError{Line: 5, Message: "something went wrong"}
	s := e.Error()
	if !strings.Contains(s, "line 5") {
		t.Errorf("Error() should contain line info, got: %s", s)
	}
	if !strings.Contains(s, "something went wrong") {
		t.Errorf("Error() should contain message, got: %s", s)
	}

	e2 := EvalError{Message: "no location"}
	if strings.Contains(e2.Error(), "line") {
		t.Errorf("Error() with no line should not contain 'line', got: %s", e2.Error())
	}
}

func TestEvalErrorUnwrap(t *testing.T) {
	e := EvalError{Message: "boom", Err: obstacle.ErrNotFound}
	if !errors.Is(e, obstacle.ErrNotFound) {
		t.Error("EvalError should unwrap to its registry error")
	}
}

func TestEvaluateGenerationIncrements(t *testing.T) {
	eng, _, _ := newLocalEngine()
	for i := 1; i <= 3; i++ {
		res, _, err := eng.Evaluate(context.Background(), "(+ 1 2)")
		if err != nil {
			t.Fatalf("iteration %d: unexpected fatal error: %v", i, err)
		}
		if res.Generation != uint64(i) {
			t.Errorf("iteration %d: generation = %d", i, res.Generation)
		}
	}
	if eng.Generation() != 3 {
		t.Errorf("Generation() = %d, want 3", eng.Generation())
	}
}

func TestWaitWithTimeoutExpires(t *testing.T) {
	ch := make(chan evalResult) // Never sends
	start := time.Now()
	_, err := waitWithTimeout(context.Background(), ch, 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout error message, got: %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout took far too long")
	}
}

func TestWaitWithTimeoutCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := waitWithTimeout(ctx, make(chan evalResult), time.Minute)
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
}

func TestWaitWithTimeoutDelivers(t *testing.T) {
	ch := make(chan evalResult, 1)
	ch <- evalResult{errors: []EvalError{{Message: "x"}}}
	res, err := waitWithTimeout(context.Background(), ch, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.errors) != 1 {
		t.Errorf("expected the delivered result, got %+v", res)
	}
}

func TestEvaluateCancelledContext(t *testing.T) {
	eng, r, _ := newLocalEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := eng.Evaluate(ctx, `(create-polyhedron "p")`)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if len(r.Polyhedra()) != 0 {
		t.Error("cancelled evaluation must not reach the registry")
	}
}

func TestStoppedStateRefusesCalls(t *testing.T) {
	st := &evalState{ctx: context.Background()}
	if err := st.begin(); err != nil {
		t.Fatalf("fresh state should accept calls: %v", err)
	}
	st.stopped.Store(true)
	if err := st.begin(); !errors.Is(err, errStopped) {
		t.Fatalf("stopped state should refuse calls, got %v", err)
	}
}

func TestParseZygomysError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantLine int
		wantMsg  string
	}{
		{
			name:     "error on line format",
			msg:      "Error on line 5: unexpected token\n",
			wantLine: 5,
			wantMsg:  "unexpected token",
		},
		{
			name:     "no line info",
			msg:      "some generic error",
			wantLine: 0,
			wantMsg:  "some generic error",
		},
		{
			name:     "line format lowercase",
			msg:      "error on line 12: missing paren",
			wantLine: 12,
			wantMsg:  "missing paren",
		},
		{
			name:     "short line format",
			msg:      "line 3: bad thing",
			wantLine: 3,
			wantMsg:  "bad thing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := parseZygomysError(errString(tt.msg))
			if len(errs) == 0 {
				t.Fatal("expected at least one error")
			}
			e := errs[0]
			if e.Line != tt.wantLine {
				t.Errorf("line = %d, want %d", e.Line, tt.wantLine)
			}
			if !strings.Contains(e.Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", e.Message, tt.wantMsg)
			}
		})
	}
}

// errString is a simple error type for testing.
type errString string

func (e errString) Error() string { return string(e) }

// gateTarget blocks CreatePolyhedron until open is closed, ignoring the
// context, like a script stuck in a loop that never yields.
type gateTarget struct {
	*recorder
	open chan struct{}
}

func (g gateTarget) CreatePolyhedron(ctx context.Context, name string) error {
	<-g.open
	return g.recorder.CreatePolyhedron(ctx, name)
}

func TestMaxConcurrentHoldsSlotPastTimeout(t *testing.T) {
	gate := gateTarget{recorder: &recorder{}, open: make(chan struct{})}
	eng := NewEngine(gate,
		WithLogger(logging.Discard()),
		WithTimeout(50*time.Millisecond),
		WithMaxConcurrent(1),
	)

	_, _, err := eng.Evaluate(context.Background(), `(create-polyhedron "stuck")`)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if got := eng.Running(); got != 1 {
		t.Fatalf("Running() = %d after timeout, want 1", got)
	}

	_, _, err = eng.Evaluate(context.Background(), `(create-box "b" 1 1 1)`)
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy while the abandoned script runs, got %v", err)
	}

	close(gate.open)
	deadline := time.Now().Add(2 * time.Second)
	for eng.Running() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("abandoned evaluation never released its slot")
		}
		time.Sleep(5 * time.Millisecond)
	}

	res, evalErrs, err := eng.Evaluate(context.Background(), `(create-box "b" 1 1 1)`)
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("evaluation after release failed: %v %v", err, evalErrs)
	}
	if len(res.Calls) != 1 {
		t.Errorf("expected 1 call, got %d", len(res.Calls))
	}
}

func TestMaxConcurrentSequentialCalls(t *testing.T) {
	eng, _, _ := newLocalEngine(WithMaxConcurrent(1))
	for i := 0; i < 5; i++ {
		if _, _, err := eng.Evaluate(context.Background(), `(+ 1 2)`); err != nil {
			t.Fatalf("evaluation %d: %v", i, err)
		}
	}
	if got := eng.Running(); got != 0 {
		t.Errorf("Running() = %d, want 0", got)
	}
}
