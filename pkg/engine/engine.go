// Package engine runs Lisp scene scripts against an obstacle registry.
// It wraps zygomys in a sandboxed environment and forwards each builtin
// call to a Target, recording a transcript of what was executed.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error, a runtime error in user code or a rejected
// registry call.
type EvalError struct {
	Line    int    `json:"line,omitempty" yaml:"line,omitempty"`
	Col     int    `json:"col,omitempty" yaml:"col,omitempty"`
	Message string `json:"message" yaml:"message"`

	// Err is the registry error that stopped the script, if any.
	Err error `json:"-" yaml:"-"`
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

func (e EvalError) Unwrap() error {
	return e.Err
}

// Call is one registry call made by a script.
type Call struct {
	Op   string   `json:"op" yaml:"op"`
	Args []string `json:"args" yaml:"args"`
	Rank *int     `json:"rank,omitempty" yaml:"rank,omitempty"`
}

func (c Call) String() string {
	s := fmt.Sprintf("(%s %s)", c.Op, strings.Join(c.Args, " "))
	if c.Rank != nil {
		s += fmt.Sprintf(" => %d", *c.Rank)
	}
	return s
}

// Result is the transcript of one evaluation. Calls lists every registry
// call that succeeded, in order.
type Result struct {
	Generation uint64 `json:"generation" yaml:"generation"`
	Calls      []Call `json:"calls" yaml:"calls"`
}

// Engine evaluates scene scripts. It is safe for concurrent use; each call
// to Evaluate creates a fresh sandboxed environment, and registry calls are
// serialized by the Target.
type Engine struct {
	target  Target
	timeout time.Duration
	logger  *slog.Logger

	// slots holds one token per running evaluation goroutine; nil means
	// unlimited.
	slots chan struct{}

	mu         sync.Mutex
	generation uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout overrides EvalTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMaxConcurrent caps the number of evaluations running at once. A
// script abandoned on timeout keeps its slot until its goroutine returns.
func WithMaxConcurrent(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.slots = make(chan struct{}, n)
		}
	}
}

// WithLogger sets the logger used for evaluation diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an Engine whose builtins call target.
func NewEngine(target Target, opts ...Option) *Engine {
	e := &Engine{
		target:  target,
		timeout: EvalTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generation returns the number of evaluations started so far.
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// Evaluate runs a scene script.
//
// Return semantics:
//   - On success: returns result + nil errors + nil error
//   - On parse/eval failure: returns the partial result + eval errors + nil
//     error. Calls made before the failure are not rolled back.
//   - On fatal failure (timeout, cancellation, panic): returns nil + nil + error
//   - When every slot is taken: returns nil + nil + ErrBusy
//
// zygomys has no way to interrupt a running program, so a script that loops
// without calling a builtin keeps running after a timeout. It holds its slot
// until it returns, which bounds how many such goroutines can exist.
func (e *Engine) Evaluate(ctx context.Context, source string) (*Result, []EvalError, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("evaluation cancelled: %w", err)
	}

	if !e.acquire() {
		e.logger.Warn("evaluation rejected", "running", e.Running())
		return nil, nil, ErrBusy
	}

	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st := &evalState{ctx: ctx, target: e.target}
	ch := make(chan evalResult, 1)

	go func() {
		var out evalResult
		// The slot is freed before the result is delivered, so a caller that
		// evaluates again right away finds it available.
		defer func() {
			if r := recover(); r != nil {
				out = evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
			e.release()
			ch <- out
		}()

		evalErrs, err := e.evaluate(source, st)
		out = evalResult{errors: evalErrs, err: err}
	}()

	res, err := waitWithTimeout(ctx, ch, e.timeout)
	if err != nil {
		// Stop a runaway script from issuing further registry calls.
		st.stopped.Store(true)
		e.logger.Warn("evaluation aborted", "generation", gen, "error", err)
		return nil, nil, err
	}
	if res.err != nil {
		return nil, nil, res.err
	}

	out := &Result{Generation: gen, Calls: st.transcript()}
	e.logger.Debug("evaluation finished", "generation", gen, "calls", len(out.Calls), "errors", len(res.errors))
	return out, res.errors, nil
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string, st *evalState) ([]EvalError, error) {
	// Empty source is a valid script that makes no calls.
	if strings.TrimSpace(source) == "" {
		return nil, nil
	}

	// Sandbox mode prevents scripts from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	registerBuiltins(env, st)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return parseZygomysError(err), nil
	}

	if _, err := env.Run(); err != nil {
		evalErrs := parseZygomysError(err)
		if failure := st.failure(); failure != nil {
			evalErrs[0].Message = failure.Error()
			evalErrs[0].Err = failure
		}
		return evalErrs, nil
	}
	return nil, nil
}

// evalState is shared by the builtins of one evaluation.
type evalState struct {
	ctx     context.Context
	target  Target
	stopped atomic.Bool

	mu    sync.Mutex
	calls []Call
	err   error
}

var errStopped = errors.New("evaluation stopped")

// ErrBusy is returned by Evaluate when every evaluation slot is taken.
var ErrBusy = errors.New("too many evaluations in progress")

// acquire takes an evaluation slot without blocking.
func (e *Engine) acquire() bool {
	if e.slots == nil {
		return true
	}
	select {
	case e.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (e *Engine) release() {
	if e.slots != nil {
		<-e.slots
	}
}

// Running returns the number of evaluation goroutines still alive,
// including ones abandoned after a timeout. It is zero when no cap is set.
func (e *Engine) Running() int {
	return len(e.slots)
}

// begin reports whether the script may make another registry call.
func (s *evalState) begin() error {
	if s.stopped.Load() {
		return errStopped
	}
	return s.ctx.Err()
}

func (s *evalState) record(c Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

// fail remembers the registry error that aborted the script and returns
// it for the builtin to raise.
func (s *evalState) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
	return err
}

func (s *evalState) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *evalState) transcript() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	// zygomys formats parse errors as "Error on line N: <details>\n"
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{
				Line:    line,
				Message: strings.TrimSpace(m[2]),
			}}
		}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
