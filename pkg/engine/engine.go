// Package engine evaluates construction scripts. A script is zygomys Lisp
// run in a sandbox with builtins that create and edit objects on a fresh
// sketch:
//
//	(def a (point 0 0 :name "A"))
//	(def b (point 30 40))
//	(def l (line a b))
//	(on-line l 5)
//
// After the script finishes the sketch runs one frame, so every object has
// resolved geometry (or is absent) when Evaluate returns.
package engine

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/compass/pkg/logging"
	"github.com/chazu/compass/pkg/metrics"
	"github.com/chazu/compass/pkg/sketch"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError is a non-fatal error in user code: a parse error, a runtime
// error, or an edit the sketch rejected.
type EvalError struct {
	Line    int    `json:"line,omitempty"`
	Col     int    `json:"col,omitempty"`
	Message string `json:"message"`
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Engine runs construction scripts. It is safe for concurrent use; every
// call gets a fresh sandbox and a fresh sketch. Evaluations only supersede
// each other when they share a key (see EvaluateKeyed).
type Engine struct {
	opts    sketch.Options
	timeout time.Duration

	mu          sync.Mutex
	generations map[string]uint64 // latest generation per key
}

// NewEngine returns an engine building sketches with the default options.
func NewEngine() *Engine {
	return NewEngineWith(sketch.DefaultOptions(), EvalTimeout)
}

// NewEngineWith returns an engine building sketches with opts. A
// non-positive timeout means EvalTimeout.
func NewEngineWith(opts sketch.Options, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = EvalTimeout
	}
	return &Engine{opts: opts, timeout: timeout, generations: make(map[string]uint64)}
}

// Timeout returns the per-evaluation limit.
func (e *Engine) Timeout() time.Duration { return e.timeout }

// Evaluate runs source against a new sketch. Concurrent calls are
// independent of each other.
//
// Return semantics:
//   - On success: returns sketch + nil errors + nil error
//   - On parse/eval failure: returns nil sketch + eval errors + nil error
//   - On fatal failure (timeout, panic, solver invariant): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*sketch.Sketch, []EvalError, error) {
	return e.EvaluateKeyed("", source)
}

// EvaluateKeyed is Evaluate for a caller that re-evaluates as its source
// changes, such as an editor sending every keystroke. When a newer
// evaluation with the same key starts before this one finishes, this one
// returns ErrSuperseded. An empty key never supersedes.
func (e *Engine) EvaluateKeyed(key, source string) (*sketch.Sketch, []EvalError, error) {
	var stale func() bool
	var gen uint64
	if key != "" {
		e.mu.Lock()
		e.generations[key]++
		gen = e.generations[key]
		e.mu.Unlock()

		stale = func() bool {
			e.mu.Lock()
			defer e.mu.Unlock()
			return e.generations[key] != gen
		}
		defer e.release(key, gen)
	}

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		sk, evalErrs, err := e.evaluate(source)
		ch <- evalResult{sketch: sk, errors: evalErrs, err: err}
	}()

	start := time.Now()
	sk, evalErrs, err := waitWithTimeout(ch, e.timeout, stale)
	outcome := "ok"
	switch {
	case errors.Is(err, ErrTimeout):
		outcome = "timeout"
	case errors.Is(err, ErrSuperseded):
		outcome = "superseded"
	case err != nil:
		outcome = "failed"
	case len(evalErrs) > 0:
		outcome = "script_error"
	}
	metrics.Evaluation(outcome)
	logging.Logger().Debug("evaluated", "key", key, "generation", gen, "outcome", outcome, "elapsed", time.Since(start))
	return sk, evalErrs, err
}

// release forgets key once its latest evaluation is done.
func (e *Engine) release(key string, gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generations[key] == gen {
		delete(e.generations, key)
	}
}

// pending reports how many keys have an evaluation in flight.
func (e *Engine) pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.generations)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*sketch.Sketch, []EvalError, error) {
	sk, err := sketch.New(e.opts)
	if err != nil {
		return nil, nil, err
	}

	if strings.TrimSpace(source) != "" {
		// Sandbox mode keeps scripts away from the filesystem and syscalls.
		env := zygo.NewZlispSandbox()
		defer env.Stop()
		registerBuiltins(env, sk)

		if err := env.LoadString(preprocessSource(source)); err != nil {
			return nil, parseZygomysError(err), nil
		}
		if _, err := env.Run(); err != nil {
			return nil, parseZygomysError(err), nil
		}
	}

	if _, err := sk.Step(); err != nil {
		return nil, nil, fmt.Errorf("engine: %w", err)
	}
	return sk, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalErrors, extracting the
// line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
