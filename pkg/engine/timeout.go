package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/chazu/compass/pkg/sketch"
)

// EvalTimeout is the default limit for a single evaluation.
const EvalTimeout = 5 * time.Second

// Fatal evaluation errors.
var (
	ErrTimeout    = errors.New("evaluation timed out")
	ErrSuperseded = errors.New("evaluation superseded by newer request")
)

type evalResult struct {
	sketch *sketch.Sketch
	errors []EvalError
	err    error
}

// waitWithTimeout waits for a result from ch for at most timeout. If stale
// is non-nil and reports true once the result arrives, the result is
// discarded.
//
// On timeout the evaluating goroutine keeps running; its result lands in the
// buffered channel and is dropped.
func waitWithTimeout(ch <-chan evalResult, timeout time.Duration, stale func() bool) (*sketch.Sketch, []EvalError, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if stale != nil && stale() {
			return nil, nil, ErrSuperseded
		}
		return res.sketch, res.errors, res.err

	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}
