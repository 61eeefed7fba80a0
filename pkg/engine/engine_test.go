package engine

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chazu/compass/pkg/graph"
	"github.com/chazu/compass/pkg/sketch"
)

func TestEvaluateWhitespaceOnly(t *testing.T) {
	sk := mustEval(t, "   \n\t  \n  ")
	if sk.Len() != 0 {
		t.Errorf("expected empty sketch, got %d objects", sk.Len())
	}
}

func TestEvaluatePlainLisp(t *testing.T) {
	sk := mustEval(t, `
(def x 10)
(def y 20)
(+ x y)
`)
	if sk.Len() != 0 {
		t.Errorf("expected empty sketch, got %d objects", sk.Len())
	}
}

func TestEvaluateSyntaxError(t *testing.T) {
	sk, evalErrs, err := NewEngine().Evaluate("(point 1 2")
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if sk != nil {
		t.Fatal("expected nil sketch on syntax error")
	}
	if len(evalErrs) == 0 || evalErrs[0].Message == "" {
		t.Fatalf("expected a populated eval error, got %v", evalErrs)
	}
}

func TestEvaluateUndefinedSymbol(t *testing.T) {
	sk, evalErrs, err := NewEngine().Evaluate("(line a b)")
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if sk != nil {
		t.Fatal("expected nil sketch on eval error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error for undefined symbol")
	}
}

func TestEvaluateSolvesBeforeReturning(t *testing.T) {
	sk := mustEval(t, `(point 1 2 :name "A")`)
	if sk.Context().SolverDirty {
		t.Error("sketch should be clean after evaluation")
	}
	if sk.Context().Frame != 2 {
		t.Errorf("Frame = %d, want 2 after one step", sk.Context().Frame)
	}
}

func TestEvaluateUsesOptions(t *testing.T) {
	opts := sketch.DefaultOptions()
	opts.Width, opts.Height = 320, 200
	eng := NewEngineWith(opts, 0)
	if eng.Timeout() != EvalTimeout {
		t.Errorf("Timeout = %s, want the default", eng.Timeout())
	}

	sk, _, err := eng.Evaluate("")
	if err != nil {
		t.Fatal(err)
	}
	if got := sk.Viewport().Size(); got.X != 320 || got.Y != 200 {
		t.Errorf("viewport size = %v, want 320x200", got)
	}
}

func TestEvaluateFreshSketchEachTime(t *testing.T) {
	eng := NewEngine()
	var ids []string
	for i := 0; i < 3; i++ {
		sk, evalErrs, err := eng.Evaluate(`(point 0 0 :name "A")`)
		if err != nil || len(evalErrs) > 0 {
			t.Fatalf("iteration %d: %v %v", i, err, evalErrs)
		}
		if sk.Len() != 1 {
			t.Errorf("iteration %d: expected 1 object, got %d", i, sk.Len())
		}
		ids = append(ids, sk.ID())
	}
	if ids[0] == ids[1] || ids[1] == ids[2] {
		t.Errorf("sketch IDs repeat: %v", ids)
	}
}

func TestEvalErrorImplementsError(t *testing.T) {
	e := EvalError{Line: 5, Message: "something went wrong"}
	s := e.Error()
	if !strings.Contains(s, "line 5") || !strings.Contains(s, "something went wrong") {
		t.Errorf("Error() = %q", s)
	}

	e2 := EvalError{Message: "no location"}
	if strings.Contains(e2.Error(), "line") {
		t.Errorf("Error() with no line should not contain 'line', got: %s", e2.Error())
	}
}

func TestWaitTimesOut(t *testing.T) {
	ch := make(chan evalResult) // never sends

	start := time.Now()
	_, _, err := waitWithTimeout(ch, 20*time.Millisecond, nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %s", elapsed)
	}
}

func TestWaitDiscardsStale(t *testing.T) {
	ch := make(chan evalResult, 1)
	ch <- evalResult{}

	stale := func() bool { return true }
	if _, _, err := waitWithTimeout(ch, time.Second, stale); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("err = %v, want ErrSuperseded", err)
	}
}

func TestWaitKeepsCurrent(t *testing.T) {
	ch := make(chan evalResult, 1)
	ch <- evalResult{errors: []EvalError{{Message: "x"}}}

	_, evalErrs, err := waitWithTimeout(ch, time.Second, func() bool { return false })
	if err != nil || len(evalErrs) != 1 {
		t.Fatalf("got %v %v, want the result", evalErrs, err)
	}
}

func TestConcurrentEvaluationsAreIndependent(t *testing.T) {
	eng := NewEngine()
	const n = 8

	var wg sync.WaitGroup
	errs := make([]error, n)
	sketches := make([]*sketch.Sketch, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sk, _, err := eng.Evaluate(`(def a (point 0 0)) (def b (point 3 4)) (line a b)`)
			errs[i], sketches[i] = err, sk
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Errorf("evaluation %d: %v", i, errs[i])
			continue
		}
		if sketches[i].Len() != 3 {
			t.Errorf("evaluation %d: %d objects, want 3", i, sketches[i].Len())
		}
	}
}

func TestEvaluateKeyed(t *testing.T) {
	eng := NewEngine()
	for i := 0; i < 3; i++ {
		sk, evalErrs, err := eng.EvaluateKeyed("editor", `(point 1 1)`)
		if err != nil || len(evalErrs) > 0 {
			t.Fatalf("round %d: %v %v", i, err, evalErrs)
		}
		if sk.Len() != 1 {
			t.Errorf("round %d: %d objects, want 1", i, sk.Len())
		}
	}
	if n := eng.pending(); n != 0 {
		t.Errorf("pending keys = %d after all evaluations finished", n)
	}
}

func TestEvaluateKeyedDifferentKeys(t *testing.T) {
	eng := NewEngine()
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = eng.EvaluateKeyed(fmt.Sprintf("client-%d", i), `(point 0 0)`)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Errorf("client %d: %v", i, err)
		}
	}
}

func TestParseZygomysError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantLine int
		wantMsg  string
	}{
		{"error on line format", "Error on line 5: unexpected token\n", 5, "unexpected token"},
		{"no line info", "some generic error", 0, "some generic error"},
		{"line format lowercase", "error on line 12: missing paren", 12, "missing paren"},
		{"short form", "line 3: bad", 3, "bad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := parseZygomysError(errors.New(tt.msg))
			if len(errs) != 1 {
				t.Fatalf("expected one error, got %v", errs)
			}
			if errs[0].Line != tt.wantLine {
				t.Errorf("line = %d, want %d", errs[0].Line, tt.wantLine)
			}
			if !strings.Contains(errs[0].Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", errs[0].Message, tt.wantMsg)
			}
		})
	}
}

func TestExampleScripts(t *testing.T) {
	for _, name := range []string{"../../examples/triangle.compass", "../../examples/midline.compass"} {
		t.Run(name, func(t *testing.T) {
			src, err := os.ReadFile(name)
			if err != nil {
				t.Fatal(err)
			}
			sk := mustEval(t, string(src))
			if sk.Len() == 0 {
				t.Fatal("example built nothing")
			}
			for _, e := range sk.Validate() {
				if e.Severity == graph.SeverityError {
					t.Errorf("validation error: %v", e)
				}
			}
		})
	}
}
