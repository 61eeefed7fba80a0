// Package server exposes construction scripts and live editing sessions over
// HTTP and WebSocket.
package server

import (
	"github.com/chazu/compass/pkg/drawlist"
	"github.com/chazu/compass/pkg/engine"
	"github.com/chazu/compass/pkg/graph"
	"github.com/chazu/compass/pkg/logging"
	"github.com/chazu/compass/pkg/sketch"
	"github.com/chazu/compass/pkg/snap"
	v2 "github.com/deadsy/sdfx/vec/v2"
)

// App evaluates scripts on behalf of the HTTP handlers and the CLI.
type App struct {
	engine *engine.Engine
}

// EvalErrorData is a JSON-serializable eval error or warning.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the full result of evaluating a script.
type EvalResult struct {
	SketchID string          `json:"sketchId,omitempty"`
	Objects  []sketch.Object `json:"objects"`
	DrawList []drawlist.Item `json:"drawList"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`

	sketch *sketch.Sketch
}

// Sketch returns the evaluated sketch, or nil if evaluation failed.
func (r EvalResult) Sketch() *sketch.Sketch { return r.sketch }

// OK reports whether the script ran without errors.
func (r EvalResult) OK() bool { return len(r.Errors) == 0 }

// NewApp returns an App evaluating with eng.
func NewApp(eng *engine.Engine) *App {
	return &App{engine: eng}
}

// Evaluate runs source and returns the resolved objects, their draw list and
// any errors. Objects left without geometry are reported as warnings.
func (a *App) Evaluate(source string) EvalResult {
	return a.EvaluateKeyed("", source)
}

// EvaluateKeyed is Evaluate on behalf of the caller identified by key. A
// newer evaluation under the same key supersedes this one; see
// engine.Engine.EvaluateKeyed.
func (a *App) EvaluateKeyed(key, source string) EvalResult {
	result := EvalResult{
		Objects:  []sketch.Object{},
		DrawList: []drawlist.Item{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}

	sk, evalErrs, err := a.engine.EvaluateKeyed(key, source)
	if err != nil {
		logging.Logger().Error("evaluate", "error", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		return result
	}

	items, err := drawlist.Build(sk.Store(), sk.Viewport())
	if err != nil {
		logging.Logger().Error("draw list", "error", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: "draw list failed: " + err.Error()})
		return result
	}

	for _, v := range sk.Validate() {
		data := EvalErrorData{Message: v.Error()}
		if v.Severity == graph.SeverityError {
			result.Errors = append(result.Errors, data)
		} else {
			result.Warnings = append(result.Warnings, data)
		}
	}

	result.sketch = sk
	result.SketchID = sk.ID()
	result.Objects = sk.Objects()
	if items != nil {
		result.DrawList = items
	}
	return result
}

// SnapResult is the answer to a snap query against a script.
type SnapResult struct {
	EvalResult
	Target *snap.Target `json:"target,omitempty"`
}

// Snap evaluates source and snaps cursor, given in pixels, against the
// result.
func (a *App) Snap(source string, cursor v2.Vec) SnapResult {
	return a.SnapKeyed("", source, cursor)
}

// SnapKeyed is Snap on behalf of the caller identified by key.
func (a *App) SnapKeyed(key, source string, cursor v2.Vec) SnapResult {
	res := SnapResult{EvalResult: a.EvaluateKeyed(key, source)}
	if sk := res.Sketch(); sk != nil {
		t := sk.Snap(cursor)
		res.Target = &t
	}
	return res
}
