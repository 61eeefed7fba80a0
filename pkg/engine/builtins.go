package engine

import (
	"fmt"
	"strings"

	"github.com/chazu/compass/pkg/graph"
	"github.com/chazu/compass/pkg/sketch"
	v2 "github.com/deadsy/sdfx/vec/v2"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites a construction script into plain zygomys:
//
//  1. :keyword becomes the string literal "__kw_keyword", so keywords need
//     no global symbols that could clash with user variables.
//  2. Kebab-case identifiers become snake case (on-line -> on_line), since
//     zygomys reads a hyphen as subtraction.
//  3. ; line comments become // comments.
//
// String literals are copied unchanged.
func preprocessSource(source string) string {
	b := []byte(source)
	out := make([]byte, 0, len(b)+len(b)/4)

	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == '"' || c == '`':
			j := skipString(b, i)
			out = append(out, b[i:j]...)
			i = j

		case c == ';':
			out = append(out, '/', '/')
			for i < len(b) && b[i] == ';' {
				i++
			}
			j := i
			for j < len(b) && b[j] != '\n' {
				j++
			}
			out = append(out, b[i:j]...)
			i = j

		case c == ':' && i+1 < len(b) && b[i+1] == '=':
			out = append(out, ':', '=')
			i += 2

		case c == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			out = append(out, '"')
			out = append(out, kwPrefix...)
			out = append(out, b[i+1:j]...)
			out = append(out, '"')
			i = j

		case c == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			out = append(out, '_')
			i++

		default:
			out = append(out, c)
			i++
		}
	}
	return string(out)
}

// skipString returns the index just past the string literal starting at
// b[i]. Double-quoted strings honour backslash escapes; raw strings do not.
func skipString(b []byte, i int) int {
	quote := b[i]
	j := i + 1
	for j < len(b) && b[j] != quote {
		if quote == '"' && b[j] == '\\' {
			j++
		}
		j++
	}
	return min(j+1, len(b))
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isIdentChar(c) || c == '-'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Object references
// ---------------------------------------------------------------------------

// sexpObject is what construction builtins return: a handle into the sketch
// under evaluation.
type sexpObject struct {
	h    graph.Handle
	kind graph.Kind
}

func (o *sexpObject) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %s)", o.kind, o.h)
}
func (o *sexpObject) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates keyword arguments from positional ones. A trailing
// keyword with no value maps to SexpNull.
func parseArgs(args []zygo.Sexp) kwArgs {
	out := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			out.positional = append(out.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			out.kw[name] = args[i+1]
			i++
		} else {
			out.kw[name] = zygo.SexpNull
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toObject extracts a handle of the wanted kind.
func toObject(s zygo.Sexp, want graph.Kind) (graph.Handle, error) {
	o, ok := s.(*sexpObject)
	if !ok {
		return graph.NoHandle, fmt.Errorf("expected %s, got %T (%s)", want, s, s.SexpString(nil))
	}
	if o.kind != want {
		return graph.NoHandle, fmt.Errorf("expected %s, got %s %s", want, o.kind, o.h)
	}
	return o.h, nil
}

// toAny extracts a handle of either kind.
func toAny(s zygo.Sexp) (graph.Handle, error) {
	if o, ok := s.(*sexpObject); ok {
		return o.h, nil
	}
	return graph.NoHandle, fmt.Errorf("expected object, got %T (%s)", s, s.SexpString(nil))
}

// floats extracts exactly n numbers from the positional arguments.
func floats(fn string, args []zygo.Sexp, n int) ([]float64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%s requires %d numbers, got %d arguments", fn, n, len(args))
	}
	out := make([]float64, n)
	for i, a := range args {
		f, err := toFloat64(a)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", fn, i+1, err)
		}
		out[i] = f
	}
	return out, nil
}

// styleFrom reads the :name and :color keywords shared by every
// constructor.
func styleFrom(fn string, pa kwArgs) (graph.Style, error) {
	var st graph.Style
	if v, ok := pa.kw["name"]; ok {
		s, err := toString(v)
		if err != nil {
			return st, fmt.Errorf("%s: name: %w", fn, err)
		}
		st.Label = s
	}
	if v, ok := pa.kw["color"]; ok {
		s, err := toString(v)
		if err != nil {
			return st, fmt.Errorf("%s: color: %w", fn, err)
		}
		st.Color = s
	}
	return st, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the construction builtins into env. They edit sk
// directly; an edit the sketch rejects aborts the script with that error.
//
// Names are registered in snake case; preprocessSource turns the kebab-case
// spelling used in scripts into these.
func registerBuiltins(env *zygo.Zlisp, sk *sketch.Sketch) {
	create := func(fn string, def graph.Definition, pa kwArgs) (zygo.Sexp, error) {
		st, err := styleFrom(fn, pa)
		if err != nil {
			return zygo.SexpNull, err
		}
		// Without a colour Create fills in the default style itself.
		if st.Color != "" {
			d := graph.DefaultStyle(def.Kind())
			d.Label, d.Color = st.Label, st.Color
			st = d
		}
		h, err := sk.Create(def, st)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
		}
		return &sexpObject{h: h, kind: def.Kind()}, nil
	}

	// (point x y :name "A" :color "#112233")
	env.AddFunction("point", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		xy, err := floats("point", pa.positional, 2)
		if err != nil {
			return zygo.SexpNull, err
		}
		return create("point", graph.FreePoint{At: v2.Vec{X: xy[0], Y: xy[1]}}, pa)
	})

	// (free-line ox oy dx dy)
	env.AddFunction("free_line", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		f, err := floats("free-line", pa.positional, 4)
		if err != nil {
			return zygo.SexpNull, err
		}
		return create("free-line", graph.FreeLine{
			Origin:    v2.Vec{X: f[0], Y: f[1]},
			Direction: v2.Vec{X: f[2], Y: f[3]},
		}, pa)
	})

	// (line p q)
	env.AddFunction("line", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 2 {
			return zygo.SexpNull, fmt.Errorf("line requires two points, got %d arguments", len(pa.positional))
		}
		from, err := toObject(pa.positional[0], graph.KindPoint)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("line: from: %w", err)
		}
		through, err := toObject(pa.positional[1], graph.KindPoint)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("line: through: %w", err)
		}
		return create("line", graph.LineThrough{From: from, Through: through}, pa)
	})

	// (on-line l t)
	env.AddFunction("on_line", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 2 {
			return zygo.SexpNull, fmt.Errorf("on-line requires a line and a distance, got %d arguments", len(pa.positional))
		}
		l, err := toObject(pa.positional[0], graph.KindLine)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("on-line: line: %w", err)
		}
		t, err := toFloat64(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("on-line: distance: %w", err)
		}
		return create("on-line", graph.OnLine{Line: l, T: t}, pa)
	})

	// (intersect a b)
	env.AddFunction("intersect", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 2 {
			return zygo.SexpNull, fmt.Errorf("intersect requires two lines, got %d arguments", len(pa.positional))
		}
		a, err := toObject(pa.positional[0], graph.KindLine)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("intersect: first: %w", err)
		}
		b, err := toObject(pa.positional[1], graph.KindLine)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("intersect: second: %w", err)
		}
		return create("intersect", graph.Intersection{A: a, B: b}, pa)
	})

	// (move-point p x y)
	env.AddFunction("move_point", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("move-point requires a point and two numbers, got %d arguments", len(args))
		}
		p, err := toObject(args[0], graph.KindPoint)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("move-point: %w", err)
		}
		xy, err := floats("move-point", args[1:], 2)
		if err != nil {
			return zygo.SexpNull, err
		}
		if err := sk.MovePoint(p, v2.Vec{X: xy[0], Y: xy[1]}); err != nil {
			return zygo.SexpNull, fmt.Errorf("move-point: %w", err)
		}
		return args[0], nil
	})

	// (slide p t) sets the distance of an on-line point.
	env.AddFunction("slide", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("slide requires a point and a distance, got %d arguments", len(args))
		}
		p, err := toObject(args[0], graph.KindPoint)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("slide: %w", err)
		}
		t, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("slide: distance: %w", err)
		}
		def, _ := sk.Definition(p)
		on, ok := def.(graph.OnLine)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("slide: %s is not on a line", p)
		}
		on.T = t
		if err := sk.Redefine(p, on); err != nil {
			return zygo.SexpNull, fmt.Errorf("slide: %w", err)
		}
		return args[0], nil
	})

	// (erase h) deletes h and everything built on it. Returns the number of
	// objects removed.
	env.AddFunction("erase", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("erase requires one object, got %d arguments", len(args))
		}
		h, err := toAny(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("erase: %w", err)
		}
		removed, err := sk.Delete(h)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("erase: %w", err)
		}
		return &zygo.SexpInt{Val: int64(len(removed) + 1)}, nil
	})

	// (obj "A") looks an object up by label.
	env.AddFunction("obj", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("obj requires a label")
		}
		label, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("obj: %w", err)
		}
		h, ok := sk.Lookup(label)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("obj: no object labelled %q", label)
		}
		def, _ := sk.Definition(h)
		return &sexpObject{h: h, kind: def.Kind()}, nil
	})
}
