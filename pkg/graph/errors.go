package graph

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for errors.Is. The typed errors below match them.
var (
	ErrCycle             = errors.New("dependency cycle")
	ErrDanglingReference = errors.New("dangling reference")
	ErrInvalidDefinition = errors.New("invalid definition")
	ErrUnknownHandle     = errors.New("unknown handle")
	ErrDuplicateHandle   = errors.New("handle already present")
)

// CycleError rejects an edit whose edges would close a dependency cycle.
// Path runs from the edited handle back to itself.
type CycleError struct {
	Handle Handle
	Path   []Handle
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("graph: %s would depend on itself", e.Handle)
	}
	parts := make([]string, len(e.Path))
	for i, h := range e.Path {
		parts[i] = h.String()
	}
	return fmt.Sprintf("graph: cycle through %s: %s", e.Handle, strings.Join(parts, " -> "))
}

func (e *CycleError) Is(target error) bool { return target == ErrCycle }

// DanglingReferenceError rejects a definition that references a handle that
// does not exist, typically one that was deleted.
type DanglingReferenceError struct {
	Handle Handle // object being defined, zero if not yet allocated
	Ref    Handle // missing handle
}

func (e *DanglingReferenceError) Error() string {
	if e.Handle.IsZero() {
		return fmt.Sprintf("graph: reference to missing object %s", e.Ref)
	}
	return fmt.Sprintf("graph: %s references missing object %s", e.Handle, e.Ref)
}

func (e *DanglingReferenceError) Is(target error) bool { return target == ErrDanglingReference }

// DefinitionError rejects a definition whose parents have the wrong kind or
// repeat the same handle where two distinct objects are required.
type DefinitionError struct {
	Definition Definition
	Message    string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("graph: %s: %s", e.Definition.Describe(), e.Message)
}

func (e *DefinitionError) Is(target error) bool { return target == ErrInvalidDefinition }
