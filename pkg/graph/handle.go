package graph

import (
	"slices"
	"strconv"
)

// Handle identifies a geometric object for as long as it exists. Handles are
// allocated from a counter and never reused; zero is the null handle.
type Handle uint64

// NoHandle is the null handle.
const NoHandle Handle = 0

// IsZero reports whether h is the null handle.
func (h Handle) IsZero() bool { return h == NoHandle }

func (h Handle) String() string { return "#" + strconv.FormatUint(uint64(h), 10) }

// sortHandles sorts hs in place, ascending, and returns it.
func sortHandles(hs []Handle) []Handle {
	slices.Sort(hs)
	return hs
}
