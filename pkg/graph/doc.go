// Package graph holds the construction: the Geometry Store (handles, symbolic
// definitions, resolved geometry, style) and the Dependency Graph Cache that
// keeps parent/child edges and a topological order over the handles.
//
// The edge relation is a DAG at all times; every structural edit that would
// close a cycle or reference a missing handle is rejected and leaves both the
// store and the dependency graph unchanged.
package graph
