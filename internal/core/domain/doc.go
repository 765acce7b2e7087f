// Package domain contains the project model consumed by the build planner.
// This is part of the Functional Core - all functions are pure with no I/O.
//
// # Types
//
//   - Solution: the set of projects generated together, plus its target matrix
//   - Project: a unit of compilation with files, dependencies and attributes
//   - File: a declared or generated input with a FileType and platform filter
//   - Dependency: a typed edge to a project or a library
//   - Library: an external library with a layered per-(platform, configuration) Config
//
// The model is built by an external loader (internal/shell/manifest) and is
// treated as immutable during planning.
package domain
