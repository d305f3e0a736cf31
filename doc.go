// Package odigraph is a compile-time dependency resolution engine and the
// tooling around it.
//
// Given declared producers, components and requests, it decides for every
// request exactly one producer, wires producers into a dependency graph and
// validates the graph before anything is instantiated. Code generation turns
// a validated graph into a plain Go composition root.
//
// See subpackages:
//   - di: the resolution engine
//   - internal/manifest: declaration manifests (YAML, JSON, TOML)
//   - internal/emit: Go composition-root generator
//   - internal/config, internal/logging, internal/tracing, internal/watch:
//     CLI plumbing
//   - cmd/odigraph: check, explain, gen and convert commands
//   - examples/core: a manifest with its generated wiring
package odigraph
