// Package domain defines the core mixer types and the DSP adapter contract.
//
// This package contains concept-oriented files (mixer.go, adapter.go, errors.go)
// with shared types and cross-cutting interfaces. Apart from JSON encoding of
// targets there is no implementation code - just contracts.
package domain
