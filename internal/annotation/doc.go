// Package annotation renders declarative gateway rules into the annotation
// string format consumed by Ambassador.
//
// # Overview
//
// A Spec is an ordered set of annotation keys decoded from YAML. Render turns
// a Spec into a Block, one formatted line per element:
//
//	timeout_ms: 3000
//	add_response_headers:
//	  X-Frame-Options: "DENY"
//
// Scalar values are written verbatim from their YAML source text. Sequence
// values are written in YAML flow style. Nested mappings are only rendered
// under the add_response_headers key; nested mappings under any other key are
// dropped without error.
//
// # Merging
//
// Merge appends the global Block after a service Block, so service-specific
// lines always come first. Duplicate keys are kept as separate lines.
//
// PreserveUnmanaged carries over entries from a Service's current annotation
// value whose top-level key is not produced by the rendered Block.
//
// All functions return freshly allocated Blocks and never mutate their input.
package annotation
