// Package dag builds the validated dependency graph of job instances:
// matrix expansion, template-level needs fan-out, unresolved-reference
// and cycle detection, and deterministic topological ordering.
//
// All validation happens here, before any execution begins. A model that
// survives Build is guaranteed acyclic with every reference resolved.
package dag
