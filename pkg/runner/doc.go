// Package runner executes test plans: it walks steps in order, retries
// failures against a bounded budget, escalates exhausted steps to a
// human operator, and folds operator decisions back into the walk.
//
// Invariants:
// - The parsed plan is immutable; per-step mutable state lives in a
//   side table keyed by step number.
// - The browser session is protected while an agent attempt or an
//   intervention is in flight.
// - Every attempt appends a StepResult; the run passes only if every
//   recorded attempt passed.
package runner
