// Package admission is the coarse-grained policy gate deciding whether a
// batch of mutations may apply at all.
//
// The gate runs once per synchronization batch, not per record. Hydration
// batches are admitted unconditionally. Steady-state batches need either
// recent qualifying user activity or a size-contained host: small regions
// with a statically defined height may update freely. A rejected batch is
// terminal for the session; there is no retry.
package admission
