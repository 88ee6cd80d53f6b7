// Package worker hosts the isolated execution context that computes desired
// UI state.
//
// A worker is distrusted for document-affecting operations: everything it
// emits goes through the sanitizer and admission gates before touching the
// live tree. Communication is one-way message passing per direction, FIFO
// per sender, with no acknowledgments and no shared memory; termination is
// the only cancellation and it is final.
//
// The goja-backed implementation runs author JavaScript against a small
// virtual document and flushes the recorded changes as mutation batches.
// Author programs above the size cap are rejected before any VM starts.
package worker
