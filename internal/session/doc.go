// Package session owns one worker synchronization session end to end.
//
// A session is the explicit home of what would otherwise be global mutable
// state: the identity map, the mutation queue, the property table and the
// gesture clock. All of it is owned by the session's single logical thread
// of control, a run loop goroutine that serializes event callbacks, worker
// messages and scheduled drains, so no shared state is ever touched from
// two call stacks concurrently. Multiple sessions per process are
// independent by construction.
//
// Lifecycle: after init the skeleton is reconciled against the
// pre-rendered host subtree (hydration, bypassing the queue), then the
// session enters the steady-state mutating phase. Admission rejection is
// terminal: the worker is discarded, queued mutations are dropped and the
// host is marked broken.
package session
