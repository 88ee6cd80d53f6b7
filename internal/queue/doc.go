// Package queue buffers worker mutation instructions and drains them onto
// the live document within time budgets.
//
// Records append at the tail with a coordinator-assigned receive timestamp
// and drain from the head. A record may be left queued (skipped, not
// dropped) when gesture recency policy says it must wait, or when it is a
// text or attribute change whose target is outside the viewport. Records
// touching the same target and variant always commit in their original
// relative order; unrelated records may be reordered by deferral because
// doing so changes no observable outcome.
//
// Draining is deadline-bounded. When budget runs out with records pending,
// the drain reschedules itself rather than running to completion, bounding
// interference with normal rendering and interactivity. The "drain is
// scheduled" state is one explicit handle: re-entrant scheduling cancels
// and supersedes the pending call instead of stacking drains.
package queue
