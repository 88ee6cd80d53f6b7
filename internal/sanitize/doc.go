// Package sanitize is the security gate every worker-sourced change passes
// before it is committed to the live document.
//
// The gate is fail-closed: any rejection leaves the document unmodified for
// that unit of change. Policy decisions are delegated to a single bluemonday
// policy so structural sanitization and attribute validation cannot drift
// apart; attribute-level checks render a one-element probe through the
// policy and read back what survived, which also yields the normalized
// (URL-rewritten) value.
package sanitize
