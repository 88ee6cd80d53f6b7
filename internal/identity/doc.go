// Package identity maintains the bidirectional association between opaque
// worker-assigned node identifiers and live nodes.
//
// Each live node carries at most one identifier and each identifier maps to
// at most one live node. Entries are scoped to a single worker session and
// discarded with it. The synchronization root is a sentinel: resolving it
// yields the locally designated mount point, decoupling the worker's notion
// of the document body from the coordinator's actual attachment point.
package identity
