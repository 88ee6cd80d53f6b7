// Package dom provides the live document tree the coordinator owns.
//
// Nodes are golang.org/x/net/html nodes. This package adds the structural
// helpers the synchronization engine needs (anchored insertion, detachment,
// attribute access, render/parse round trips, goquery-backed lookup), a
// side table for live properties that have no attribute representation, and
// the Host abstraction describing the element that embeds a session.
package dom
