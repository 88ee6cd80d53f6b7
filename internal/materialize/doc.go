// Package materialize turns worker-provided skeletons into live nodes.
//
// Construction is depth-first, parent before children, with skeleton
// content applied verbatim; the sanitizer then runs once over the finished
// subtree, because its tag-validity and structural checks need surrounding
// context that does not exist mid-construction. Identity bindings happen
// last and only for nodes that survived, so a fully rejected skeleton
// leaves no net bindings behind.
package materialize
