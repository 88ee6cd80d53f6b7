// Package protocol defines the wire contract between the coordinator and a
// worker.
//
// Message shapes are a de facto protocol: field names and mutation variant
// tags (childList, attributes, characterData, properties) must be preserved
// bit-for-bit so an unmodified worker implementation interoperates. Both
// directions are closed tagged variants; unknown tags are rejected at the
// boundary rather than silently ignored.
package protocol
