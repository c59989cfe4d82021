// Package transform rewrites catalog response documents into their compact,
// client-friendly shape.
//
// The Aggregator walks a generic JSON tree and applies two rewrite rules to
// known fields of every resource it reaches:
//
//   - array compaction: [{"value":"a"},{"value":"b"}] becomes ["a","b"]
//     for the keys in SimpleArrayKeys
//   - label grouping: [{"key":"k","value":"a"},{"key":"k","value":"b"}]
//     becomes {"k":["a","b"]} for LabelsKey
//
// Traversal is selective: only the fields named in SubresourceKeys are
// descended into, so unrelated parts of a document that happen to carry a
// "tags" field are left alone.
package transform

import (
	"errors"
)

// ErrCompactFailed indicates that a response body could not be compacted.
var ErrCompactFailed = errors.New("compact transformation failed")
