// Package jsontree provides a generic, order-preserving JSON document tree.
//
// A Node is a tagged union over the six JSON kinds. Object members keep
// document order on parse and insertion order on build, so re-encoding a
// parsed document yields the same member order. Number literals are kept
// verbatim, which means a parse/encode round trip never changes precision.
//
// # Mutation
//
// Object members can be replaced in place with Set. A replaced member keeps
// its position; the old value is discarded as a whole.
//
//	root, err := jsontree.Parse(body)
//	if err != nil {
//	    return err
//	}
//	if tags, ok := root.Get("tags"); ok && tags.Kind() == jsontree.KindArray {
//	    root.Set("tags", jsontree.NewArray())
//	}
//	out := root.Marshal()
//
// # Thread Safety
//
// Nodes are not safe for concurrent mutation. Each request should work on
// its own tree.
package jsontree
