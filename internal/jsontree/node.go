package jsontree

import (
	"strconv"
)

// Kind identifies the JSON type held by a Node.
type Kind int

// Node kinds.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the JSON name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Member is a single key/value pair of an object node.
type Member struct {
	Key   string
	Value *Node
}

// Node is one value of a JSON document.
//
// The zero value is a JSON null. A nil *Node is treated as null by all
// read accessors.
type Node struct {
	kind    Kind
	text    string // string value, or the literal of a number
	boolean bool
	elems   []*Node
	members []Member
}

// Null returns a null node.
func Null() *Node {
	return &Node{kind: KindNull}
}

// Bool returns a boolean node.
func Bool(b bool) *Node {
	return &Node{kind: KindBool, boolean: b}
}

// String returns a string node.
func String(s string) *Node {
	return &Node{kind: KindString, text: s}
}

// Number returns a number node holding the given JSON number literal.
// The literal is not validated; callers pass text produced by a JSON
// parser or by strconv.
func Number(literal string) *Node {
	return &Node{kind: KindNumber, text: literal}
}

// Int returns a number node for an integer.
func Int(i int64) *Node {
	return Number(strconv.FormatInt(i, 10))
}

// Float returns a number node for a float.
func Float(f float64) *Node {
	return Number(strconv.FormatFloat(f, 'g', -1, 64))
}

// NewArray returns an array node holding the given elements.
func NewArray(elems ...*Node) *Node {
	n := &Node{kind: KindArray, elems: make([]*Node, 0, len(elems))}
	n.elems = append(n.elems, elems...)
	return n
}

// NewObject returns an empty object node.
func NewObject() *Node {
	return &Node{kind: KindObject}
}

// Kind returns the kind of the node.
func (n *Node) Kind() Kind {
	if n == nil {
		return KindNull
	}
	return n.kind
}

// IsObject reports whether the node is an object.
func (n *Node) IsObject() bool { return n.Kind() == KindObject }

// IsArray reports whether the node is an array.
func (n *Node) IsArray() bool { return n.Kind() == KindArray }

// IsScalar reports whether the node is a string, number, boolean or null.
func (n *Node) IsScalar() bool {
	k := n.Kind()
	return k != KindArray && k != KindObject
}

// Str returns the value of a string node, or "" for any other kind.
func (n *Node) Str() string {
	if n.Kind() != KindString {
		return ""
	}
	return n.text
}

// Literal returns the literal text of a number node, or "" for any other kind.
func (n *Node) Literal() string {
	if n.Kind() != KindNumber {
		return ""
	}
	return n.text
}

// Boolean returns the value of a boolean node, or false for any other kind.
func (n *Node) Boolean() bool {
	if n.Kind() != KindBool {
		return false
	}
	return n.boolean
}

// Len returns the number of elements of an array or members of an object.
func (n *Node) Len() int {
	switch n.Kind() {
	case KindArray:
		return len(n.elems)
	case KindObject:
		return len(n.members)
	default:
		return 0
	}
}

// Elements returns the elements of an array node. The returned slice is
// owned by the node.
func (n *Node) Elements() []*Node {
	if n.Kind() != KindArray {
		return nil
	}
	return n.elems
}

// Append adds elements to an array node. It is a no-op for other kinds.
func (n *Node) Append(elems ...*Node) {
	if n.Kind() != KindArray {
		return
	}
	n.elems = append(n.elems, elems...)
}

// Members returns the members of an object node in order. The returned
// slice is owned by the node.
func (n *Node) Members() []Member {
	if n.Kind() != KindObject {
		return nil
	}
	return n.members
}

// Keys returns the member keys of an object node in order.
func (n *Node) Keys() []string {
	if n.Kind() != KindObject {
		return nil
	}
	keys := make([]string, len(n.members))
	for i, m := range n.members {
		keys[i] = m.Key
	}
	return keys
}

// Get returns the value of the member named key.
func (n *Node) Get(key string) (*Node, bool) {
	if i := n.index(key); i >= 0 {
		return n.members[i].Value, true
	}
	return nil, false
}

// Has reports whether an object node has a member named key.
func (n *Node) Has(key string) bool {
	return n.index(key) >= 0
}

// Set replaces the value of the member named key, keeping its position,
// or appends a new member. It is a no-op when n is not an object.
func (n *Node) Set(key string, value *Node) {
	if n.Kind() != KindObject {
		return
	}
	if value == nil {
		value = Null()
	}
	if i := n.index(key); i >= 0 {
		n.members[i].Value = value
		return
	}
	n.members = append(n.members, Member{Key: key, Value: value})
}

// Delete removes every member named key from an object node.
func (n *Node) Delete(key string) {
	if n.Kind() != KindObject {
		return
	}
	kept := n.members[:0]
	for _, m := range n.members {
		if m.Key != key {
			kept = append(kept, m)
		}
	}
	n.members = kept
}

func (n *Node) index(key string) int {
	if n.Kind() != KindObject {
		return -1
	}
	for i, m := range n.members {
		if m.Key == key {
			return i
		}
	}
	return -1
}

// Equal reports whether a and b are structurally equal. Object member
// order is significant. Numbers compare by literal text.
func Equal(a, b *Node) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case KindNull:
		return true
	case KindBool:
		return a.boolean == b.boolean
	case KindNumber, KindString:
		return a.text == b.text
	case KindArray:
		if len(a.elems) != len(b.elems) {
			return false
		}
		for i := range a.elems {
			if !Equal(a.elems[i], b.elems[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.members) != len(b.members) {
			return false
		}
		for i := range a.members {
			if a.members[i].Key != b.members[i].Key ||
				!Equal(a.members[i].Value, b.members[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
