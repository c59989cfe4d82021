package jsontree

import (
	"github.com/tidwall/gjson"
)

// Marshal encodes the tree as compact JSON.
func (n *Node) Marshal() []byte {
	return n.AppendJSON(nil)
}

// MarshalJSON implements json.Marshaler so a tree can be embedded in
// values encoded with encoding/json or gin.
func (n *Node) MarshalJSON() ([]byte, error) {
	return n.Marshal(), nil
}

// AppendJSON appends the compact encoding of the tree to dst.
func (n *Node) AppendJSON(dst []byte) []byte {
	switch n.Kind() {
	case KindNull:
		return append(dst, "null"...)
	case KindBool:
		if n.boolean {
			return append(dst, "true"...)
		}
		return append(dst, "false"...)
	case KindNumber:
		if n.text == "" {
			return append(dst, '0')
		}
		return append(dst, n.text...)
	case KindString:
		return gjson.AppendJSONString(dst, n.text)
	case KindArray:
		dst = append(dst, '[')
		for i, e := range n.elems {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = e.AppendJSON(dst)
		}
		return append(dst, ']')
	case KindObject:
		dst = append(dst, '{')
		for i, m := range n.members {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = gjson.AppendJSONString(dst, m.Key)
			dst = append(dst, ':')
			dst = m.Value.AppendJSON(dst)
		}
		return append(dst, '}')
	default:
		return append(dst, "null"...)
	}
}

// String returns the compact encoding of the tree.
func (n *Node) String() string {
	return string(n.Marshal())
}
