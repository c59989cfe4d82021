package jsontree

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrMalformedJSON indicates that the input is not a well-formed JSON document.
var ErrMalformedJSON = errors.New("malformed JSON document")

// Parse decodes a JSON document into a tree. The whole input must be a
// single valid JSON value; anything else yields an error wrapping
// ErrMalformedJSON.
func Parse(data []byte) (*Node, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedJSON, len(data))
	}
	return fromResult(gjson.ParseBytes(data)), nil
}

// ParseString is like Parse but takes a string.
func ParseString(s string) (*Node, error) {
	if !gjson.Valid(s) {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedJSON, len(s))
	}
	return fromResult(gjson.Parse(s)), nil
}

// fromResult converts a gjson result into a node. A key repeated within
// one object keeps its first position and takes the last value.
func fromResult(r gjson.Result) *Node {
	switch r.Type {
	case gjson.Null:
		return Null()
	case gjson.False:
		return Bool(false)
	case gjson.True:
		return Bool(true)
	case gjson.Number:
		return Number(r.Raw)
	case gjson.String:
		return String(r.Str)
	case gjson.JSON:
		if r.IsArray() {
			arr := NewArray()
			r.ForEach(func(_, v gjson.Result) bool {
				arr.elems = append(arr.elems, fromResult(v))
				return true
			})
			return arr
		}
		obj := NewObject()
		r.ForEach(func(k, v gjson.Result) bool {
			obj.Set(k.Str, fromResult(v))
			return true
		})
		return obj
	default:
		return Null()
	}
}
