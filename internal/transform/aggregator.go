package transform

import (
	"github.com/vyrodovalexey/ordcatalog/internal/jsontree"
)

// SubresourceKeys are the container fields whose values are themselves
// resources, or arrays of resources. They are visited in this order.
var SubresourceKeys = []string{"value", "products", "packages", "apis", "events"}

// SimpleArrayKeys are the resource fields compacted by CompactArray.
var SimpleArrayKeys = []string{"tags", "countries", "lineOfBusiness", "industry"}

// LabelsKey is the resource field grouped by GroupLabels.
const LabelsKey = "labels"

const (
	valueField = "value"
	keyField   = "key"
)

// Aggregate rewrites the tree in place. An array root is treated as a list
// of resources, an object root as a single resource; scalars are left
// untouched. Aggregate never fails: fields that are missing or have an
// unexpected shape are skipped.
func Aggregate(tree *jsontree.Node) {
	switch tree.Kind() {
	case jsontree.KindArray:
		for _, elem := range tree.Elements() {
			aggregateResource(elem)
		}
	case jsontree.KindObject:
		aggregateResource(tree)
	}
}

// aggregateResource rewrites one resource and then descends into its
// subresource containers.
func aggregateResource(resource *jsontree.Node) {
	if !resource.IsObject() {
		return
	}

	rewriteResource(resource)

	for _, key := range SubresourceKeys {
		if child, ok := resource.Get(key); ok {
			Aggregate(child)
		}
	}
}

// rewriteResource applies both rules to the direct fields of a resource.
func rewriteResource(resource *jsontree.Node) {
	for _, key := range SimpleArrayKeys {
		if field, ok := resource.Get(key); ok && field.IsArray() {
			resource.Set(key, CompactArray(field))
		}
	}

	if labels, ok := resource.Get(LabelsKey); ok && labels.IsArray() {
		resource.Set(LabelsKey, GroupLabels(labels))
	}
}

// CompactArray replaces every {"value": x} element with x. Objects without
// a value field are dropped; elements that are not objects are kept as they
// are, so compacting an already compacted array returns an equal array.
// A node that is not an array is returned unchanged.
func CompactArray(arr *jsontree.Node) *jsontree.Node {
	if !arr.IsArray() {
		return arr
	}

	out := jsontree.NewArray()
	for _, elem := range arr.Elements() {
		if !elem.IsObject() {
			out.Append(elem)
			continue
		}
		if v, ok := elem.Get(valueField); ok {
			out.Append(v)
		}
	}
	return out
}

// GroupLabels turns an array of {"key": k, "value": v} objects into an
// object mapping each distinct k to the array of its values. Keys appear in
// first-occurrence order and values in encounter order. Elements without a
// string key or without a value are skipped. A node that is not an array is
// returned unchanged.
func GroupLabels(arr *jsontree.Node) *jsontree.Node {
	if !arr.IsArray() {
		return arr
	}

	out := jsontree.NewObject()
	for _, elem := range arr.Elements() {
		if !elem.IsObject() {
			continue
		}
		k, ok := elem.Get(keyField)
		if !ok || k.Kind() != jsontree.KindString {
			continue
		}
		v, ok := elem.Get(valueField)
		if !ok {
			continue
		}

		group, exists := out.Get(k.Str())
		if !exists {
			group = jsontree.NewArray()
			out.Set(k.Str(), group)
		}
		group.Append(v)
	}
	return out
}
