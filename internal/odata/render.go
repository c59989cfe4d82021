package odata

import (
	"slices"

	"github.com/vyrodovalexey/ordcatalog/internal/catalog"
	"github.com/vyrodovalexey/ordcatalog/internal/jsontree"
)

// Annotation names used in responses.
const (
	AnnotationContext = "@odata.context"
	AnnotationCount   = "@odata.count"
)

// RenderCollection renders a collection response for set.
func RenderCollection(set string, result *catalog.Result, sel []string) *jsontree.Node {
	doc := jsontree.NewObject()
	doc.Set(AnnotationContext, jsontree.String("$metadata#"+set))
	if result.Count != nil {
		doc.Set(AnnotationCount, jsontree.Int(*result.Count))
	}
	doc.Set("value", renderRecords(result.Records, sel))
	return doc
}

// RenderEntity renders a single entity response for set.
func RenderEntity(set string, record *catalog.Record, sel []string) *jsontree.Node {
	doc := jsontree.NewObject()
	doc.Set(AnnotationContext, jsontree.String("$metadata#"+set+"/$entity"))
	appendRecord(doc, record, sel)
	return doc
}

func renderRecords(records []*catalog.Record, sel []string) *jsontree.Node {
	arr := jsontree.NewArray()
	for _, r := range records {
		obj := jsontree.NewObject()
		appendRecord(obj, r, sel)
		arr.Append(obj)
	}
	return arr
}

// appendRecord writes the selected properties of r followed by its
// expanded navigation properties.
func appendRecord(obj *jsontree.Node, r *catalog.Record, sel []string) {
	for _, f := range r.Entity.Fields() {
		if len(sel) > 0 && !slices.Contains(sel, f.Name) {
			continue
		}
		obj.Set(f.Name, renderValue(f))
	}
	for _, e := range r.Expanded {
		obj.Set(e.Navigation, renderRecords(e.Records, e.Select))
	}
}

// renderValue renders collections in their wire shape: plain values as
// [{"value":v}] and labels as [{"key":k,"value":v}].
func renderValue(f catalog.Field) *jsontree.Node {
	switch v := f.Value.(type) {
	case nil:
		if f.Kind == catalog.KindValues || f.Kind == catalog.KindLabels {
			return jsontree.NewArray()
		}
		return jsontree.Null()
	case string:
		return jsontree.String(v)
	case bool:
		return jsontree.Bool(v)
	case int64:
		return jsontree.Int(v)
	case []string:
		arr := jsontree.NewArray()
		for _, s := range v {
			item := jsontree.NewObject()
			item.Set("value", jsontree.String(s))
			arr.Append(item)
		}
		return arr
	case []catalog.Label:
		arr := jsontree.NewArray()
		for _, l := range v {
			item := jsontree.NewObject()
			item.Set("key", jsontree.String(l.Key))
			item.Set("value", jsontree.String(l.Value))
			arr.Append(item)
		}
		return arr
	}
	return jsontree.Null()
}

// ServiceDocument lists the entity sets.
func ServiceDocument() *jsontree.Node {
	doc := jsontree.NewObject()
	doc.Set(AnnotationContext, jsontree.String("$metadata"))
	arr := jsontree.NewArray()
	for _, s := range catalog.EntitySets() {
		item := jsontree.NewObject()
		item.Set("name", jsontree.String(s.Name))
		item.Set("kind", jsontree.String("EntitySet"))
		item.Set("url", jsontree.String(s.Name))
		arr.Append(item)
	}
	doc.Set("value", arr)
	return doc
}

// Metadata describes entity sets, their properties and navigation
// properties in JSON.
func Metadata() *jsontree.Node {
	doc := jsontree.NewObject()
	doc.Set("$Version", jsontree.String("4.0"))
	sets := jsontree.NewArray()
	for _, s := range catalog.EntitySets() {
		set := jsontree.NewObject()
		set.Set("name", jsontree.String(s.Name))
		set.Set("entityType", jsontree.String("ORD."+s.EntityType))
		set.Set("key", jsontree.String("id"))

		props := jsontree.NewArray()
		for _, p := range s.Properties {
			prop := jsontree.NewObject()
			prop.Set("name", jsontree.String(p.Name))
			prop.Set("type", jsontree.String(p.Kind.EDMType()))
			prop.Set("nullable", jsontree.Bool(p.Nullable))
			props.Append(prop)
		}
		set.Set("properties", props)

		navs := jsontree.NewArray()
		for _, n := range s.Navigations {
			nav := jsontree.NewObject()
			nav.Set("name", jsontree.String(n.Name))
			nav.Set("target", jsontree.String(n.Target))
			nav.Set("collection", jsontree.Bool(true))
			navs.Append(nav)
		}
		set.Set("navigationProperties", navs)
		sets.Append(set)
	}
	doc.Set("entitySets", sets)
	return doc
}
