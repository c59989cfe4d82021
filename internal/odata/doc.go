// Package odata serves the catalog store over a read-only OData v4 JSON
// surface: the service document, JSON metadata, entity set collections
// and single entities addressed by key, with the $top, $skip, $count,
// $select, $orderby, $filter, $expand and $format system query options.
package odata
