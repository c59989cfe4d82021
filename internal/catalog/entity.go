package catalog

// Kind is the type of an entity property.
type Kind int

// Property kinds.
const (
	KindString Kind = iota
	KindBool
	KindInt
	// KindValues is a collection rendered as [{"value":"x"}].
	KindValues
	// KindLabels is a collection rendered as [{"key":"k","value":"v"}].
	KindLabels
)

// EDMType returns the OData type name of k.
func (k Kind) EDMType() string {
	switch k {
	case KindBool:
		return "Edm.Boolean"
	case KindInt:
		return "Edm.Int64"
	case KindValues:
		return "Collection(ORD.Value)"
	case KindLabels:
		return "Collection(ORD.Label)"
	default:
		return "Edm.String"
	}
}

// Scalar reports whether properties of kind k can be filtered and sorted.
func (k Kind) Scalar() bool {
	return k == KindString || k == KindBool || k == KindInt
}

// Field is one property of an entity together with its value.
type Field struct {
	Name     string
	Column   string
	Kind     Kind
	Nullable bool
	Value    any
}

// Entity is a stored catalog resource.
type Entity interface {
	Key() string
	// Fields returns the properties in rendering order.
	Fields() []Field
	// Related returns the loaded entities behind a navigation property.
	Related(navigation string) []Entity
}

func stringField(name, column, v string) Field {
	return Field{Name: name, Column: column, Kind: KindString, Value: v}
}

func optionalField(name, column string, v *string) Field {
	f := Field{Name: name, Column: column, Kind: KindString, Nullable: true}
	if v != nil {
		f.Value = *v
	}
	return f
}

func boolField(name, column string, v bool) Field {
	return Field{Name: name, Column: column, Kind: KindBool, Value: v}
}

func valuesField(name, column string, v []string) Field {
	return Field{Name: name, Column: column, Kind: KindValues, Value: v}
}

func labelsField(v []Label) Field {
	return Field{Name: "labels", Column: "labels", Kind: KindLabels, Value: v}
}

func idField(b *Base) Field {
	return stringField("id", "id", b.ID)
}

func asEntities[T any, PT interface {
	*T
	Entity
}](rows []T) []Entity {
	out := make([]Entity, len(rows))
	for i := range rows {
		out[i] = PT(&rows[i])
	}
	return out
}

// Fields implements Entity.
func (s *SystemInstance) Fields() []Field {
	return []Field{
		idField(&s.Base),
		stringField("title", "title", s.Title),
		optionalField("description", "description", s.Description),
		optionalField("baseUrl", "base_url", s.BaseURL),
		optionalField("systemNumber", "system_number", s.SystemNumber),
		optionalField("productType", "product_type", s.ProductType),
		valuesField("tags", "tags", s.Tags),
		labelsField(s.Labels),
	}
}

// Related implements Entity.
func (s *SystemInstance) Related(navigation string) []Entity {
	switch navigation {
	case "packages":
		return asEntities(s.Packages)
	case "products":
		return asEntities(s.Products)
	case "apis":
		return asEntities(s.APIs)
	case "events":
		return asEntities(s.Events)
	case "consumptionBundles":
		return asEntities(s.ConsumptionBundles)
	}
	return nil
}

// Fields implements Entity.
func (p *Package) Fields() []Field {
	return []Field{
		idField(&p.Base),
		stringField("ordId", "ord_id", p.OrdID),
		stringField("title", "title", p.Title),
		optionalField("shortDescription", "short_description", p.ShortDescription),
		optionalField("description", "description", p.Description),
		stringField("version", "version", p.Version),
		optionalField("vendor", "vendor", p.Vendor),
		valuesField("tags", "tags", p.Tags),
		valuesField("countries", "countries", p.Countries),
		valuesField("lineOfBusiness", "line_of_business", p.LineOfBusiness),
		valuesField("industry", "industry", p.Industry),
		labelsField(p.Labels),
	}
}

// Related implements Entity.
func (p *Package) Related(navigation string) []Entity {
	switch navigation {
	case "apis":
		return asEntities(p.APIs)
	case "events":
		return asEntities(p.Events)
	}
	return nil
}

// Fields implements Entity.
func (p *Product) Fields() []Field {
	return []Field{
		idField(&p.Base),
		stringField("ordId", "ord_id", p.OrdID),
		stringField("title", "title", p.Title),
		optionalField("shortDescription", "short_description", p.ShortDescription),
		optionalField("description", "description", p.Description),
		stringField("vendor", "vendor", p.Vendor),
		optionalField("parent", "parent", p.Parent),
		valuesField("tags", "tags", p.Tags),
		labelsField(p.Labels),
	}
}

// Related implements Entity.
func (p *Product) Related(string) []Entity { return nil }

// Fields implements Entity.
func (a *API) Fields() []Field {
	return []Field{
		idField(&a.Base),
		stringField("ordId", "ord_id", a.OrdID),
		stringField("title", "title", a.Title),
		optionalField("shortDescription", "short_description", a.ShortDescription),
		optionalField("description", "description", a.Description),
		stringField("version", "version", a.Version),
		stringField("apiProtocol", "api_protocol", a.APIProtocol),
		stringField("visibility", "visibility", a.Visibility),
		stringField("releaseStatus", "release_status", a.ReleaseStatus),
		boolField("disabled", "disabled", a.Disabled),
		valuesField("tags", "tags", a.Tags),
		valuesField("countries", "countries", a.Countries),
		valuesField("lineOfBusiness", "line_of_business", a.LineOfBusiness),
		valuesField("industry", "industry", a.Industry),
		labelsField(a.Labels),
	}
}

// Related implements Entity.
func (a *API) Related(string) []Entity { return nil }

// Fields implements Entity.
func (e *Event) Fields() []Field {
	return []Field{
		idField(&e.Base),
		stringField("ordId", "ord_id", e.OrdID),
		stringField("title", "title", e.Title),
		optionalField("shortDescription", "short_description", e.ShortDescription),
		optionalField("description", "description", e.Description),
		stringField("version", "version", e.Version),
		stringField("visibility", "visibility", e.Visibility),
		stringField("releaseStatus", "release_status", e.ReleaseStatus),
		boolField("disabled", "disabled", e.Disabled),
		valuesField("tags", "tags", e.Tags),
		valuesField("countries", "countries", e.Countries),
		valuesField("lineOfBusiness", "line_of_business", e.LineOfBusiness),
		valuesField("industry", "industry", e.Industry),
		labelsField(e.Labels),
	}
}

// Related implements Entity.
func (e *Event) Related(string) []Entity { return nil }

// Fields implements Entity.
func (b *ConsumptionBundle) Fields() []Field {
	return []Field{
		idField(&b.Base),
		stringField("ordId", "ord_id", b.OrdID),
		stringField("title", "title", b.Title),
		optionalField("shortDescription", "short_description", b.ShortDescription),
		optionalField("description", "description", b.Description),
		stringField("version", "version", b.Version),
		valuesField("tags", "tags", b.Tags),
		labelsField(b.Labels),
	}
}

// Related implements Entity.
func (b *ConsumptionBundle) Related(navigation string) []Entity {
	switch navigation {
	case "apis":
		return asEntities(b.APIs)
	case "events":
		return asEntities(b.Events)
	}
	return nil
}

// Fields implements Entity.
func (v *Vendor) Fields() []Field {
	return []Field{
		idField(&v.Base),
		stringField("ordId", "ord_id", v.OrdID),
		stringField("title", "title", v.Title),
		valuesField("partners", "partners", v.Partners),
		valuesField("tags", "tags", v.Tags),
		labelsField(v.Labels),
	}
}

// Related implements Entity.
func (v *Vendor) Related(string) []Entity { return nil }
