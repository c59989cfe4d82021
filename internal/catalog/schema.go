package catalog

import (
	"fmt"

	"gorm.io/gorm"
)

// Navigation describes a navigation property of an entity set.
type Navigation struct {
	// Name is the property name used in $expand.
	Name string
	// Target is the entity set the navigation leads to.
	Target string
	// association is the gorm field name used for preloading.
	association string
}

// EntitySet describes one served entity set.
type EntitySet struct {
	Name        string
	EntityType  string
	Properties  []Field
	Navigations []Navigation

	model func() any
	find  func(tx *gorm.DB) ([]Entity, error)
}

// Property returns the named property.
func (s *EntitySet) Property(name string) (Field, bool) {
	for _, p := range s.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Field{}, false
}

// Navigation returns the named navigation property.
func (s *EntitySet) Navigation(name string) (Navigation, bool) {
	for _, n := range s.Navigations {
		if n.Name == name {
			return n, true
		}
	}
	return Navigation{}, false
}

// column resolves a filterable or sortable property to its column.
func (s *EntitySet) column(name string) (Field, error) {
	p, ok := s.Property(name)
	if !ok {
		return Field{}, fmt.Errorf("%w: %q on %s", ErrUnknownProperty, name, s.Name)
	}
	if !p.Kind.Scalar() {
		return Field{}, fmt.Errorf("%w: %q on %s is a collection", ErrUnknownProperty, name, s.Name)
	}
	return p, nil
}

func newEntitySet[T any, PT interface {
	*T
	Entity
}](name, entityType string, navs ...Navigation) *EntitySet {
	props := PT(new(T)).Fields()
	for i := range props {
		props[i].Value = nil
	}
	return &EntitySet{
		Name:        name,
		EntityType:  entityType,
		Properties:  props,
		Navigations: navs,
		model:       func() any { return new(T) },
		find: func(tx *gorm.DB) ([]Entity, error) {
			var rows []T
			if err := tx.Find(&rows).Error; err != nil {
				return nil, err
			}
			return asEntities[T, PT](rows), nil
		},
	}
}

// Entity set names.
const (
	SetSystemInstances    = "systemInstances"
	SetPackages           = "packages"
	SetProducts           = "products"
	SetAPIs               = "apis"
	SetEvents             = "events"
	SetConsumptionBundles = "consumptionBundles"
	SetVendors            = "vendors"
)

//nolint:gochecknoglobals // immutable registry
var entitySets = []*EntitySet{
	newEntitySet[SystemInstance](SetSystemInstances, "SystemInstance",
		Navigation{Name: "packages", Target: SetPackages, association: "Packages"},
		Navigation{Name: "products", Target: SetProducts, association: "Products"},
		Navigation{Name: "apis", Target: SetAPIs, association: "APIs"},
		Navigation{Name: "events", Target: SetEvents, association: "Events"},
		Navigation{Name: "consumptionBundles", Target: SetConsumptionBundles, association: "ConsumptionBundles"},
	),
	newEntitySet[Package](SetPackages, "Package",
		Navigation{Name: "apis", Target: SetAPIs, association: "APIs"},
		Navigation{Name: "events", Target: SetEvents, association: "Events"},
	),
	newEntitySet[Product](SetProducts, "Product"),
	newEntitySet[API](SetAPIs, "API"),
	newEntitySet[Event](SetEvents, "Event"),
	newEntitySet[ConsumptionBundle](SetConsumptionBundles, "ConsumptionBundle",
		Navigation{Name: "apis", Target: SetAPIs, association: "APIs"},
		Navigation{Name: "events", Target: SetEvents, association: "Events"},
	),
	newEntitySet[Vendor](SetVendors, "Vendor"),
}

// EntitySets returns the served entity sets in service document order.
func EntitySets() []*EntitySet {
	return entitySets
}

// LookupEntitySet returns the entity set with the given name.
func LookupEntitySet(name string) (*EntitySet, error) {
	for _, s := range entitySets {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEntitySet, name)
}
