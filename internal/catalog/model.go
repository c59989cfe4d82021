package catalog

import (
	"time"

	"gorm.io/datatypes"
)

// Label is one key/value pair of an entity's labels.
type Label struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Base carries the columns every catalog entity has.
type Base struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	TenantID  string    `gorm:"type:varchar(255);not null;index" json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Key returns the primary key of the entity.
func (b *Base) Key() string { return b.ID }

// SystemInstance is a running system that exposes ORD resources.
type SystemInstance struct {
	Base
	Title        string                      `gorm:"type:varchar(255);not null" json:"title"`
	Description  *string                     `gorm:"type:text" json:"description,omitempty"`
	BaseURL      *string                     `gorm:"type:varchar(512)" json:"baseUrl,omitempty"`
	SystemNumber *string                     `gorm:"type:varchar(255)" json:"systemNumber,omitempty"`
	ProductType  *string                     `gorm:"type:varchar(255)" json:"productType,omitempty"`
	Tags         datatypes.JSONSlice[string] `json:"tags,omitempty"`
	Labels       datatypes.JSONSlice[Label]  `json:"labels,omitempty"`

	Packages           []Package           `gorm:"foreignKey:SystemInstanceID" json:"-"`
	Products           []Product           `gorm:"foreignKey:SystemInstanceID" json:"-"`
	APIs               []API               `gorm:"foreignKey:SystemInstanceID" json:"-"`
	Events             []Event             `gorm:"foreignKey:SystemInstanceID" json:"-"`
	ConsumptionBundles []ConsumptionBundle `gorm:"foreignKey:SystemInstanceID" json:"-"`
}

// TableName implements gorm's tabler.
func (SystemInstance) TableName() string { return "system_instances" }

// Package groups APIs and events for publishing.
type Package struct {
	Base
	SystemInstanceID *string                     `gorm:"type:varchar(64);index" json:"systemInstanceId,omitempty"`
	OrdID            string                      `gorm:"type:varchar(255);not null;index" json:"ordId"`
	Title            string                      `gorm:"type:varchar(255);not null" json:"title"`
	ShortDescription *string                     `gorm:"type:varchar(255)" json:"shortDescription,omitempty"`
	Description      *string                     `gorm:"type:text" json:"description,omitempty"`
	Version          string                      `gorm:"type:varchar(64)" json:"version"`
	Vendor           *string                     `gorm:"type:varchar(255)" json:"vendor,omitempty"`
	Tags             datatypes.JSONSlice[string] `json:"tags,omitempty"`
	Countries        datatypes.JSONSlice[string] `json:"countries,omitempty"`
	LineOfBusiness   datatypes.JSONSlice[string] `json:"lineOfBusiness,omitempty"`
	Industry         datatypes.JSONSlice[string] `json:"industry,omitempty"`
	Labels           datatypes.JSONSlice[Label]  `json:"labels,omitempty"`

	APIs   []API   `gorm:"foreignKey:PackageID" json:"-"`
	Events []Event `gorm:"foreignKey:PackageID" json:"-"`
}

// TableName implements gorm's tabler.
func (Package) TableName() string { return "packages" }

// Product is a commercial product resources belong to.
type Product struct {
	Base
	SystemInstanceID *string                     `gorm:"type:varchar(64);index" json:"systemInstanceId,omitempty"`
	OrdID            string                      `gorm:"type:varchar(255);not null;index" json:"ordId"`
	Title            string                      `gorm:"type:varchar(255);not null" json:"title"`
	ShortDescription *string                     `gorm:"type:varchar(255)" json:"shortDescription,omitempty"`
	Description      *string                     `gorm:"type:text" json:"description,omitempty"`
	Vendor           string                      `gorm:"type:varchar(255)" json:"vendor"`
	Parent           *string                     `gorm:"type:varchar(255)" json:"parent,omitempty"`
	Tags             datatypes.JSONSlice[string] `json:"tags,omitempty"`
	Labels           datatypes.JSONSlice[Label]  `json:"labels,omitempty"`
}

// TableName implements gorm's tabler.
func (Product) TableName() string { return "products" }

// API is an API resource definition.
type API struct {
	Base
	SystemInstanceID *string                     `gorm:"type:varchar(64);index" json:"systemInstanceId,omitempty"`
	PackageID        *string                     `gorm:"type:varchar(64);index" json:"packageId,omitempty"`
	OrdID            string                      `gorm:"type:varchar(255);not null;index" json:"ordId"`
	Title            string                      `gorm:"type:varchar(255);not null" json:"title"`
	ShortDescription *string                     `gorm:"type:varchar(255)" json:"shortDescription,omitempty"`
	Description      *string                     `gorm:"type:text" json:"description,omitempty"`
	Version          string                      `gorm:"type:varchar(64)" json:"version"`
	APIProtocol      string                      `gorm:"type:varchar(64)" json:"apiProtocol"`
	Visibility       string                      `gorm:"type:varchar(32)" json:"visibility"`
	ReleaseStatus    string                      `gorm:"type:varchar(32)" json:"releaseStatus"`
	Disabled         bool                        `json:"disabled"`
	Tags             datatypes.JSONSlice[string] `json:"tags,omitempty"`
	Countries        datatypes.JSONSlice[string] `json:"countries,omitempty"`
	LineOfBusiness   datatypes.JSONSlice[string] `json:"lineOfBusiness,omitempty"`
	Industry         datatypes.JSONSlice[string] `json:"industry,omitempty"`
	Labels           datatypes.JSONSlice[Label]  `json:"labels,omitempty"`
}

// TableName implements gorm's tabler.
func (API) TableName() string { return "apis" }

// Event is an event resource definition.
type Event struct {
	Base
	SystemInstanceID *string                     `gorm:"type:varchar(64);index" json:"systemInstanceId,omitempty"`
	PackageID        *string                     `gorm:"type:varchar(64);index" json:"packageId,omitempty"`
	OrdID            string                      `gorm:"type:varchar(255);not null;index" json:"ordId"`
	Title            string                      `gorm:"type:varchar(255);not null" json:"title"`
	ShortDescription *string                     `gorm:"type:varchar(255)" json:"shortDescription,omitempty"`
	Description      *string                     `gorm:"type:text" json:"description,omitempty"`
	Version          string                      `gorm:"type:varchar(64)" json:"version"`
	Visibility       string                      `gorm:"type:varchar(32)" json:"visibility"`
	ReleaseStatus    string                      `gorm:"type:varchar(32)" json:"releaseStatus"`
	Disabled         bool                        `json:"disabled"`
	Tags             datatypes.JSONSlice[string] `json:"tags,omitempty"`
	Countries        datatypes.JSONSlice[string] `json:"countries,omitempty"`
	LineOfBusiness   datatypes.JSONSlice[string] `json:"lineOfBusiness,omitempty"`
	Industry         datatypes.JSONSlice[string] `json:"industry,omitempty"`
	Labels           datatypes.JSONSlice[Label]  `json:"labels,omitempty"`
}

// TableName implements gorm's tabler.
func (Event) TableName() string { return "events" }

// ConsumptionBundle groups APIs and events that share credentials.
type ConsumptionBundle struct {
	Base
	SystemInstanceID *string                     `gorm:"type:varchar(64);index" json:"systemInstanceId,omitempty"`
	OrdID            string                      `gorm:"type:varchar(255);not null;index" json:"ordId"`
	Title            string                      `gorm:"type:varchar(255);not null" json:"title"`
	ShortDescription *string                     `gorm:"type:varchar(255)" json:"shortDescription,omitempty"`
	Description      *string                     `gorm:"type:text" json:"description,omitempty"`
	Version          string                      `gorm:"type:varchar(64)" json:"version"`
	Tags             datatypes.JSONSlice[string] `json:"tags,omitempty"`
	Labels           datatypes.JSONSlice[Label]  `json:"labels,omitempty"`

	APIs   []API   `gorm:"many2many:bundle_apis" json:"-"`
	Events []Event `gorm:"many2many:bundle_events" json:"-"`
}

// TableName implements gorm's tabler.
func (ConsumptionBundle) TableName() string { return "consumption_bundles" }

// Vendor is the owner of products and packages.
type Vendor struct {
	Base
	OrdID    string                      `gorm:"type:varchar(255);not null;index" json:"ordId"`
	Title    string                      `gorm:"type:varchar(255);not null" json:"title"`
	Partners datatypes.JSONSlice[string] `json:"partners,omitempty"`
	Tags     datatypes.JSONSlice[string] `json:"tags,omitempty"`
	Labels   datatypes.JSONSlice[Label]  `json:"labels,omitempty"`
}

// TableName implements gorm's tabler.
func (Vendor) TableName() string { return "vendors" }

// Models lists every table for migrations.
func Models() []any {
	return []any{
		&SystemInstance{},
		&Package{},
		&Product{},
		&API{},
		&Event{},
		&ConsumptionBundle{},
		&Vendor{},
	}
}
