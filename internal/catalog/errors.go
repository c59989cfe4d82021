package catalog

import "errors"

// Sentinel errors returned by the store.
var (
	// ErrNotFound is returned when an entity does not exist for the tenant.
	ErrNotFound = errors.New("entity not found")

	// ErrUnknownEntitySet is returned for a set name that is not served.
	ErrUnknownEntitySet = errors.New("unknown entity set")

	// ErrUnknownProperty is returned when a query names a property the
	// entity set does not have or cannot filter or sort on.
	ErrUnknownProperty = errors.New("unknown property")

	// ErrUnknownNavigation is returned for an unknown $expand target.
	ErrUnknownNavigation = errors.New("unknown navigation property")

	// ErrInvalidFilter is returned when a filter compares incompatible values.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrInvalidPaging is returned for negative $skip or $top.
	ErrInvalidPaging = errors.New("invalid paging")

	// ErrTenantRequired is returned when a query carries no tenant.
	ErrTenantRequired = errors.New("tenant is required")

	// ErrUnsupportedDriver is returned by Open for an unknown driver.
	ErrUnsupportedDriver = errors.New("unsupported database driver")

	// ErrInvalidSeed is returned for a seed document that cannot be loaded.
	ErrInvalidSeed = errors.New("invalid seed document")
)
