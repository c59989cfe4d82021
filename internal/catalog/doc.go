// Package catalog holds the tenant scoped ORD entity model, its gorm
// persistence and the query execution behind the OData handlers.
//
// Entities are stored in one table per entity set. Collection properties
// (tags, countries, lineOfBusiness, industry, labels) are JSON columns.
// Navigation between sets uses has-many foreign keys, and many-to-many
// join tables for consumption bundles.
package catalog
