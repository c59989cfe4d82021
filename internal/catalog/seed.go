package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

// SeedDocument is the JSON document loaded into an empty store.
type SeedDocument struct {
	Tenants []SeedTenant `json:"tenants"`
}

// SeedTenant holds the catalog of one tenant. Relations are expressed by
// id: packages, APIs, events, products and bundles name their system
// instance, APIs and events their package, bundles their members.
type SeedTenant struct {
	ID                 string           `json:"id"`
	Vendors            []Vendor         `json:"vendors,omitempty"`
	SystemInstances    []SystemInstance `json:"systemInstances,omitempty"`
	Products           []Product        `json:"products,omitempty"`
	Packages           []Package        `json:"packages,omitempty"`
	APIs               []API            `json:"apis,omitempty"`
	Events             []Event          `json:"events,omitempty"`
	ConsumptionBundles []SeedBundle     `json:"consumptionBundles,omitempty"`
}

// SeedBundle is a consumption bundle with the ids of its members.
type SeedBundle struct {
	ConsumptionBundle
	APIIDs   []string `json:"apiIds,omitempty"`
	EventIDs []string `json:"eventIds,omitempty"`
}

// LoadSeedFile reads a seed document from path.
func LoadSeedFile(path string) (*SeedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes a seed document.
func ParseSeed(data []byte) (*SeedDocument, error) {
	var doc SeedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	for i, t := range doc.Tenants {
		if t.ID == "" {
			return nil, fmt.Errorf("%w: tenants[%d] has no id", ErrInvalidSeed, i)
		}
	}
	return &doc, nil
}

// Seed stores the catalog of every tenant in doc. A tenant that already
// has system instances or vendors is skipped, so seeding twice is
// harmless. Each tenant is written in its own transaction.
func (s *Store) Seed(ctx context.Context, doc *SeedDocument) error {
	if doc == nil {
		return nil
	}
	for i := range doc.Tenants {
		t := &doc.Tenants[i]

		seeded, err := s.hasData(ctx, t.ID)
		if err != nil {
			return err
		}
		if seeded {
			s.logger.Info("tenant already seeded, skipping", observability.String("tenant", t.ID))
			continue
		}

		if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return seedTenant(tx, t)
		}); err != nil {
			return fmt.Errorf("failed to seed tenant %s: %w", t.ID, err)
		}

		s.logger.Info("tenant seeded",
			observability.String("tenant", t.ID),
			observability.Int("system_instances", len(t.SystemInstances)),
			observability.Int("packages", len(t.Packages)),
			observability.Int("apis", len(t.APIs)),
			observability.Int("events", len(t.Events)),
			observability.Int("consumption_bundles", len(t.ConsumptionBundles)),
		)
	}
	return nil
}

func (s *Store) hasData(ctx context.Context, tenant string) (bool, error) {
	for _, model := range []any{&SystemInstance{}, &Vendor{}} {
		var n int64
		if err := s.db.WithContext(ctx).Model(model).Where("tenant_id = ?", tenant).Count(&n).Error; err != nil {
			return false, fmt.Errorf("failed to inspect tenant %s: %w", tenant, err)
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

func seedTenant(tx *gorm.DB, t *SeedTenant) error {
	for i := range t.Vendors {
		assign(&t.Vendors[i].Base, t.ID)
	}
	for i := range t.SystemInstances {
		assign(&t.SystemInstances[i].Base, t.ID)
	}
	for i := range t.Products {
		assign(&t.Products[i].Base, t.ID)
	}
	for i := range t.Packages {
		assign(&t.Packages[i].Base, t.ID)
	}
	for i := range t.APIs {
		assign(&t.APIs[i].Base, t.ID)
	}
	for i := range t.Events {
		assign(&t.Events[i].Base, t.ID)
	}

	if err := create(tx, t.Vendors); err != nil {
		return err
	}
	if err := create(tx, t.SystemInstances); err != nil {
		return err
	}
	if err := create(tx, t.Products); err != nil {
		return err
	}
	if err := create(tx, t.Packages); err != nil {
		return err
	}
	if err := create(tx, t.APIs); err != nil {
		return err
	}
	if err := create(tx, t.Events); err != nil {
		return err
	}

	for i := range t.ConsumptionBundles {
		sb := &t.ConsumptionBundles[i]
		bundle := sb.ConsumptionBundle
		assign(&bundle.Base, t.ID)
		for _, id := range sb.APIIDs {
			bundle.APIs = append(bundle.APIs, API{Base: Base{ID: id}})
		}
		for _, id := range sb.EventIDs {
			bundle.Events = append(bundle.Events, Event{Base: Base{ID: id}})
		}
		// Members exist already; only the join rows are written.
		if err := tx.Omit("APIs.*", "Events.*").Create(&bundle).Error; err != nil {
			return fmt.Errorf("consumption bundle %s: %w", bundle.ID, err)
		}
	}
	return nil
}

func assign(b *Base, tenant string) {
	b.TenantID = tenant
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
}

func create[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	if err := tx.Create(&rows).Error; err != nil {
		var zero T
		return fmt.Errorf("%T: %w", zero, err)
	}
	return nil
}
