package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vyrodovalexey/ordcatalog/internal/observability"
)

var storeTracer = otel.Tracer("ordcatalog/catalog")

// Record is an entity together with its expanded navigation properties.
type Record struct {
	Entity   Entity
	Expanded []Expansion
}

// Expansion is the loaded content of one expanded navigation property.
type Expansion struct {
	Navigation string
	Select     []string
	Records    []*Record
}

// Result is the outcome of a collection read.
type Result struct {
	Records []*Record
	// Count is the number of matching entities before paging, set when
	// the query asked for it.
	Count *int64
}

// Store executes catalog reads against the database.
type Store struct {
	db      *gorm.DB
	logger  observability.Logger
	metrics *observability.Metrics
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger of the store.
func WithStoreLogger(logger observability.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithStoreMetrics records query durations on m.
func WithStoreMetrics(m *observability.Metrics) StoreOption {
	return func(s *Store) {
		s.metrics = m
	}
}

// NewStore creates a store on db.
func NewStore(db *gorm.DB, opts ...StoreOption) *Store {
	s := &Store{
		db:     db,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying gorm handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// List returns the entities of a set visible to tenant.
func (s *Store) List(ctx context.Context, tenant, setName string, q *Query) (result *Result, err error) {
	if q == nil {
		q = &Query{}
	}
	set, err := s.prepare(tenant, setName, q)
	if err != nil {
		return nil, err
	}

	ctx, span := s.startSpan(ctx, "catalog.list", set, tenant)
	defer s.finish(span, set, time.Now(), &err)

	base, err := q.where(s.db.WithContext(ctx).Model(set.model()), set, tenant)
	if err != nil {
		return nil, err
	}
	base = base.Session(&gorm.Session{})

	result = &Result{}
	if q.Count {
		var n int64
		if err := base.Count(&n).Error; err != nil {
			return nil, fmt.Errorf("count %s: %w", set.Name, err)
		}
		result.Count = &n
	}

	tx, err := q.order(base, set)
	if err != nil {
		return nil, err
	}
	if q.Skip > 0 {
		tx = tx.Offset(q.Skip)
	}
	if q.Top != nil {
		tx = tx.Limit(*q.Top)
	}
	tx = preload(tx, set, tenant, "", q.Expand)

	entities, err := set.find(tx)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", set.Name, err)
	}

	span.SetAttributes(attribute.Int("catalog.results", len(entities)))
	result.Records = buildRecords(entities, q.Expand)
	return result, nil
}

// Get returns one entity of a set by key.
func (s *Store) Get(ctx context.Context, tenant, setName, key string, q *Query) (record *Record, err error) {
	if q == nil {
		q = &Query{}
	}
	set, err := s.prepare(tenant, setName, q)
	if err != nil {
		return nil, err
	}

	ctx, span := s.startSpan(ctx, "catalog.get", set, tenant)
	defer s.finish(span, set, time.Now(), &err)

	tx, err := q.where(s.db.WithContext(ctx).Model(set.model()), set, tenant)
	if err != nil {
		return nil, err
	}
	tx = tx.Where(clause.Eq{
		Column: clause.Column{Table: clause.CurrentTable, Name: "id"},
		Value:  key,
	}).Limit(1)
	tx = preload(tx, set, tenant, "", q.Expand)

	entities, err := set.find(tx)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", set.Name, err)
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: %s(%s)", ErrNotFound, set.Name, key)
	}
	return buildRecords(entities, q.Expand)[0], nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) prepare(tenant, setName string, q *Query) (*EntitySet, error) {
	if tenant == "" {
		return nil, ErrTenantRequired
	}
	set, err := LookupEntitySet(setName)
	if err != nil {
		return nil, err
	}
	if err := q.validate(set); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *Store) startSpan(ctx context.Context, name string, set *EntitySet, tenant string) (context.Context, trace.Span) {
	return storeTracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("catalog.entity_set", set.Name),
			attribute.String("catalog.tenant", tenant),
		),
	)
}

func (s *Store) finish(span trace.Span, set *EntitySet, start time.Time, errp *error) {
	err := *errp
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("catalog query failed",
			observability.String("entity_set", set.Name),
			observability.Error(err))
	}
	if s.metrics != nil {
		if errors.Is(err, ErrNotFound) {
			err = nil
		}
		s.metrics.RecordStoreQuery(set.Name, err, time.Since(start))
	}
	span.End()
}

// preload registers the expansions of a query, nested ones by path. The
// options were validated before.
func preload(tx *gorm.DB, set *EntitySet, tenant, prefix string, expands []Expand) *gorm.DB {
	for _, e := range expands {
		nav, ok := set.Navigation(e.Navigation)
		if !ok {
			continue
		}
		target, err := LookupEntitySet(nav.Target)
		if err != nil {
			continue
		}

		path := nav.association
		if prefix != "" {
			path = prefix + "." + path
		}

		sub := e.Query
		tx = tx.Preload(path, func(db *gorm.DB) *gorm.DB {
			scoped, err := sub.where(db, target, tenant)
			if err != nil {
				_ = db.AddError(err)
				return db
			}
			ordered, err := sub.order(scoped, target)
			if err != nil {
				_ = db.AddError(err)
				return scoped
			}
			return ordered
		})
		tx = preload(tx, target, tenant, path, sub.Expand)
	}
	return tx
}

// buildRecords pairs entities with their expansions. Expanded
// collections are paged here because paging applies per parent.
func buildRecords(entities []Entity, expands []Expand) []*Record {
	records := make([]*Record, len(entities))
	for i, entity := range entities {
		r := &Record{Entity: entity}
		for _, e := range expands {
			related := window(entity.Related(e.Navigation), e.Query.Skip, e.Query.Top)
			r.Expanded = append(r.Expanded, Expansion{
				Navigation: e.Navigation,
				Select:     e.Query.Select,
				Records:    buildRecords(related, e.Query.Expand),
			})
		}
		records[i] = r
	}
	return records
}
