package catalog

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Operator is a comparison operator of a filter.
type Operator string

// Comparison operators.
const (
	OpEq Operator = "eq"
	OpNe Operator = "ne"
	OpGt Operator = "gt"
	OpGe Operator = "ge"
	OpLt Operator = "lt"
	OpLe Operator = "le"
)

// Filter is a boolean condition over the properties of an entity set.
type Filter interface {
	expression(set *EntitySet) (clause.Expression, error)
}

// Comparison compares a property with a literal. A nil Value is null.
type Comparison struct {
	Property string
	Op       Operator
	Value    any
}

// And holds when both sides hold.
type And struct {
	Left, Right Filter
}

// Or holds when either side holds.
type Or struct {
	Left, Right Filter
}

// Order sorts by one property.
type Order struct {
	Property   string
	Descending bool
}

// Expand loads a navigation property with its own options.
type Expand struct {
	Navigation string
	Query      Query
}

// Query holds the options of a read. Select is carried for rendering and
// does not narrow the loaded columns.
type Query struct {
	Filter  Filter
	OrderBy []Order
	// Top limits the result when not nil.
	Top    *int
	Skip   int
	Count  bool
	Select []string
	Expand []Expand
}

func (c Comparison) expression(set *EntitySet) (clause.Expression, error) {
	prop, err := set.column(c.Property)
	if err != nil {
		return nil, err
	}
	if err := checkLiteral(prop, c.Op, c.Value); err != nil {
		return nil, err
	}

	col := clause.Column{Table: clause.CurrentTable, Name: prop.Column}
	eq := clause.Eq{Column: col, Value: c.Value}
	switch c.Op {
	case OpEq:
		return eq, nil
	case OpNe:
		return clause.Neq(eq), nil
	case OpGt:
		return clause.Gt(eq), nil
	case OpGe:
		return clause.Gte(eq), nil
	case OpLt:
		return clause.Lt(eq), nil
	case OpLe:
		return clause.Lte(eq), nil
	}
	return nil, fmt.Errorf("%w: unknown operator %q", ErrInvalidFilter, c.Op)
}

func checkLiteral(prop Field, op Operator, value any) error {
	if value == nil {
		if op != OpEq && op != OpNe {
			return fmt.Errorf("%w: null only compares with eq or ne", ErrInvalidFilter)
		}
		return nil
	}

	var ok bool
	switch prop.Kind {
	case KindString:
		_, ok = value.(string)
	case KindBool:
		_, ok = value.(bool)
		if ok && op != OpEq && op != OpNe {
			return fmt.Errorf("%w: %q is boolean and only compares with eq or ne", ErrInvalidFilter, prop.Name)
		}
	case KindInt:
		_, ok = value.(int64)
	}
	if !ok {
		return fmt.Errorf("%w: %q is %s, got %T", ErrInvalidFilter, prop.Name, prop.Kind.EDMType(), value)
	}
	return nil
}

func (a And) expression(set *EntitySet) (clause.Expression, error) {
	left, right, err := binary(set, a.Left, a.Right)
	if err != nil {
		return nil, err
	}
	return clause.AndConditions{Exprs: []clause.Expression{left, right}}, nil
}

func (o Or) expression(set *EntitySet) (clause.Expression, error) {
	left, right, err := binary(set, o.Left, o.Right)
	if err != nil {
		return nil, err
	}
	return clause.OrConditions{Exprs: []clause.Expression{left, right}}, nil
}

func binary(set *EntitySet, l, r Filter) (clause.Expression, clause.Expression, error) {
	if l == nil || r == nil {
		return nil, nil, fmt.Errorf("%w: missing operand", ErrInvalidFilter)
	}
	left, err := l.expression(set)
	if err != nil {
		return nil, nil, err
	}
	right, err := r.expression(set)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

// where applies the tenant and filter of q to tx.
func (q *Query) where(tx *gorm.DB, set *EntitySet, tenant string) (*gorm.DB, error) {
	tx = tx.Where(clause.Eq{
		Column: clause.Column{Table: clause.CurrentTable, Name: "tenant_id"},
		Value:  tenant,
	})

	if q.Filter != nil {
		expr, err := q.Filter.expression(set)
		if err != nil {
			return nil, err
		}
		tx = tx.Where(expr)
	}
	return tx, nil
}

// order applies $orderby followed by the primary key so paging is stable.
func (q *Query) order(tx *gorm.DB, set *EntitySet) (*gorm.DB, error) {
	columns := make([]clause.OrderByColumn, 0, len(q.OrderBy)+1)
	for _, o := range q.OrderBy {
		prop, err := set.column(o.Property)
		if err != nil {
			return nil, err
		}
		columns = append(columns, clause.OrderByColumn{
			Column: clause.Column{Table: clause.CurrentTable, Name: prop.Column},
			Desc:   o.Descending,
		})
	}
	columns = append(columns, clause.OrderByColumn{
		Column: clause.Column{Table: clause.CurrentTable, Name: "id"},
	})
	return tx.Order(clause.OrderBy{Columns: columns}), nil
}

// validate checks q against set without touching the database, including
// every nested expansion.
func (q *Query) validate(set *EntitySet) error {
	if q.Filter != nil {
		if _, err := q.Filter.expression(set); err != nil {
			return err
		}
	}
	for _, o := range q.OrderBy {
		if _, err := set.column(o.Property); err != nil {
			return err
		}
	}
	if q.Skip < 0 || (q.Top != nil && *q.Top < 0) {
		return fmt.Errorf("%w: $skip and $top must not be negative", ErrInvalidPaging)
	}
	for _, name := range q.Select {
		if _, ok := set.Property(name); !ok {
			return fmt.Errorf("%w: %q on %s", ErrUnknownProperty, name, set.Name)
		}
	}
	for _, e := range q.Expand {
		nav, ok := set.Navigation(e.Navigation)
		if !ok {
			return fmt.Errorf("%w: %q on %s", ErrUnknownNavigation, e.Navigation, set.Name)
		}
		target, err := LookupEntitySet(nav.Target)
		if err != nil {
			return err
		}
		if err := e.Query.validate(target); err != nil {
			return err
		}
	}
	return nil
}

// Validate reports whether q can be executed against the named set.
func (q *Query) Validate(setName string) error {
	set, err := LookupEntitySet(setName)
	if err != nil {
		return err
	}
	return q.validate(set)
}

// window applies skip and top to an already ordered slice.
func window[T any](items []T, skip int, top *int) []T {
	if skip >= len(items) {
		return items[:0]
	}
	items = items[skip:]
	if top != nil && *top < len(items) {
		items = items[:*top]
	}
	return items
}
