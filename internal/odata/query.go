package odata

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/ordcatalog/internal/catalog"
)

// System query option names.
const (
	OptionTop     = "$top"
	OptionSkip    = "$skip"
	OptionCount   = "$count"
	OptionSelect  = "$select"
	OptionOrderBy = "$orderby"
	OptionFilter  = "$filter"
	OptionExpand  = "$expand"
	OptionFormat  = "$format"
)

// ParseQuery reads the system query options of a request. Parameters not
// starting with '$' belong to other layers and are ignored.
func ParseQuery(values url.Values) (*catalog.Query, error) {
	q := &catalog.Query{}
	for name, vals := range values {
		if !strings.HasPrefix(name, "$") {
			continue
		}
		if len(vals) != 1 {
			return nil, badRequest("system query option %s must be given once", name)
		}
		if err := applyOption(q, name, vals[0], false); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// applyOption sets one option on q. Options inside $expand cannot use
// $count or $format.
func applyOption(q *catalog.Query, name, value string, nested bool) error {
	switch name {
	case OptionTop:
		n, err := parseNonNegative(name, value)
		if err != nil {
			return err
		}
		q.Top = &n
	case OptionSkip:
		n, err := parseNonNegative(name, value)
		if err != nil {
			return err
		}
		q.Skip = n
	case OptionSelect:
		sel, err := parseSelect(value)
		if err != nil {
			return err
		}
		q.Select = sel
	case OptionOrderBy:
		order, err := parseOrderBy(value)
		if err != nil {
			return err
		}
		q.OrderBy = order
	case OptionFilter:
		f, err := ParseFilter(value)
		if err != nil {
			return err
		}
		q.Filter = f
	case OptionExpand:
		expand, err := parseExpand(value)
		if err != nil {
			return err
		}
		q.Expand = expand
	case OptionCount:
		if nested {
			return badRequest("%s is not supported inside $expand", name)
		}
		b, err := strconv.ParseBool(value)
		if err != nil || (value != "true" && value != "false") {
			return badRequest("%s must be true or false", name)
		}
		q.Count = b
	case OptionFormat:
		if nested {
			return badRequest("%s is not supported inside $expand", name)
		}
		if value != "json" && value != "application/json" {
			return badRequest("unsupported %s %q", name, value)
		}
	default:
		return badRequest("unknown system query option %s", name)
	}
	return nil
}

func parseNonNegative(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, badRequest("%s must be a non-negative integer", name)
	}
	return n, nil
}

// parseSelect returns nil for "*".
func parseSelect(value string) ([]string, error) {
	if strings.TrimSpace(value) == "*" {
		return nil, nil
	}
	items := strings.Split(value, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			return nil, badRequest("empty item in $select")
		}
		out = append(out, item)
	}
	return out, nil
}

func parseOrderBy(value string) ([]catalog.Order, error) {
	items := strings.Split(value, ",")
	out := make([]catalog.Order, 0, len(items))
	for _, item := range items {
		fields := strings.Fields(item)
		switch {
		case len(fields) == 1:
			out = append(out, catalog.Order{Property: fields[0]})
		case len(fields) == 2 && fields[1] == "asc":
			out = append(out, catalog.Order{Property: fields[0]})
		case len(fields) == 2 && fields[1] == "desc":
			out = append(out, catalog.Order{Property: fields[0], Descending: true})
		default:
			return nil, badRequest("invalid $orderby item %q", strings.TrimSpace(item))
		}
	}
	return out, nil
}

// parseExpand reads "nav,nav2($select=a;$top=1)".
func parseExpand(value string) ([]catalog.Expand, error) {
	items, err := splitTopLevel(value, ',')
	if err != nil {
		return nil, err
	}

	out := make([]catalog.Expand, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			return nil, badRequest("empty item in $expand")
		}

		exp := catalog.Expand{Navigation: item}
		if open := strings.IndexByte(item, '('); open >= 0 {
			if !strings.HasSuffix(item, ")") {
				return nil, badRequest("invalid $expand item %q", item)
			}
			exp.Navigation = strings.TrimSpace(item[:open])
			if err := parseNestedOptions(&exp.Query, item[open+1:len(item)-1]); err != nil {
				return nil, err
			}
		}
		if exp.Navigation == "" || strings.ContainsAny(exp.Navigation, " ()") {
			return nil, badRequest("invalid $expand item %q", item)
		}
		out = append(out, exp)
	}
	return out, nil
}

func parseNestedOptions(q *catalog.Query, s string) error {
	opts, err := splitTopLevel(s, ';')
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(opts))
	for _, opt := range opts {
		name, value, ok := strings.Cut(strings.TrimSpace(opt), "=")
		if !ok || !strings.HasPrefix(name, "$") {
			return badRequest("invalid $expand option %q", opt)
		}
		if seen[name] {
			return badRequest("system query option %s must be given once", name)
		}
		seen[name] = true
		if err := applyOption(q, name, value, true); err != nil {
			return err
		}
	}
	return nil
}

// splitTopLevel splits s at sep outside parentheses and string literals.
func splitTopLevel(s string, sep byte) ([]string, error) {
	var (
		parts []string
		depth int
		quote bool
		start int
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'':
			quote = !quote
		case quote:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return nil, badRequest("unbalanced parentheses in %q", s)
			}
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if depth != 0 || quote {
		return nil, badRequest("unbalanced parentheses in %q", s)
	}
	return append(parts, s[start:]), nil
}
