package query

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Reserved query parameter names consumed by the translator itself.
const (
	ParamSelect   = "select"
	ParamSort     = "sort"
	ParamPage     = "page"
	ParamPageSize = "pageSize"
)

// Projection maps a field to 1 (include) or 0 (exclude).
type Projection map[string]int

// SortField orders results by one field.
type SortField struct {
	Field string
	Desc  bool
}

// Paging holds the window of a paged lookup.
type Paging struct {
	Page     int64
	PageSize int64
	Limit    int64
	Skip     int64
}

// Query is the store independent form of a lookup.
type Query struct {
	Filter     Expr
	Projection Projection
	Sort       []SortField
	Paging     *Paging

	// Err holds the parse failure that forced Filter to None.
	Err error
}

// Translate builds a Query from path parameters and a raw query string.
// Path parameters become equality clauses ("id" targets the identifier field).
// reserved names further query keys handled by the caller.
// A malformed filter does not fail the call: the filter becomes None.
func Translate(path map[string]string, rawQuery string, reserved ...string) Query {
	q := Query{Filter: All()}

	skip := map[string]struct{}{
		ParamSelect:   {},
		ParamSort:     {},
		ParamPage:     {},
		ParamPageSize: {},
	}
	for _, r := range reserved {
		skip[r] = struct{}{}
	}

	conds := make([]Expr, 0, len(path)+1)

	for name, value := range path {
		field, err := Field(name)
		if err != nil {
			return failed(q, err)
		}

		conds = append(conds, Eq(field, value))
	}

	filter, err := ParseFilter(rawQuery, skip)
	if err != nil {
		return failed(q, err)
	}

	q.Filter = Conj(append(conds, filter)...)

	// ParseQuery keeps every valid pair even when it reports an error
	values, _ := url.ParseQuery(rawQuery) //nolint:errcheck

	if q.Projection, err = parseProjection(values.Get(ParamSelect)); err != nil {
		return failed(q, err)
	}

	if q.Sort, err = ParseSort(values.Get(ParamSort)); err != nil {
		return failed(q, err)
	}

	q.Paging = parsePaging(values.Get(ParamPage), values.Get(ParamPageSize))

	return q
}

func failed(q Query, err error) Query {
	q.Filter = None{}
	q.Err = err

	return q
}

func parseProjection(s string) (Projection, error) {
	if s == "" {
		return nil, nil //nolint:nilnil
	}

	p := Projection{}
	include, exclude := false, false

	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		flag := 1
		if strings.HasPrefix(item, "-") {
			flag, item = 0, item[1:]
		}

		field, err := Field(item)
		if err != nil {
			return nil, err
		}

		p[field] = flag

		if field == IDField {
			continue
		}

		if flag == 1 {
			include = true
		} else {
			exclude = true
		}
	}

	if include && exclude {
		return nil, ErrInvalidProjection
	}

	return p, nil
}

// ParseSort parses "-name,category" into sort fields.
func ParseSort(s string) ([]SortField, error) {
	if s == "" {
		return nil, nil
	}

	var out []SortField

	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		desc := false

		switch {
		case strings.HasPrefix(item, "-"):
			desc, item = true, item[1:]
		case strings.HasPrefix(item, "+"):
			item = item[1:]
		}

		field, err := Field(item)
		if err != nil {
			return nil, errors.Wrap(err, "sort")
		}

		out = append(out, SortField{Field: field, Desc: desc})
	}

	return out, nil
}

// parsePaging returns nil unless both values are positive integers.
func parsePaging(page, pageSize string) *Paging {
	p, err := strconv.ParseInt(page, 10, 64)
	if err != nil || p < 1 {
		return nil
	}

	size, err := strconv.ParseInt(pageSize, 10, 64)
	if err != nil || size < 1 {
		return nil
	}

	return &Paging{
		Page:     p,
		PageSize: size,
		Limit:    size,
		Skip:     Skip(p, size),
	}
}

// Skip is the number of documents before page. It saturates instead of
// overflowing, so a page far past the end is simply empty.
func Skip(page, pageSize int64) int64 {
	if page < 1 || pageSize < 1 {
		return 0
	}

	if page-1 > math.MaxInt64/pageSize {
		return math.MaxInt64
	}

	return pageSize * (page - 1)
}

// Apply keeps or drops fields of doc according to the projection.
// Inclusion projections keep the identifier unless it is excluded explicitly.
func (p Projection) Apply(doc map[string]any) map[string]any {
	if len(p) == 0 {
		return doc
	}

	inclusive := false

	for f, flag := range p {
		if f != IDField && flag == 1 {
			inclusive = true
			break
		}
	}

	if !inclusive {
		out := make(map[string]any, len(doc))
		for k, v := range doc {
			out[k] = v
		}

		for f, flag := range p {
			if flag == 0 {
				deletePath(out, f)
			}
		}

		return out
	}

	out := make(map[string]any, len(p))

	if flag, ok := p[IDField]; !ok || flag == 1 {
		if id, ok := doc[IDField]; ok {
			out[IDField] = id
		}
	}

	for f, flag := range p {
		if flag != 1 {
			continue
		}

		if v, ok := Lookup(doc, f); ok {
			setPath(out, f, v)
		}
	}

	return out
}

func deletePath(doc map[string]any, path string) {
	parts := strings.Split(path, ".")
	cur := doc

	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			return
		}

		// copy on write so the caller's nested maps are untouched
		clone := make(map[string]any, len(next))
		for k, v := range next {
			clone[k] = v
		}

		cur[part] = clone
		cur = clone
	}

	delete(cur, parts[len(parts)-1])
}

func setPath(doc map[string]any, path string, v any) {
	parts := strings.Split(path, ".")
	cur := doc

	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[part] = next
		}

		cur = next
	}

	cur[parts[len(parts)-1]] = v
}
