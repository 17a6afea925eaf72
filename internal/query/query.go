// Package query parses listing parameters (page, page_size, search, ordering)
// and applies them to bun select queries.
package query

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/uptrace/bun"
	"go.einride.tech/aip/ordering"

	"github.com/rewan24/E-Learning-Lessons-Platform/internal/apperr"
)

var (
	ErrInvalidOrdering = apperr.New(apperr.KindInvalidInput, "invalid ordering")
	ErrInvalidFilter   = apperr.New(apperr.KindInvalidInput, "invalid filter")
)

// Options configures Parse for one listing endpoint.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
	// DefaultOrdering uses the same syntax as the ordering parameter.
	DefaultOrdering string
	// OrderFields lists the column names callers may order by.
	OrderFields []string
}

// ListParams is a parsed listing request.
type ListParams struct {
	Page     int
	PageSize int
	Search   string
	Ordering ordering.OrderBy
	Filters  url.Values
}

// Offset is the number of rows skipped before the current page.
func (p ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Filter returns the trimmed value of a filter parameter.
func (p ListParams) Filter(name string) string {
	if p.Filters == nil {
		return ""
	}
	return strings.TrimSpace(p.Filters.Get(name))
}

// FilterID returns a positive integer filter, or 0 when absent.
// A present value that is not a positive integer fails with ErrInvalidFilter.
func (p ListParams) FilterID(name string) (int64, error) {
	raw := p.Filter(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidFilter, name, raw)
	}
	return id, nil
}

// orderRequest adapts an ordering string to ordering.Request.
type orderRequest string

func (o orderRequest) GetOrderBy() string { return string(o) }

// Parse reads page, page_size, search and ordering (or order_by) from r.
func Parse(r *http.Request, opts Options) (ListParams, error) {
	values := r.URL.Query()

	page, _ := strconv.Atoi(values.Get("page"))
	if page < 1 {
		page = 1
	}

	size, _ := strconv.Atoi(values.Get("page_size"))
	if size <= 0 {
		size = opts.DefaultPageSize
	}
	if opts.MaxPageSize > 0 && size > opts.MaxPageSize {
		size = opts.MaxPageSize
	}
	if size <= 0 {
		size = 1
	}

	raw := values.Get("ordering")
	if raw == "" {
		raw = values.Get("order_by")
	}
	if strings.TrimSpace(raw) == "" {
		raw = opts.DefaultOrdering
	}

	orderBy, err := ParseOrdering(raw, opts.OrderFields...)
	if err != nil {
		return ListParams{}, err
	}

	return ListParams{
		Page:     page,
		PageSize: size,
		Search:   strings.TrimSpace(values.Get("search")),
		Ordering: orderBy,
		Filters:  values,
	}, nil
}

// ParseOrdering accepts AIP-132 syntax ("created_at desc, name") and the
// dash prefixed form ("-created_at,name") and validates fields against allowed.
func ParseOrdering(raw string, allowed ...string) (ordering.OrderBy, error) {
	orderBy, err := ordering.ParseOrderBy(orderRequest(normalize(raw)))
	if err != nil {
		return ordering.OrderBy{}, fmt.Errorf("%w: %v", ErrInvalidOrdering, err)
	}
	if err := orderBy.ValidateForPaths(allowed...); err != nil {
		return ordering.OrderBy{}, fmt.Errorf("%w: %v", ErrInvalidOrdering, err)
	}
	return orderBy, nil
}

func normalize(raw string) string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, "-") {
			part = strings.TrimSpace(part[1:]) + " desc"
		}
		out = append(out, part)
	}
	return strings.Join(out, ", ")
}

// ApplyOrdering appends ORDER BY clauses for p.Ordering, qualified with the
// table alias, followed by tiebreak columns.
func ApplyOrdering(q *bun.SelectQuery, alias string, p ListParams, tiebreak ...string) *bun.SelectQuery {
	for _, field := range p.Ordering.Fields {
		dir := "ASC"
		if field.Desc {
			dir = "DESC"
		}
		q = q.OrderExpr("?.? "+dir, bun.Ident(alias), bun.Ident(field.Path))
	}
	for _, col := range tiebreak {
		q = q.Order(alias + "." + col)
	}
	return q
}

// ApplySearch restricts q to rows where any column contains term,
// case-insensitively.
func ApplySearch(q *bun.SelectQuery, term string, columns ...string) *bun.SelectQuery {
	if term == "" || len(columns) == 0 {
		return q
	}
	pattern := "%" + strings.ToLower(term) + "%"
	return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, col := range columns {
			q = q.WhereOr("LOWER(?) LIKE ?", bun.Ident(col), pattern)
		}
		return q
	})
}

// ApplyPage limits q to the requested page.
func ApplyPage(q *bun.SelectQuery, p ListParams) *bun.SelectQuery {
	return q.Limit(p.PageSize).Offset(p.Offset())
}
