package query

import (
	"net/http"
	"strconv"
)

// Page is the paginated listing envelope.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// NewPage wraps one page of results with absolute links to its neighbours.
func NewPage[T any](r *http.Request, p ListParams, results []T, total int) Page[T] {
	if results == nil {
		results = []T{}
	}
	page := Page[T]{Count: total, Results: results}
	if p.Page*p.PageSize < total {
		link := pageURL(r, p.Page+1)
		page.Next = &link
	}
	if p.Page > 1 {
		link := pageURL(r, p.Page-1)
		page.Previous = &link
	}
	return page
}

func pageURL(r *http.Request, page int) string {
	u := *r.URL
	u.Host = r.Host
	u.Scheme = "http"
	if r.TLS != nil {
		u.Scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		u.Scheme = proto
	}
	values := u.Query()
	values.Set("page", strconv.Itoa(page))
	u.RawQuery = values.Encode()
	return u.String()
}
