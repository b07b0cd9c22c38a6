// Package pagination parses page/per_page query parameters and builds the
// paginated list envelope.
package pagination

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPerPage = 10
	MinPerPage     = 1
	MaxPerPage     = 100

	// MaxPage keeps Offset within int32 at any per_page.
	MaxPage = math.MaxInt32 / MaxPerPage
)

// Params is a 1-based page request.
type Params struct {
	Page    int
	PerPage int
}

// FromContext reads page and per_page. A non-numeric per_page falls back to
// the default; numeric values are clamped to [MinPerPage, MaxPerPage]. A
// missing, non-numeric, non-positive or out of range page becomes 1.
func FromContext(c echo.Context) Params {
	return Parse(c.QueryParam("page"), c.QueryParam("per_page"))
}

func Parse(page, perPage string) Params {
	p := Params{Page: 1, PerPage: DefaultPerPage}
	if n, err := strconv.Atoi(page); err == nil && n > 0 && n <= MaxPage {
		p.Page = n
	}
	if n, err := strconv.Atoi(perPage); err == nil {
		switch {
		case n < MinPerPage:
			p.PerPage = MinPerPage
		case n > MaxPerPage:
			p.PerPage = MaxPerPage
		default:
			p.PerPage = n
		}
	}
	return p
}

// Offset is the number of rows skipped before this page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

func (p Params) Limit() int {
	return p.PerPage
}

// Page is the list envelope returned by every paginated endpoint.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page_courante"`
	TotalPages int `json:"pages_totales"`
	Total      int `json:"total"`
	PerPage    int `json:"elements_par_page"`
}

// NewPage builds the envelope. Items is never null on the wire.
func NewPage[T any](items []T, total int, p Params) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Page:       p.Page,
		TotalPages: TotalPages(total, p.PerPage),
		Total:      total,
		PerPage:    p.PerPage,
	}
}

// TotalPages is ceil(total/perPage), zero for an empty result.
func TotalPages(total, perPage int) int {
	if total <= 0 || perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
