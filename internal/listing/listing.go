// Package listing filters, sorts and paginates directory businesses for
// list pages.
package listing

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"guida/internal/core"
)

const (
	DefaultPerPage = 12
	MaxPerPage     = 100
)

var ErrInvalidSort = errors.New("invalid sort")

// Options selects and orders a page of businesses. Zero values mean no
// filtering, insertion order, first page and DefaultPerPage.
type Options struct {
	Search   string
	Category string
	City     string
	Status   core.BusinessStatus
	Featured bool
	Sort     string
	Page     int
	PerPage  int
}

type Page struct {
	Items   []core.Business `json:"items"`
	Total   int             `json:"total"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
	Pages   int             `json:"pages"`
}

var sorters = map[string]func(a, b core.Business) int{
	"name":         func(a, b core.Business) int { return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)) },
	"rating":       func(a, b core.Business) int { return cmpFloat(a.Rating, b.Rating) },
	"created_date": func(a, b core.Business) int { return a.CreatedDate.Compare(b.CreatedDate) },
	"featured": func(a, b core.Business) int {
		if a.Featured != b.Featured {
			if a.Featured {
				return -1
			}
			return 1
		}
		return -cmpFloat(a.Rating, b.Rating)
	},
}

// SortKeys lists the accepted sort values without direction prefix.
func SortKeys() []string {
	keys := make([]string, 0, len(sorters))
	for k := range sorters {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Apply returns the requested page. items is not modified.
func Apply(items []core.Business, opts Options) (Page, error) {
	cmp, err := comparator(opts.Sort)
	if err != nil {
		return Page{}, err
	}
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	perPage = min(perPage, MaxPerPage)
	page := max(opts.Page, 1)

	matched := make([]core.Business, 0, len(items))
	for _, b := range items {
		if opts.matches(b) {
			matched = append(matched, b)
		}
	}
	if cmp != nil {
		slices.SortStableFunc(matched, cmp)
	}

	total := len(matched)
	start := min((page-1)*perPage, total)
	end := min(start+perPage, total)

	return Page{
		Items:   slices.Clip(matched[start:end]),
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   (total + perPage - 1) / perPage,
	}, nil
}

func (o Options) matches(b core.Business) bool {
	if o.Category != "" && !strings.EqualFold(b.Category, o.Category) {
		return false
	}
	if o.City != "" && !strings.EqualFold(b.City, o.City) {
		return false
	}
	if o.Status != "" && b.Status != o.Status {
		return false
	}
	if o.Featured && !b.Featured {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(o.Search)); q != "" {
		hay := strings.ToLower(strings.Join([]string{b.Name, b.Description, b.Category, b.City}, "\n"))
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}

func comparator(sort string) (func(a, b core.Business) int, error) {
	if sort == "" {
		return nil, nil
	}
	key, desc := strings.CutPrefix(sort, "-")
	key = strings.TrimPrefix(key, "+")
	fn, ok := sorters[key]
	if !ok {
		return nil, fmt.Errorf("%w %q: must be one of %v", ErrInvalidSort, sort, SortKeys())
	}
	if desc {
		return func(a, b core.Business) int { return fn(b, a) }, nil
	}
	return fn, nil
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
