package repository

import (
	"encoding/json"
	"math"

	"github.com/Manumac86/collybrix-admin-sub001/internal/storage"
)

// Paging defaults.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxPage keeps the skip offset of the largest page within int64.
	MaxPage = math.MaxInt64/MaxPageSize + 1
)

// Paging selects one page of a listing; pages start at 1.
type Paging struct {
	Page     int64
	PageSize int64
}

func (p Paging) normalize() Paging {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Sort orders a listing by one of the fields the resource allows.
type Sort struct {
	By    string
	Order string
}

// apply appends the requested order to q, or fallback when none was asked for.
func (s Sort) apply(q storage.Query, allowed map[string]struct{}, fallback string, fallbackDesc bool) (storage.Query, error) {
	if s.Order != "" && s.Order != "asc" && s.Order != "desc" {
		return q, invalidf("sortOrder must be asc or desc")
	}
	if s.By == "" {
		return q.SortBy(fallback, fallbackDesc), nil
	}
	if _, ok := allowed[s.By]; !ok {
		return q, invalidf("cannot sort by %q", s.By)
	}
	desc := s.Order == "desc"
	if s.Order == "" {
		desc = fallbackDesc
	}
	return q.SortBy(s.By, desc), nil
}

// ListResult is one page of a listing plus the total number of matches.
type ListResult[T any] struct {
	Items    []T
	Total    int64
	Page     int64
	PageSize int64
}

// TotalPages is the number of pages the listing spans.
func (l ListResult[T]) TotalPages() int64 {
	if l.PageSize <= 0 || l.Total == 0 {
		return 0
	}
	return (l.Total + l.PageSize - 1) / l.PageSize
}

// Optional is a PATCH field: Set records whether the key was present in the
// body, so an explicit null can be told apart from an omitted key.
type Optional[T any] struct {
	Set   bool
	Value T
}

// Some returns a present Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	return json.Unmarshal(data, &o.Value)
}

func (o Optional[T]) applyTo(dst *T) {
	if o.Set {
		*dst = o.Value
	}
}
