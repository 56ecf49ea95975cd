package storage

import (
	"fmt"
	"regexp"
)

// Op is a filter operator.
type Op int

const (
	// OpIn matches when a scalar field equals one of the values.
	OpIn Op = iota
	// OpNotIn matches when a scalar field equals none of the values.
	OpNotIn
	// OpAnyIn matches when an array field holds at least one of the values.
	OpAnyIn
	// OpIsNull matches missing or null fields.
	OpIsNull
	// OpNotNull matches present, non-null fields.
	OpNotNull
	// OpSearch matches a case-insensitive substring in any of Fields.
	OpSearch
)

// Cond is a single filter condition. Conditions in a Query are ANDed.
type Cond struct {
	Op     Op
	Field  string
	Fields []string
	Values []any
	Text   string
}

// SortField orders results by a document field.
type SortField struct {
	Field string
	Desc  bool
}

// Query selects, orders and pages documents.
type Query struct {
	Conds []Cond
	Sort  []SortField
	Skip  int64
	Limit int64
}

// Where builds a query from conditions.
func Where(conds ...Cond) Query {
	return Query{Conds: conds}
}

// And returns a copy of q with extra conditions.
func (q Query) And(conds ...Cond) Query {
	out := q
	out.Conds = append(append([]Cond{}, q.Conds...), conds...)
	return out
}

// SortBy returns a copy of q ordered by field; later calls add tie-breakers.
func (q Query) SortBy(field string, desc bool) Query {
	out := q
	out.Sort = append(append([]SortField{}, q.Sort...), SortField{Field: field, Desc: desc})
	return out
}

// Page returns a copy of q limited to one page.
func (q Query) Page(skip, limit int64) Query {
	out := q
	out.Skip = skip
	out.Limit = limit
	return out
}

// Eq matches field == value.
func Eq(field string, value any) Cond {
	return Cond{Op: OpIn, Field: field, Values: []any{value}}
}

// In matches field equal to any of values.
func In(field string, values ...any) Cond {
	return Cond{Op: OpIn, Field: field, Values: values}
}

// NotIn matches field equal to none of values.
func NotIn(field string, values ...any) Cond {
	return Cond{Op: OpNotIn, Field: field, Values: values}
}

// AnyIn matches array field containing any of values.
func AnyIn(field string, values ...any) Cond {
	return Cond{Op: OpAnyIn, Field: field, Values: values}
}

// IsNull matches a missing or null field.
func IsNull(field string) Cond {
	return Cond{Op: OpIsNull, Field: field}
}

// NotNull matches a present field.
func NotNull(field string) Cond {
	return Cond{Op: OpNotNull, Field: field}
}

// Search matches text as a case-insensitive substring of any of fields.
func Search(text string, fields ...string) Cond {
	return Cond{Op: OpSearch, Fields: fields, Text: text}
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// ValidateField rejects names that are not plain (dotted) identifiers.
func ValidateField(name string) error {
	if !fieldPattern.MatchString(name) {
		return fmt.Errorf("invalid field name %q", name)
	}
	return nil
}

// Validate checks every field name referenced by q.
func (q Query) Validate() error {
	for _, c := range q.Conds {
		if c.Op == OpSearch {
			for _, f := range c.Fields {
				if err := ValidateField(f); err != nil {
					return err
				}
			}
			continue
		}
		if err := ValidateField(c.Field); err != nil {
			return err
		}
	}
	for _, s := range q.Sort {
		if err := ValidateField(s.Field); err != nil {
			return err
		}
	}
	return nil
}
