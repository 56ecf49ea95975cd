package sqlite

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Manumac86/collybrix-admin-sub001/internal/storage"
)

// fieldExpr maps a document field to the SQL expression reading it.
func fieldExpr(field string) string {
	if field == "_id" {
		return "id"
	}
	return fmt.Sprintf("json_extract(data, '$.%s')", field)
}

// sortExpr orders ISO-8601 timestamps chronologically; json text of
// differing fractional precision does not sort lexically.
func sortExpr(field string) string {
	expr := fieldExpr(field)
	return fmt.Sprintf("CASE WHEN typeof(%[1]s) = 'text' AND %[1]s GLOB '[0-9][0-9][0-9][0-9]-[0-9][0-9]-[0-9][0-9]T*' THEN julianday(%[1]s) ELSE %[1]s END", expr)
}

// sqlValue converts a filter value into what json_extract yields for it.
func sqlValue(v any) any {
	switch val := v.(type) {
	case primitive.ObjectID:
		return val.Hex()
	case *primitive.ObjectID:
		if val == nil {
			return nil
		}
		return val.Hex()
	case bool:
		if val {
			return 1
		}
		return 0
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

// jsonValue encodes v for json_set.
func jsonValue(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode value: %w", err)
	}
	return string(raw), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// whereClause translates the query conditions; it always yields a valid
// expression so callers can append it after WHERE.
func whereClause(q storage.Query) (string, []any) {
	if len(q.Conds) == 0 {
		return "1 = 1", nil
	}
	parts := make([]string, 0, len(q.Conds))
	var args []any
	for _, c := range q.Conds {
		clause, condArgs := condClause(c)
		parts = append(parts, "("+clause+")")
		args = append(args, condArgs...)
	}
	return strings.Join(parts, " AND "), args
}

func condClause(c storage.Cond) (string, []any) {
	values := make([]any, 0, len(c.Values))
	for _, v := range c.Values {
		values = append(values, sqlValue(v))
	}

	switch c.Op {
	case storage.OpIn:
		if len(values) == 0 {
			return "0", nil
		}
		return fmt.Sprintf("%s IN (%s)", fieldExpr(c.Field), placeholders(len(values))), values
	case storage.OpNotIn:
		if len(values) == 0 {
			return "1", nil
		}
		expr := fieldExpr(c.Field)
		return fmt.Sprintf("%s IS NULL OR %s NOT IN (%s)", expr, expr, placeholders(len(values))), values
	case storage.OpAnyIn:
		if len(values) == 0 {
			return "0", nil
		}
		return fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(data, '$.%s') WHERE value IN (%s))", c.Field, placeholders(len(values))), values
	case storage.OpIsNull:
		return fieldExpr(c.Field) + " IS NULL", nil
	case storage.OpNotNull:
		return fieldExpr(c.Field) + " IS NOT NULL", nil
	case storage.OpSearch:
		if len(c.Fields) == 0 || c.Text == "" {
			return "1", nil
		}
		pattern := "%" + escapeLike(foldText(c.Text)) + "%"
		ors := make([]string, 0, len(c.Fields))
		args := make([]any, 0, len(c.Fields))
		for _, f := range c.Fields {
			ors = append(ors, fmt.Sprintf(`go_fold(CAST(COALESCE(%s, '') AS TEXT)) LIKE ? ESCAPE '\'`, fieldExpr(f)))
			args = append(args, pattern)
		}
		return strings.Join(ors, " OR "), args
	default:
		return "0", nil
	}
}

// orderClause always ends with the id so pages are stable.
func orderClause(q storage.Query) string {
	parts := make([]string, 0, len(q.Sort)+1)
	for _, s := range q.Sort {
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		parts = append(parts, sortExpr(s.Field)+" "+dir)
	}
	parts = append(parts, "id ASC")
	return " ORDER BY " + strings.Join(parts, ", ")
}

func limitClause(q storage.Query) (string, []any) {
	if q.Limit <= 0 && q.Skip <= 0 {
		return "", nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	return " LIMIT ? OFFSET ?", []any{limit, q.Skip}
}
