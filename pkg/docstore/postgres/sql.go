package postgres

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MinhajJamraiz/natours/pkg/docstore"
)

// sqlBuilder accumulates positional arguments while a statement is built.
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *sqlBuilder) path(field string) string {
	return b.arg(strings.Split(field, ".")) + "::text[]"
}

func (b *sqlBuilder) jsonb(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: encode value: %v", docstore.ErrInvalidQuery, err)
	}
	return b.arg(string(raw)) + "::jsonb", nil
}

func (b *sqlBuilder) where(collection string, f docstore.Filter) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	clauses := []string{"collection = " + b.arg(collection)}
	for _, c := range f {
		clause, err := b.condition(c)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, clause)
	}
	return strings.Join(clauses, " AND "), nil
}

func (b *sqlBuilder) condition(c docstore.Condition) (string, error) {
	field := "data #> " + b.path(c.Field)
	value, err := b.jsonb(c.Value)
	if err != nil {
		return "", err
	}
	switch c.Op {
	case docstore.OpEq:
		return field + " = " + value, nil
	case docstore.OpNe:
		return field + " IS DISTINCT FROM " + value, nil
	case docstore.OpIn:
		return field + " IN (SELECT jsonb_array_elements(" + value + "))", nil
	case docstore.OpGt, docstore.OpGte, docstore.OpLt, docstore.OpLte:
		// jsonb ordering is only meaningful between values of the same type.
		return "(jsonb_typeof(" + field + ") = jsonb_typeof(" + value + ") AND " +
			field + " " + comparison[c.Op] + " " + value + ")", nil
	}
	return "", fmt.Errorf("%w: unknown operator %q", docstore.ErrInvalidQuery, c.Op)
}

var comparison = map[docstore.Op]string{
	docstore.OpGt:  ">",
	docstore.OpGte: ">=",
	docstore.OpLt:  "<",
	docstore.OpLte: "<=",
}

func (b *sqlBuilder) accumulator(acc docstore.Accumulator) string {
	if acc.Kind == docstore.AccCount {
		return "COUNT(*)::float8"
	}
	p := b.path(acc.Field)
	numeric := "CASE WHEN jsonb_typeof(data #> " + p + ") = 'number' THEN (data #>> " + p + ")::numeric END"
	fn := map[docstore.AccumulatorKind]string{
		docstore.AccSum: "SUM",
		docstore.AccAvg: "AVG",
		docstore.AccMin: "MIN",
		docstore.AccMax: "MAX",
	}[acc.Kind]
	return "COALESCE(" + fn + "(" + numeric + "), 0)::float8"
}
