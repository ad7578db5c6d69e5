package docstore

import (
	"fmt"
	"strings"
)

// Op is a field comparison operator.
type Op string

const (
	OpEq  Op = "eq"
	OpNe  Op = "ne"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	// OpIn matches when the field equals any element of a []any value.
	OpIn Op = "in"
)

// Valid reports whether op is a known operator.
func (op Op) Valid() bool {
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn:
		return true
	}
	return false
}

// Condition compares one document field against a literal value.
type Condition struct {
	Field string
	Op    Op
	Value any
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
}

// Filter is a conjunction of conditions. An empty filter matches everything.
type Filter []Condition

// Eq builds an equality condition.
func Eq(field string, value any) Condition { return Condition{Field: field, Op: OpEq, Value: value} }

// Ne builds an inequality condition. Documents without the field match.
func Ne(field string, value any) Condition { return Condition{Field: field, Op: OpNe, Value: value} }

// In builds a membership condition.
func In(field string, values ...any) Condition {
	return Condition{Field: field, Op: OpIn, Value: values}
}

// And returns a new filter with conds appended.
func (f Filter) And(conds ...Condition) Filter {
	out := make(Filter, 0, len(f)+len(conds))
	out = append(out, f...)
	return append(out, conds...)
}

// Validate checks operators and field names.
func (f Filter) Validate() error {
	for _, c := range f {
		if !c.Op.Valid() {
			return fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, c.Op)
		}
		if strings.TrimSpace(c.Field) == "" {
			return fmt.Errorf("%w: empty field name", ErrInvalidQuery)
		}
		if c.Op == OpIn {
			if _, ok := c.Value.([]any); !ok {
				return fmt.Errorf("%w: %s requires a list value", ErrInvalidQuery, c.Field)
			}
		}
	}
	return nil
}
