// Package search implements radius-bounded property search over the
// relational store: dynamic filter composition, single-center and
// multi-center queries, and a guarded ad-hoc query path.
package search

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/propscope/propscope/internal/resilience"
	"github.com/propscope/propscope/internal/trend"
)

// Field identifies a filterable column. Only allow-listed fields may
// appear in a query; everything else is rejected before any database
// call.
type Field string

const (
	FieldMarketSegment  Field = "market_segment"
	FieldDistrict       Field = "district"
	FieldProject        Field = "project"
	FieldPropertyType   Field = "property_type"
	FieldSaleType       Field = "sale_type"
	FieldPrice          Field = "price"
	FieldTenure         Field = "tenure"
	FieldContractDate   Field = "contract_date"
	FieldCompletionYear Field = "completion_year"
	FieldBedrooms       Field = "bedrooms"
)

// Op is a comparison operator.
type Op string

const (
	OpEq       Op = "eq"
	OpIn       Op = "in"
	OpGte      Op = "gte"
	OpLte      Op = "lte"
	OpContains Op = "contains"
)

// Condition is one typed filter predicate.
type Condition struct {
	Field Field `json:"field"`
	Op    Op    `json:"op"`
	Value any   `json:"value"`
}

// scope says which table a field lives on. Property-scoped fields become
// direct predicates; transaction- and rental-scoped fields become EXISTS
// subqueries so a property matches when at least one child row matches.
type scope int

const (
	scopeProperty scope = iota
	scopeTransaction
	scopeRental
)

type fieldSpec struct {
	column string
	scope  scope
	ops    map[Op]bool
	// expr optionally replaces the plain column reference with a SQL
	// expression over the table alias.
	expr func(alias string) string
	// coerce optionally validates and converts the condition value
	// before it becomes a bind argument.
	coerce func(v any) (any, error)
}

// validFields is the allowlist of filterable fields. This prevents SQL
// injection through the field parameter.
var validFields = map[Field]fieldSpec{
	FieldMarketSegment: {column: "market_segment", scope: scopeProperty, ops: map[Op]bool{OpEq: true, OpIn: true}},
	FieldDistrict:      {column: "district", scope: scopeProperty, ops: map[Op]bool{OpEq: true, OpIn: true}},
	FieldProject:       {column: "project", scope: scopeProperty, ops: map[Op]bool{OpEq: true, OpContains: true}},
	FieldPropertyType:  {column: "property_type", scope: scopeTransaction, ops: map[Op]bool{OpEq: true, OpIn: true}},
	FieldSaleType:      {column: "sale_type", scope: scopeTransaction, ops: map[Op]bool{OpEq: true, OpIn: true}},
	FieldPrice:         {column: "price", scope: scopeTransaction, ops: map[Op]bool{OpGte: true, OpLte: true}},
	FieldTenure:        {column: "tenure", scope: scopeTransaction, ops: map[Op]bool{OpContains: true}},
	FieldContractDate: {
		scope:  scopeTransaction,
		ops:    map[Op]bool{OpGte: true, OpLte: true},
		expr:   contractMonthExpr,
		coerce: coerceMonthYear,
	},
	FieldCompletionYear: {
		scope:  scopeTransaction,
		ops:    map[Op]bool{OpGte: true, OpLte: true},
		expr:   completionYearExpr,
		coerce: coerceYear,
	},
	FieldBedrooms: {column: "bedrooms", scope: scopeRental, ops: map[Op]bool{OpEq: true, OpGte: true, OpLte: true}},
}

// contractMonthExpr orders the MMYY contract date as a yyyymm integer,
// applying the same two-digit-year window as trend decoding.
func contractMonthExpr(alias string) string {
	yy := fmt.Sprintf("substr(%s.contract_date, 3, 2)::int", alias)
	mm := fmt.Sprintf("substr(%s.contract_date, 1, 2)::int", alias)
	return fmt.Sprintf("((CASE WHEN %s < 50 THEN 2000 ELSE 1900 END + %s) * 100 + %s)", yy, yy, mm)
}

// completionYearExpr extracts the trailing commencement year from the
// tenure string. Freehold rows yield NULL and never match a year bound.
func completionYearExpr(alias string) string {
	return fmt.Sprintf("substring(%s.tenure from '([0-9]{4})$')::int", alias)
}

// coerceMonthYear converts an MMYY bound into the comparable yyyymm
// integer used by contractMonthExpr.
func coerceMonthYear(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, eris.Errorf("contract date bound must be an MMYY string, got %T", v)
	}
	year, month, err := trend.DecodeMonthYear(s)
	if err != nil {
		return nil, err
	}
	return year*100 + month, nil
}

func coerceYear(v any) (any, error) {
	switch y := v.(type) {
	case int:
		return y, nil
	case float64: // JSON numbers decode as float64
		return int(y), nil
	default:
		return nil, eris.Errorf("completion year bound must be a number, got %T", v)
	}
}

// filterClauses is the compiled SQL form of a condition list. Property
// predicates reference the outer alias p; child predicates are grouped
// into at most one EXISTS per child table.
type filterClauses struct {
	property    []string
	transaction []string
	rental      []string
	args        []any
}

// buildFilters compiles conditions into SQL fragments, numbering
// placeholders from argOffset+1. Invalid fields or operators reject the
// whole query.
func buildFilters(conds []Condition, argOffset int) (*filterClauses, error) {
	fc := &filterClauses{}

	for _, c := range conds {
		spec, ok := validFields[c.Field]
		if !ok {
			return nil, resilience.NewError(resilience.KindInvalidQuery,
				eris.Errorf("search: unknown filter field %q", c.Field))
		}
		if !spec.ops[c.Op] {
			return nil, resilience.NewError(resilience.KindInvalidQuery,
				eris.Errorf("search: operator %q not allowed for field %q", c.Op, c.Field))
		}

		var alias string
		switch spec.scope {
		case scopeProperty:
			alias = "p"
		case scopeTransaction:
			alias = "t"
		case scopeRental:
			alias = "r"
		}

		col := alias + "." + spec.column
		if spec.expr != nil {
			col = spec.expr(alias)
		}
		if spec.coerce != nil {
			coerced, err := spec.coerce(c.Value)
			if err != nil {
				return nil, resilience.NewError(resilience.KindInvalidQuery,
					eris.Wrapf(err, "search: filter %q", c.Field))
			}
			c.Value = coerced
		}

		frag, args, err := compileCondition(col, c, argOffset+len(fc.args))
		if err != nil {
			return nil, err
		}
		fc.args = append(fc.args, args...)

		switch spec.scope {
		case scopeProperty:
			fc.property = append(fc.property, frag)
		case scopeTransaction:
			fc.transaction = append(fc.transaction, frag)
		case scopeRental:
			fc.rental = append(fc.rental, frag)
		}
	}

	return fc, nil
}

func compileCondition(col string, c Condition, argOffset int) (string, []any, error) {
	switch c.Op {
	case OpEq:
		return fmt.Sprintf("%s = $%d", col, argOffset+1), []any{c.Value}, nil

	case OpGte:
		return fmt.Sprintf("%s >= $%d", col, argOffset+1), []any{c.Value}, nil

	case OpLte:
		return fmt.Sprintf("%s <= $%d", col, argOffset+1), []any{c.Value}, nil

	case OpContains:
		s, ok := c.Value.(string)
		if !ok {
			return "", nil, resilience.NewError(resilience.KindInvalidQuery,
				eris.Errorf("search: contains filter on %q requires a string value", c.Field))
		}
		return fmt.Sprintf("%s ILIKE $%d", col, argOffset+1), []any{"%" + escapeLike(s) + "%"}, nil

	case OpIn:
		values, err := toSlice(c.Value)
		if err != nil {
			return "", nil, resilience.NewError(resilience.KindInvalidQuery,
				eris.Wrapf(err, "search: in filter on %q", c.Field))
		}
		if len(values) == 0 {
			return "", nil, resilience.NewError(resilience.KindInvalidQuery,
				eris.Errorf("search: in filter on %q requires at least one value", c.Field))
		}
		placeholders := make([]string, len(values))
		for i := range values {
			placeholders[i] = fmt.Sprintf("$%d", argOffset+1+i)
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")), values, nil

	default:
		return "", nil, resilience.NewError(resilience.KindInvalidQuery,
			eris.Errorf("search: unknown operator %q", c.Op))
	}
}

func toSlice(v any) ([]any, error) {
	switch vv := v.(type) {
	case []any:
		return vv, nil
	case []string:
		out := make([]any, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out, nil
	case []int:
		out := make([]any, len(vv))
		for i, n := range vv {
			out[i] = n
		}
		return out, nil
	default:
		return nil, eris.Errorf("value %T is not a list", v)
	}
}

// escapeLike neutralizes LIKE metacharacters in user input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
