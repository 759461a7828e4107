package repository

import (
	"fmt"
	"strings"

	"uk-weather-platform/internal/models"
)

// predicates accumulates WHERE clauses and their arguments. Clauses use '?'
// placeholders and are joined with AND; the DB wrapper rebinds them per driver.
type predicates struct {
	clauses []string
	args    []interface{}
}

func (p *predicates) add(clause string, args ...interface{}) {
	p.clauses = append(p.clauses, clause)
	p.args = append(p.args, args...)
}

func (p *predicates) where() string {
	if len(p.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(p.clauses, " AND ")
}

// likePattern builds a case-insensitive substring pattern with LIKE wildcards escaped
func likePattern(term string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(term))
	return "%" + escaped + "%"
}

func likeAny(columns ...string) string {
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf(`LOWER(%s) LIKE ? ESCAPE '\'`, col)
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func repeatArg(v interface{}, n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = v
	}
	return args
}

func observationPredicates(filter ObservationFilter) *predicates {
	p := &predicates{}

	if filter.RegionCode != nil {
		p.add("r.code = ?", *filter.RegionCode)
	}
	if filter.ParameterCode != nil {
		p.add("p.code = ?", *filter.ParameterCode)
	}
	if filter.Year != nil {
		p.add("o.year = ?", *filter.Year)
	}
	if filter.YearFrom != nil {
		p.add("o.year >= ?", *filter.YearFrom)
	}
	if filter.YearTo != nil {
		p.add("o.year <= ?", *filter.YearTo)
	}
	if filter.Annual {
		p.add("o.month IS NULL")
	} else if filter.Month != nil {
		p.add("o.month = ?", *filter.Month)
	}
	if filter.Search != "" {
		cols := []string{"r.name", "r.code", "p.name", "p.code"}
		p.add(likeAny(cols...), repeatArg(likePattern(filter.Search), len(cols))...)
	}

	return p
}

// OrderField is one validated sort key of the observation listing
type OrderField struct {
	Field      string
	Descending bool
}

var orderColumns = map[string]string{
	"year":       "o.year",
	"month":      "o.month",
	"value":      "o.value",
	"created_at": "o.created_at",
}

// DefaultOrdering lists newest periods first, annual entries before monthly ones within a year
var DefaultOrdering = []OrderField{
	{Field: "year", Descending: true},
	{Field: "month", Descending: true},
}

// ParseOrdering validates a comma separated ordering such as "-year,month".
// An empty string yields DefaultOrdering.
func ParseOrdering(raw string) ([]OrderField, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultOrdering, nil
	}

	var fields []OrderField
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		desc := strings.HasPrefix(part, "-")
		name := strings.TrimPrefix(part, "-")
		if _, ok := orderColumns[name]; !ok {
			return nil, &models.ValidationError{
				Field:   "ordering",
				Value:   raw,
				Message: fmt.Sprintf("invalid ordering field %q, expected one of year, month, value, created_at", name),
			}
		}
		fields = append(fields, OrderField{Field: name, Descending: desc})
	}
	return fields, nil
}

// orderClause renders ordering. A missing month counts as greater than any
// month, so annual rows lead under descending order and trail under ascending.
func orderClause(fields []OrderField) string {
	if len(fields) == 0 {
		fields = DefaultOrdering
	}

	parts := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		col := orderColumns[f.Field]
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		switch {
		case f.Field == "month" && f.Descending:
			parts = append(parts, col+" DESC NULLS FIRST")
		case f.Field == "month":
			parts = append(parts, col+" ASC NULLS LAST")
		default:
			parts = append(parts, col+" "+dir)
		}
	}
	parts = append(parts, "o.id")

	return " ORDER BY " + strings.Join(parts, ", ")
}
