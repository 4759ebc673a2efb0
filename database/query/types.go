// Package query turns the admin API's list parameters into GORM queries.
// It understands PostgREST-style filters (field=op.value), free text
// search, an optional time window, sorting, pagination and facet counts.
// The message history endpoint is its main consumer; per-entity Config
// values decide which columns each endpoint exposes.
package query

import "time"

// Operator is a filter operator in PostgREST/Supabase notation.
type Operator string

const (
	OpEq      Operator = "eq"
	OpNeq     Operator = "neq"
	OpGt      Operator = "gt"
	OpGte     Operator = "gte"
	OpLt      Operator = "lt"
	OpLte     Operator = "lte"
	OpIn      Operator = "in"
	OpNin     Operator = "nin"
	OpLike    Operator = "like"
	OpIlike   Operator = "ilike"
	OpNull    Operator = "null"
	OpNotNull Operator = "notNull"
)

// AllOperators returns every operator the filter grammar accepts.
func AllOperators() []Operator {
	return []Operator{OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpIn, OpNin, OpLike, OpIlike, OpNull, OpNotNull}
}

// IsValid reports whether the operator is part of the grammar.
func (o Operator) IsValid() bool {
	for _, v := range AllOperators() {
		if o == v {
			return true
		}
	}
	return false
}

// Condition is one parsed filter clause.
type Condition struct {
	Field    string
	Operator Operator
	Value    string
	Values   []string // for in, nin
}

// FilterQuery holds the filter clauses and free text of one request.
type FilterQuery struct {
	Conditions []Condition
	FreeText   string
}

// Params is everything parsed out of a list request. Since and Until
// bound the time window; the zero time leaves that side open.
type Params struct {
	Page         int
	PageSize     int
	NoPagination bool
	SortBy       string
	SortOrder    string
	Since        time.Time
	Until        time.Time
	Query        FilterQuery
}

// AddCondition appends a filter clause. Callers building params in code
// (rather than from a request) use this.
func (p *Params) AddCondition(field string, op Operator, value string) {
	p.Query.Conditions = append(p.Query.Conditions, Condition{
		Field: field, Operator: op, Value: value,
	})
}

// Pagination metadata returned alongside each page of results.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Result is one page of rows plus pagination and optional facet counts.
type Result[T any] struct {
	Data       []T                       `json:"data"`
	Pagination Pagination                `json:"pagination"`
	Facets     map[string]map[string]int `json:"facets,omitempty"`
}

// Config declares the query surface of one entity: which columns can be
// searched, filtered, sorted and faceted. An empty AllowedFilters list
// allows any field, which is only safe for internal callers.
type Config struct {
	SearchFields      []string
	AllowedSortFields []string
	AllowedFilters    []string
	FieldAliases      map[string]string
	DefaultSort       string
	TimeField         string // column the since/until window applies to
	FacetFields       []string
}

// ResolveField maps an API field name to its column, falling back to the
// name itself when no alias is configured.
func (c Config) ResolveField(field string) string {
	if alias, ok := c.FieldAliases[field]; ok {
		return alias
	}
	return field
}
