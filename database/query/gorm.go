package query

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ApplyToGorm runs params against a GORM model query and returns one
// page of rows. The total count and facets are computed on the same
// filtered set, so the pagination header always matches what a client
// would get by walking every page.
func ApplyToGorm[T any](db *gorm.DB, params Params, config Config) (*Result[T], error) {
	q := windowed(db, params, config)

	if params.Query.FreeText != "" && len(config.SearchFields) > 0 {
		q = applySearch(q, params.Query.FreeText, config.SearchFields)
	}
	for _, cond := range params.Query.Conditions {
		q = applyCondition(q, cond, config)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}

	facets := computeFacets(db, params, config)

	q = applySort(q, params.SortBy, params.SortOrder, config)

	if !params.NoPagination {
		q = q.Offset((params.Page - 1) * params.PageSize).Limit(params.PageSize)
	}

	var data []T
	if err := q.Find(&data).Error; err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	page := Pagination{Page: params.Page, Total: int(total)}
	if params.NoPagination {
		page.PageSize = int(total)
		page.TotalPages = 1
	} else {
		page.PageSize = params.PageSize
		page.TotalPages = (int(total) + params.PageSize - 1) / params.PageSize
		if page.TotalPages < 1 {
			page.TotalPages = 1
		}
	}

	return &Result[T]{Data: data, Pagination: page, Facets: facets}, nil
}

// windowed starts a fresh session with the since/until bounds applied.
// Until is exclusive so adjacent windows do not overlap.
func windowed(db *gorm.DB, params Params, config Config) *gorm.DB {
	q := db.Session(&gorm.Session{})
	if config.TimeField == "" {
		return q
	}
	if !params.Since.IsZero() {
		q = q.Where(fmt.Sprintf("%s >= ?", config.TimeField), params.Since)
	}
	if !params.Until.IsZero() {
		q = q.Where(fmt.Sprintf("%s < ?", config.TimeField), params.Until)
	}
	return q
}

func applySearch(db *gorm.DB, search string, fields []string) *gorm.DB {
	pattern := "%" + strings.ToLower(search) + "%"
	conds := make([]string, 0, len(fields))
	args := make([]interface{}, 0, len(fields))
	for _, f := range fields {
		conds = append(conds, fmt.Sprintf("LOWER(%s) LIKE ?", f))
		args = append(args, pattern)
	}
	return db.Where(strings.Join(conds, " OR "), args...)
}

func applyCondition(db *gorm.DB, cond Condition, config Config) *gorm.DB {
	field := config.ResolveField(cond.Field)

	switch cond.Operator {
	case OpEq:
		if len(cond.Values) > 0 {
			return db.Where(fmt.Sprintf("%s IN ?", field), cond.Values)
		}
		return db.Where(fmt.Sprintf("%s = ?", field), cond.Value)
	case OpNeq:
		if len(cond.Values) > 0 {
			return db.Where(fmt.Sprintf("%s NOT IN ?", field), cond.Values)
		}
		return db.Where(fmt.Sprintf("%s != ?", field), cond.Value)
	case OpGt:
		return db.Where(fmt.Sprintf("%s > ?", field), cond.Value)
	case OpGte:
		return db.Where(fmt.Sprintf("%s >= ?", field), cond.Value)
	case OpLt:
		return db.Where(fmt.Sprintf("%s < ?", field), cond.Value)
	case OpLte:
		return db.Where(fmt.Sprintf("%s <= ?", field), cond.Value)
	case OpIn:
		if vals := cond.valueList(); len(vals) > 0 {
			return db.Where(fmt.Sprintf("%s IN ?", field), vals)
		}
	case OpNin:
		if vals := cond.valueList(); len(vals) > 0 {
			return db.Where(fmt.Sprintf("%s NOT IN ?", field), vals)
		}
	case OpLike:
		return db.Where(fmt.Sprintf("%s LIKE ?", field), "%"+cond.Value+"%")
	case OpIlike:
		return db.Where(fmt.Sprintf("LOWER(%s) LIKE ?", field), "%"+strings.ToLower(cond.Value)+"%")
	case OpNull:
		return db.Where(fmt.Sprintf("%s IS NULL", field))
	case OpNotNull:
		return db.Where(fmt.Sprintf("%s IS NOT NULL", field))
	}
	return db
}

// valueList normalizes in/nin operands: either the parsed array form or
// a single comma-separated value.
func (c Condition) valueList() []string {
	if len(c.Values) > 0 {
		return c.Values
	}
	if c.Value != "" {
		return strings.Split(c.Value, ",")
	}
	return nil
}

func applySort(db *gorm.DB, sortBy, sortOrder string, config Config) *gorm.DB {
	if sortBy != "" {
		for _, f := range config.AllowedSortFields {
			if f == sortBy {
				order := config.ResolveField(sortBy)
				if sortOrder == "desc" {
					order += " DESC"
				}
				return db.Order(order)
			}
		}
	}
	if config.DefaultSort != "" {
		return db.Order(config.DefaultSort)
	}
	return db
}

// computeFacets counts rows per distinct value of each facet field.
// Each facet is cross-filtered: it honors every condition except the
// ones on its own field, so selecting a facet value never zeroes out
// its siblings in the dashboard. The time window always applies.
func computeFacets(db *gorm.DB, params Params, config Config) map[string]map[string]int {
	if len(config.FacetFields) == 0 {
		return nil
	}

	facets := make(map[string]map[string]int, len(config.FacetFields))

	for _, field := range config.FacetFields {
		column := config.ResolveField(field)
		counts := make(map[string]int)

		others := withoutField(params.Query.Conditions, column, config)

		var total int64
		facetQuery(db, params, others, config).Count(&total)
		counts["_total"] = int(total)

		type bucket struct {
			Value string
			Count int
		}
		var rows []bucket
		facetQuery(db, params, others, config).
			Select(fmt.Sprintf("%s as value, COUNT(*) as count", column)).
			Group(column).
			Scan(&rows)
		for _, b := range rows {
			counts[b.Value] = b.Count
		}

		facets[field] = counts
	}

	return facets
}

func facetQuery(db *gorm.DB, params Params, conds []Condition, config Config) *gorm.DB {
	q := windowed(db, params, config)
	for _, cond := range conds {
		q = applyCondition(q, cond, config)
	}
	return q
}

func withoutField(conds []Condition, column string, config Config) []Condition {
	var kept []Condition
	for _, c := range conds {
		if config.ResolveField(c.Field) != column {
			kept = append(kept, c)
		}
	}
	return kept
}
