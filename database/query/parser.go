package query

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ParseFromRequest reads list parameters from an HTTP request.
//
// Filters come in two shapes: a combined filter=field=op.value&... param,
// or one param per field (direction=eq.SEND). Both use the PostgREST
// op.value notation; a bare value means eq. On top of that the request
// may carry search (free text), since/until (unix seconds or RFC 3339),
// page, limit or pageSize, sortBy and order. limit=-1 or limit=all turns
// pagination off.
func ParseFromRequest(r *http.Request, config Config) Params {
	q := r.URL.Query()

	size, unpaginated := pageSizeFrom(q)

	order := "asc"
	if strings.EqualFold(q.Get("order"), "desc") {
		order = "desc"
	}

	params := Params{
		Page:         positiveInt(q.Get("page"), 1),
		PageSize:     size,
		NoPagination: unpaginated,
		SortBy:       q.Get("sortBy"),
		SortOrder:    order,
		Since:        parseTime(q.Get("since")),
		Until:        parseTime(q.Get("until")),
		Query: FilterQuery{
			Conditions: []Condition{},
			FreeText:   strings.TrimSpace(q.Get("search")),
		},
	}

	if combined := q.Get("filter"); combined != "" {
		params.Query.Conditions = append(params.Query.Conditions,
			parseFilterList(combined, config.AllowedFilters)...)
	}

	for _, field := range config.AllowedFilters {
		if v := q.Get(field); v != "" {
			if cond := parseCondition(field, v); cond != nil {
				params.Query.Conditions = append(params.Query.Conditions, *cond)
			}
		}
	}

	return params
}

// pageSizeFrom resolves the page size from limit and pageSize params,
// with pageSize winning when both are present. The second return is true
// when the caller asked for everything in one response.
func pageSizeFrom(q url.Values) (int, bool) {
	raw := q.Get("limit")
	if v := q.Get("pageSize"); v != "" {
		raw = v
	}
	if raw == "-1" || raw == "all" {
		return DefaultPageSize, true
	}
	size := positiveInt(raw, DefaultPageSize)
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return size, false
}

// parseFilterList parses a combined filter param such as
// "direction=eq.SEND&post_type=in.(message,notice)".
func parseFilterList(combined string, allowed []string) []Condition {
	var conditions []Condition
	for _, part := range strings.Split(combined, "&") {
		field, value, ok := strings.Cut(part, "=")
		if !ok || !fieldAllowed(field, allowed) {
			continue
		}
		if cond := parseCondition(field, value); cond != nil {
			conditions = append(conditions, *cond)
		}
	}
	return conditions
}

// parseCondition parses one op.value clause. Unknown operators fall back
// to an eq match on the raw value so a literal like "3.14" still works.
func parseCondition(field, value string) *Condition {
	switch value {
	case "is.null":
		return &Condition{Field: field, Operator: OpNull}
	case "not.is.null":
		return &Condition{Field: field, Operator: OpNotNull}
	}

	opText, rest, ok := strings.Cut(value, ".")
	if !ok {
		return &Condition{Field: field, Operator: OpEq, Value: value}
	}

	op := Operator(opText)
	if !op.IsValid() {
		return &Condition{Field: field, Operator: OpEq, Value: value}
	}

	if strings.HasPrefix(rest, "(") && strings.HasSuffix(rest, ")") {
		return &Condition{Field: field, Operator: op, Values: splitList(rest[1 : len(rest)-1])}
	}

	return &Condition{Field: field, Operator: op, Value: unescape(rest)}
}

// splitList splits a parenthesized list body on commas. Backslash
// escapes let values contain commas.
func splitList(inner string) []string {
	var out []string
	var cur []byte
	for i := 0; i < len(inner); i++ {
		switch {
		case inner[i] == '\\' && i+1 < len(inner):
			i++
			cur = append(cur, inner[i])
		case inner[i] == ',':
			if v := strings.TrimSpace(string(cur)); v != "" {
				out = append(out, v)
			}
			cur = cur[:0]
		default:
			cur = append(cur, inner[i])
		}
	}
	if v := strings.TrimSpace(string(cur)); v != "" {
		out = append(out, v)
	}
	return out
}

// unescape removes backslash escapes, so like.a\.b matches "a.b".
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		out = append(out, s[i])
	}
	return string(out)
}

func fieldAllowed(field string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, f := range allowed {
		if f == field {
			return true
		}
	}
	return false
}

// parseTime accepts unix seconds or RFC 3339. Anything else, including
// an empty string, yields the zero time, which means unbounded.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func positiveInt(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
