package query

import (
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func TestParseCondition(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value string
		want  Condition
	}{
		{
			name: "plain value defaults to eq", field: "direction", value: "SEND",
			want: Condition{Field: "direction", Operator: OpEq, Value: "SEND"},
		},
		{
			name: "explicit eq", field: "self_id", value: "eq.123456",
			want: Condition{Field: "self_id", Operator: OpEq, Value: "123456"},
		},
		{
			name: "gt with numeric value", field: "message_id", value: "gt.100",
			want: Condition{Field: "message_id", Operator: OpGt, Value: "100"},
		},
		{
			name: "in with array", field: "post_type", value: "in.(message,notice)",
			want: Condition{Field: "post_type", Operator: OpIn, Values: []string{"message", "notice"}},
		},
		{
			name: "is null", field: "group_id", value: "is.null",
			want: Condition{Field: "group_id", Operator: OpNull},
		},
		{
			name: "not is null", field: "group_id", value: "not.is.null",
			want: Condition{Field: "group_id", Operator: OpNotNull},
		},
		{
			name: "unknown operator treated as literal eq", field: "name", value: "zz.oops",
			want: Condition{Field: "name", Operator: OpEq, Value: "zz.oops"},
		},
		{
			name: "escaped dot in value", field: "raw", value: "like.a\\.b",
			want: Condition{Field: "raw", Operator: OpLike, Value: "a.b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCondition(tt.field, tt.value)
			if got == nil {
				t.Fatal("expected condition, got nil")
			}
			if !reflect.DeepEqual(*got, tt.want) {
				t.Errorf("parseCondition(%q, %q) = %+v, want %+v", tt.field, tt.value, *got, tt.want)
			}
		})
	}
}

func TestParseFromRequest(t *testing.T) {
	cfg := Config{
		AllowedFilters:    []string{"connection_id", "self_id", "direction"},
		AllowedSortFields: []string{"created_at"},
	}

	r := httptest.NewRequest("GET", "/api/messages?page=2&limit=50&sortBy=created_at&order=desc&search=hello&connection_id=eq.main&direction=RECV", nil)
	params := ParseFromRequest(r, cfg)

	if params.Page != 2 {
		t.Errorf("Page = %d, want 2", params.Page)
	}
	if params.PageSize != 50 {
		t.Errorf("PageSize = %d, want 50", params.PageSize)
	}
	if params.SortBy != "created_at" || params.SortOrder != "desc" {
		t.Errorf("sort = %s %s, want created_at desc", params.SortBy, params.SortOrder)
	}
	if params.Query.FreeText != "hello" {
		t.Errorf("FreeText = %q, want %q", params.Query.FreeText, "hello")
	}
	if len(params.Query.Conditions) != 2 {
		t.Fatalf("expected 2 conditions, got %d: %+v", len(params.Query.Conditions), params.Query.Conditions)
	}
}

func TestParseFromRequestIgnoresDisallowedFilter(t *testing.T) {
	cfg := Config{AllowedFilters: []string{"direction"}}

	r := httptest.NewRequest("GET", "/api/messages?filter=secret%3Deq.x%26direction%3Deq.SEND", nil)
	params := ParseFromRequest(r, cfg)

	if len(params.Query.Conditions) != 1 {
		t.Fatalf("expected 1 condition, got %d", len(params.Query.Conditions))
	}
	if params.Query.Conditions[0].Field != "direction" {
		t.Errorf("Field = %q, want direction", params.Query.Conditions[0].Field)
	}
}

func TestParseFromRequestNoPagination(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"limit=-1", "/x?limit=-1"},
		{"limit=all", "/x?limit=all"},
		{"pageSize=-1", "/x?pageSize=-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.query, nil)
			params := ParseFromRequest(r, Config{})
			if !params.NoPagination {
				t.Error("expected NoPagination to be true")
			}
		})
	}
}

func TestPageSizeClamped(t *testing.T) {
	r := httptest.NewRequest("GET", "/x?limit=5000", nil)
	params := ParseFromRequest(r, Config{})
	if params.PageSize != MaxPageSize {
		t.Errorf("PageSize = %d, want %d", params.PageSize, MaxPageSize)
	}
}

func TestParseTimeWindow(t *testing.T) {
	r := httptest.NewRequest("GET", "/x?since=1756000000&until=2026-08-25T12:00:00Z", nil)
	params := ParseFromRequest(r, Config{})

	if params.Since.Unix() != 1756000000 {
		t.Errorf("Since = %v, want unix 1756000000", params.Since)
	}
	wantUntil := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	if !params.Until.Equal(wantUntil) {
		t.Errorf("Until = %v, want %v", params.Until, wantUntil)
	}
}

func TestParseTimeWindowUnparseable(t *testing.T) {
	r := httptest.NewRequest("GET", "/x?since=yesterday", nil)
	params := ParseFromRequest(r, Config{})
	if !params.Since.IsZero() {
		t.Errorf("Since = %v, want zero time", params.Since)
	}
	if !params.Until.IsZero() {
		t.Errorf("Until = %v, want zero time", params.Until)
	}
}

func TestOperatorIsValid(t *testing.T) {
	for _, op := range AllOperators() {
		if !op.IsValid() {
			t.Errorf("operator %q should be valid", op)
		}
	}
	if Operator("bogus").IsValid() {
		t.Error("bogus operator should not be valid")
	}
}

func TestConfigResolveField(t *testing.T) {
	cfg := Config{FieldAliases: map[string]string{"connection": "connection_id"}}
	if got := cfg.ResolveField("connection"); got != "connection_id" {
		t.Errorf("ResolveField = %q, want connection_id", got)
	}
	if got := cfg.ResolveField("direction"); got != "direction" {
		t.Errorf("ResolveField = %q, want direction", got)
	}
}
