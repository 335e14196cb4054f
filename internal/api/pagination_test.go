package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		wantPage    int
		wantPerPage int
	}{
		{"defaults", "", 1, 50},
		{"custom values", "?page=3&per_page=25", 3, 25},
		{"clamped per_page", "?per_page=1000", 1, 200},
		{"invalid values", "?page=abc&per_page=-5", 1, 50},
		{"zero page", "?page=0", 1, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/mel/alerts"+tt.query, nil)
			p := ParsePagination(r)
			if p.Page != tt.wantPage || p.PerPage != tt.wantPerPage {
				t.Errorf("got page=%d per_page=%d, want %d/%d", p.Page, p.PerPage, tt.wantPage, tt.wantPerPage)
			}
		})
	}
}

func TestPaginationParams_OffsetAndPages(t *testing.T) {
	p := PaginationParams{Page: 3, PerPage: 20}
	if p.Offset() != 40 || p.Limit() != 20 {
		t.Errorf("offset/limit = %d/%d, want 40/20", p.Offset(), p.Limit())
	}

	tests := []struct {
		total int64
		want  int
	}{
		{0, 0},
		{1, 1},
		{20, 1},
		{21, 2},
		{100, 5},
	}
	for _, tt := range tests {
		if got := p.TotalPages(tt.total); got != tt.want {
			t.Errorf("TotalPages(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}

	meta := p.Meta(41)
	if meta.Page != 3 || meta.PerPage != 20 || meta.Total != 41 || meta.TotalPages != 3 {
		t.Errorf("unexpected meta %+v", meta)
	}
}
