package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/api/mel/rules", strings.NewReader(body))
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		SectorID        string `json:"sector_id"`
		MinimumQuantity int    `json:"minimum_quantity"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"sector_id":"10","minimum_quantity":4}`, ""},
		{"empty body", "", "request body is empty"},
		{"malformed", `{invalid}`, "malformed JSON"},
		{"wrong type", `{"minimum_quantity":"four"}`, `invalid value for field "minimum_quantity"`},
		{"unknown field", `{"sector":"10"}`, `unknown field "sector"`},
		{"trailing object", `{"sector_id":"10"}{"sector_id":"20"}`, "single JSON object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst payload
			err := DecodeJSON(newRequest(tt.body), &dst)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if dst.SectorID != "10" || dst.MinimumQuantity != 4 {
					t.Errorf("unexpected decode %+v", dst)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeJSON_NilBody(t *testing.T) {
	r, _ := http.NewRequest(http.MethodPost, "/test", nil)
	var dst struct{}
	if err := DecodeJSON(r, &dst); err == nil || err.Error() != "request body is empty" {
		t.Errorf("expected empty body error, got %v", err)
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	big := `{"sector_id":"` + strings.Repeat("a", MaxBodySize) + `"}`
	var dst struct {
		SectorID string `json:"sector_id"`
	}
	err := DecodeJSON(newRequest(big), &dst)
	if err == nil || !strings.Contains(err.Error(), "maximum size") {
		t.Errorf("expected size error, got %v", err)
	}
}

func TestDecodeAndValidate(t *testing.T) {
	w := httptest.NewRecorder()
	var req RuleRequest
	if DecodeAndValidate(w, newRequest(`{"sector_id":"","equipment_group_key":"x"}`), &req) {
		t.Fatal("expected validation to fail")
	}
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"sector_id"`) {
		t.Errorf("expected sector_id in details, got %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	if DecodeAndValidate(w, newRequest(`{`), &req) {
		t.Fatal("expected decode to fail")
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	w = httptest.NewRecorder()
	if !DecodeAndValidate(w, newRequest(`{"sector_id":"10","equipment_group_key":"oximetro","minimum_quantity":2}`), &req) {
		t.Fatalf("expected valid request, got %s", w.Body.String())
	}
}

func TestPathID(t *testing.T) {
	tests := []struct {
		raw     string
		want    uint
		wantErr bool
	}{
		{"7", 7, false},
		{"0", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/mel/rules/x", nil)
		r.SetPathValue("id", tt.raw)
		got, err := PathID(r, "id")
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("PathID(%q) = %d, %v", tt.raw, got, err)
		}
	}
}
