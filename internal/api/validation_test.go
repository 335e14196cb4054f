package api

import (
	"strings"
	"testing"
)

func intPtr(n int) *int { return &n }

func validRuleRequest() RuleRequest {
	return RuleRequest{
		SectorID:          "10",
		EquipmentGroupKey: "ventilador-pulmonar",
		MinimumQuantity:   intPtr(4),
	}
}

func TestValidate_RuleRequest(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*RuleRequest)
		wantField string
		wantMsg   string
	}{
		{"valid", func(*RuleRequest) {}, "", ""},
		{"zero minimum allowed", func(r *RuleRequest) { r.MinimumQuantity = intPtr(0) }, "", ""},
		{"missing sector", func(r *RuleRequest) { r.SectorID = "" }, "sector_id", "is required"},
		{"missing minimum", func(r *RuleRequest) { r.MinimumQuantity = nil }, "minimum_quantity", "is required"},
		{"negative minimum", func(r *RuleRequest) { r.MinimumQuantity = intPtr(-1) }, "minimum_quantity", "must be 0 or greater"},
		{"long group key", func(r *RuleRequest) { r.EquipmentGroupKey = strings.Repeat("g", 129) }, "equipment_group_key", "must be at most 128 characters"},
		{"blank member", func(r *RuleRequest) { r.CustomMembership = []string{"101", ""} }, "custom_membership[1]", "is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRuleRequest()
			tt.mutate(&req)
			errs := Validate(req)
			if tt.wantField == "" {
				if errs != nil {
					t.Errorf("expected no errors, got %v", errs)
				}
				return
			}
			if errs[tt.wantField] != tt.wantMsg {
				t.Errorf("errs[%s] = %q, want %q (all: %v)", tt.wantField, errs[tt.wantField], tt.wantMsg, errs)
			}
		})
	}
}

func TestValidate_LoginRequest(t *testing.T) {
	errs := Validate(LoginRequest{})
	if errs["username"] != "is required" || errs["password"] != "is required" {
		t.Errorf("unexpected errors %v", errs)
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"SectorID", "sector_i_d"},
		{"MinimumQuantity", "minimum_quantity"},
		{"name", "name"},
	}
	for _, tt := range tests {
		if got := toSnakeCase(tt.input); got != tt.want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
