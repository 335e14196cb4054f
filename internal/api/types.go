package api

import (
	"time"

	"github.com/engclin/melwatch/internal/database"
)

// ========== MEL Rule Types ==========

// RuleRequest is the body of rule create and update requests.
// MinimumQuantity is a pointer so an explicit 0 can be told apart from a
// missing field.
type RuleRequest struct {
	SectorID           string   `json:"sector_id" validate:"required,max=64"`
	SectorName         string   `json:"sector_name" validate:"max=255"`
	EquipmentGroupKey  string   `json:"equipment_group_key" validate:"required,max=128"`
	EquipmentGroupName string   `json:"equipment_group_name" validate:"max=255"`
	MinimumQuantity    *int     `json:"minimum_quantity" validate:"required,gte=0"`
	CustomMembership   []string `json:"custom_membership" validate:"omitempty,dive,required,max=64"`
	Justification      string   `json:"justification" validate:"max=2000"`
	Active             *bool    `json:"active"`
}

// RuleResponse is the API view of a rule with its membership decoded.
type RuleResponse struct {
	ID                 uint      `json:"id"`
	SectorID           string    `json:"sector_id"`
	SectorName         string    `json:"sector_name"`
	EquipmentGroupKey  string    `json:"equipment_group_key"`
	EquipmentGroupName string    `json:"equipment_group_name"`
	MinimumQuantity    int       `json:"minimum_quantity"`
	CustomMembership   []string  `json:"custom_membership"`
	Justification      string    `json:"justification"`
	Active             bool      `json:"active"`
	CreatedBy          string    `json:"created_by"`
	UpdatedBy          string    `json:"updated_by"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ========== MEL Group Types ==========

// GroupDefinitionResponse describes one catalog group.
type GroupDefinitionResponse struct {
	Key         string   `json:"key"`
	DisplayName string   `json:"display_name"`
	Patterns    []string `json:"patterns"`
}

// SectorGroupsResponse wraps the group listing of one sector.
type SectorGroupsResponse struct {
	SectorID string      `json:"sector_id"`
	Groups   interface{} `json:"groups"`
}

// ========== MEL Alert Types ==========

// AlertListResponse is the body of the alert listing.
type AlertListResponse struct {
	Data       []database.MelAlert `json:"data"`
	Pagination PaginationMeta      `json:"pagination"`
}

// ========== Auth Types ==========

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents the login response body
type LoginResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

// ========== Pagination Types ==========

// PaginationMeta contains pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}
