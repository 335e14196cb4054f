package api

import (
	"github.com/engclin/melwatch/internal/database"
	"github.com/engclin/melwatch/internal/mel"
)

// RuleToResponse converts a stored rule to its API view. Stored membership
// that no longer parses is reported as empty, the same way evaluation
// ignores it.
func RuleToResponse(r database.MelRule) RuleResponse {
	members, err := mel.ParseMembership(r.CustomMembership)
	if err != nil || members == nil {
		members = []string{}
	}
	return RuleResponse{
		ID:                 r.ID,
		SectorID:           r.SectorID,
		SectorName:         r.SectorName,
		EquipmentGroupKey:  r.EquipmentGroupKey,
		EquipmentGroupName: r.EquipmentGroupName,
		MinimumQuantity:    r.MinimumQuantity,
		CustomMembership:   members,
		Justification:      r.Justification,
		Active:             r.Active,
		CreatedBy:          r.CreatedBy,
		UpdatedBy:          r.UpdatedBy,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

// RulesToResponses converts a slice of rules.
func RulesToResponses(rules []database.MelRule) []RuleResponse {
	items := make([]RuleResponse, len(rules))
	for i, r := range rules {
		items[i] = RuleToResponse(r)
	}
	return items
}

// GroupsToResponses converts catalog definitions.
func GroupsToResponses(groups []mel.GroupDefinition) []GroupDefinitionResponse {
	items := make([]GroupDefinitionResponse, len(groups))
	for i, g := range groups {
		items[i] = GroupDefinitionResponse{Key: g.Key, DisplayName: g.DisplayName, Patterns: g.Patterns}
	}
	return items
}
