// Package testhelpers provides additional data builders for testing
package testhelpers

import (
	"fmt"
	"time"

	"github.com/engclin/melwatch/internal/database"
	"github.com/engclin/melwatch/internal/mel"
)

// ========================================
// Equipment Builder
// ========================================

// EquipmentBuilder builds mel.Equipment records for testing
type EquipmentBuilder struct {
	equipment mel.Equipment
}

// NewEquipmentBuilder creates a ventilator in sector 10 with the given id
func NewEquipmentBuilder(id string) *EquipmentBuilder {
	return &EquipmentBuilder{
		equipment: mel.Equipment{
			ID:           id,
			Tag:          "PAT-" + id,
			Name:         "Ventilador Pulmonar",
			Model:        "Servo-i",
			Manufacturer: "Maquet",
			SectorID:     "10",
			SectorName:   "UTI Adulto",
			Status:       "ativo",
		},
	}
}

// WithTag sets the asset tag
func (b *EquipmentBuilder) WithTag(tag string) *EquipmentBuilder {
	b.equipment.Tag = tag
	return b
}

// WithDescriptor sets name, model and manufacturer
func (b *EquipmentBuilder) WithDescriptor(name, model, manufacturer string) *EquipmentBuilder {
	b.equipment.Name = name
	b.equipment.Model = model
	b.equipment.Manufacturer = manufacturer
	return b
}

// InSector sets the sector id
func (b *EquipmentBuilder) InSector(sectorID string) *EquipmentBuilder {
	b.equipment.SectorID = sectorID
	return b
}

// Build returns the constructed equipment
func (b *EquipmentBuilder) Build() mel.Equipment {
	return b.equipment
}

// Ventilators returns n ventilators in sectorID with ids start, start+1, ...
func Ventilators(sectorID string, start, n int) []mel.Equipment {
	out := make([]mel.Equipment, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, NewEquipmentBuilder(fmt.Sprint(start+i)).InSector(sectorID).Build())
	}
	return out
}

// ========================================
// Work Order Builder
// ========================================

// WorkOrderBuilder builds mel.WorkOrder records for testing
type WorkOrderBuilder struct {
	order mel.WorkOrder
}

// NewWorkOrderBuilder creates an open corrective work order
func NewWorkOrderBuilder(serial string) *WorkOrderBuilder {
	return &WorkOrderBuilder{
		order: mel.WorkOrder{
			SerialCode:      serial,
			Code:            serial,
			Status:          mel.WorkOrderOpen,
			MaintenanceType: mel.MaintenanceCorrective,
			OpenedAt:        time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		},
	}
}

// ForEquipment references the equipment by id
func (b *WorkOrderBuilder) ForEquipment(id string) *WorkOrderBuilder {
	b.order.EquipmentID = id
	return b
}

// ForTag references the equipment by tag
func (b *WorkOrderBuilder) ForTag(tag string) *WorkOrderBuilder {
	b.order.Tag = tag
	return b
}

// WithDescriptor sets name, model and manufacturer
func (b *WorkOrderBuilder) WithDescriptor(name, model, manufacturer string) *WorkOrderBuilder {
	b.order.Name = name
	b.order.Model = model
	b.order.Manufacturer = manufacturer
	return b
}

// Preventive marks the order as preventive maintenance
func (b *WorkOrderBuilder) Preventive() *WorkOrderBuilder {
	b.order.MaintenanceType = mel.MaintenancePreventive
	return b
}

// Closed marks the order closed
func (b *WorkOrderBuilder) Closed() *WorkOrderBuilder {
	closedAt := b.order.OpenedAt.Add(24 * time.Hour)
	b.order.Status = mel.WorkOrderClosed
	b.order.ClosedAt = &closedAt
	return b
}

// Build returns the constructed work order
func (b *WorkOrderBuilder) Build() mel.WorkOrder {
	return b.order
}

// ========================================
// MEL Rule Builder
// ========================================

// MelRuleBuilder builds MelRule instances for testing
type MelRuleBuilder struct {
	rule database.MelRule
}

// NewMelRuleBuilder creates an active ventilator rule for sector 10
func NewMelRuleBuilder() *MelRuleBuilder {
	return &MelRuleBuilder{
		rule: database.MelRule{
			SectorID:           "10",
			SectorName:         "UTI Adulto",
			EquipmentGroupKey:  "ventilador-pulmonar",
			EquipmentGroupName: "Ventilador Pulmonar",
			MinimumQuantity:    1,
			Justification:      "test rule",
			Active:             true,
			CreatedBy:          "tester",
			UpdatedBy:          "tester",
		},
	}
}

// WithSector sets the sector id
func (b *MelRuleBuilder) WithSector(sectorID string) *MelRuleBuilder {
	b.rule.SectorID = sectorID
	return b
}

// WithGroup sets the group key and name
func (b *MelRuleBuilder) WithGroup(key, name string) *MelRuleBuilder {
	b.rule.EquipmentGroupKey = key
	b.rule.EquipmentGroupName = name
	return b
}

// WithMinimum sets the minimum quantity
func (b *MelRuleBuilder) WithMinimum(n int) *MelRuleBuilder {
	b.rule.MinimumQuantity = n
	return b
}

// WithMembership sets the raw custom membership payload
func (b *MelRuleBuilder) WithMembership(raw string) *MelRuleBuilder {
	b.rule.CustomMembership = raw
	return b
}

// Inactive marks the rule inactive
func (b *MelRuleBuilder) Inactive() *MelRuleBuilder {
	b.rule.Active = false
	return b
}

// Build returns the constructed rule
func (b *MelRuleBuilder) Build() database.MelRule {
	return b.rule
}

// ========================================
// MEL Alert Builder
// ========================================

// MelAlertBuilder builds MelAlert instances for testing
type MelAlertBuilder struct {
	alert database.MelAlert
}

// NewMelAlertBuilder creates an active ventilator alert for sector 10
func NewMelAlertBuilder() *MelAlertBuilder {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return &MelAlertBuilder{
		alert: database.MelAlert{
			SectorID:           "10",
			EquipmentGroupKey:  "ventilador-pulmonar",
			EquipmentGroupName: "Ventilador Pulmonar",
			MinimumQuantity:    3,
			CurrentAvailable:   1,
			Status:             database.MelAlertStatusActive,
			CreatedAt:          created,
			UpdatedAt:          created,
		},
	}
}

// WithKey sets sector and group key
func (b *MelAlertBuilder) WithKey(sectorID, groupKey string) *MelAlertBuilder {
	b.alert.SectorID = sectorID
	b.alert.EquipmentGroupKey = groupKey
	return b
}

// WithAvailability sets minimum and current availability
func (b *MelAlertBuilder) WithAvailability(minimum, available int) *MelAlertBuilder {
	b.alert.MinimumQuantity = minimum
	b.alert.CurrentAvailable = available
	return b
}

// Resolved marks the alert resolved at the given time
func (b *MelAlertBuilder) Resolved(at time.Time) *MelAlertBuilder {
	b.alert.Status = database.MelAlertStatusResolved
	b.alert.ResolvedAt = &at
	return b
}

// Build returns the constructed alert
func (b *MelAlertBuilder) Build() database.MelAlert {
	return b.alert
}
