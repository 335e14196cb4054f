// Package mel evaluates Minimum Equipment List rules: it classifies a
// sector's equipment into interchangeable groups and computes how many units
// of each group are available given the open corrective work orders.
//
// Everything in this package is pure and operates over immutable snapshots.
// Fetching, persistence and alert bookkeeping live in other packages.
package mel

import "time"

// Equipment is a normalized inventory record.
type Equipment struct {
	ID           string `json:"id"`
	Tag          string `json:"tag"`
	Name         string `json:"name"`
	Model        string `json:"model"`
	Manufacturer string `json:"manufacturer"`
	SectorID     string `json:"sector_id"`
	SectorName   string `json:"sector_name"`
	Status       string `json:"status"`
}

// WorkOrderStatus is the normalized lifecycle state of a work order.
type WorkOrderStatus string

const (
	WorkOrderOpen          WorkOrderStatus = "open"
	WorkOrderClosed        WorkOrderStatus = "closed"
	WorkOrderCancelled     WorkOrderStatus = "cancelled"
	WorkOrderStatusUnknown WorkOrderStatus = "unknown"
)

// MaintenanceType classifies the kind of maintenance a work order describes.
type MaintenanceType string

const (
	MaintenanceCorrective MaintenanceType = "corrective"
	MaintenancePreventive MaintenanceType = "preventive"
	MaintenanceOther      MaintenanceType = "other"
)

// WorkOrder is a normalized maintenance order. EquipmentID and Tag are
// optional; the descriptor fields are used as a last-resort identity.
type WorkOrder struct {
	SerialCode      string          `json:"serial_code"`
	Code            string          `json:"code"`
	EquipmentID     string          `json:"equipment_id,omitempty"`
	Tag             string          `json:"tag,omitempty"`
	Name            string          `json:"name"`
	Model           string          `json:"model"`
	Manufacturer    string          `json:"manufacturer"`
	Status          WorkOrderStatus `json:"status"`
	MaintenanceType MaintenanceType `json:"maintenance_type"`
	OpenedAt        time.Time       `json:"opened_at"`
	ClosedAt        *time.Time      `json:"closed_at,omitempty"`
}

// MakesUnavailable reports whether the order takes its equipment out of
// service: only open corrective orders count.
func (w WorkOrder) MakesUnavailable() bool {
	return w.Status == WorkOrderOpen && w.MaintenanceType == MaintenanceCorrective
}

// GroupDefinition is a named class of interchangeable equipment recognized by
// case-insensitive substring patterns over name, model and manufacturer.
type GroupDefinition struct {
	Key         string   `json:"key" yaml:"key"`
	DisplayName string   `json:"display_name" yaml:"display_name"`
	Patterns    []string `json:"patterns" yaml:"patterns"`
}

// Sector is a care sector known to the catalog, used to resolve sector names
// found in inventory payloads.
type Sector struct {
	ID      string   `json:"id" yaml:"id"`
	Name    string   `json:"name" yaml:"name"`
	Aliases []string `json:"aliases,omitempty" yaml:"aliases"`
}

// Rule is the evaluation view of a MEL rule.
// CustomMembership holds the raw stored membership payload; it is parsed
// leniently at classification time.
type Rule struct {
	SectorID         string
	GroupKey         string
	GroupName        string
	MinimumQuantity  int
	CustomMembership string
}

// Availability is the computed state of one (sector, group) pair.
type Availability struct {
	Total       int `json:"total"`
	Unavailable int `json:"unavailable"`
	Available   int `json:"available"`
}

// Violates reports whether the availability is below the given minimum.
func (a Availability) Violates(minimum int) bool {
	return a.Available < minimum
}
