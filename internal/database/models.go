package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MelRule is a minimum-quantity requirement for one equipment group in one sector.
// CustomMembership holds a JSON array of equipment ids; when present it replaces
// pattern matching for the group.
type MelRule struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	SectorID           string    `gorm:"size:64;not null;uniqueIndex:idx_mel_rules_sector_group" json:"sector_id"`
	SectorName         string    `gorm:"size:255" json:"sector_name"`
	EquipmentGroupKey  string    `gorm:"size:128;not null;uniqueIndex:idx_mel_rules_sector_group" json:"equipment_group_key"`
	EquipmentGroupName string    `gorm:"size:255" json:"equipment_group_name"`
	MinimumQuantity    int       `gorm:"not null" json:"minimum_quantity"`
	CustomMembership   string    `gorm:"type:text" json:"custom_membership,omitempty"`
	Justification      string    `gorm:"type:text" json:"justification"`
	Active             bool      `gorm:"not null;index" json:"active"`
	CreatedBy          string    `gorm:"size:128" json:"created_by"`
	UpdatedBy          string    `gorm:"size:128" json:"updated_by"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// MelAlertStatus is the lifecycle state of a MEL alert
type MelAlertStatus string

const (
	MelAlertStatusActive   MelAlertStatus = "active"
	MelAlertStatusResolved MelAlertStatus = "resolved"
)

// MelAlert records a period during which a sector had fewer available units of
// a group than its rule requires. At most one active alert exists per
// (sector, group); the partial unique index enforces it.
type MelAlert struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	UUID               string         `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	SectorID           string         `gorm:"size:64;not null;index:idx_mel_alerts_active_key,unique,where:status = 'active'" json:"sector_id"`
	EquipmentGroupKey  string         `gorm:"size:128;not null;index:idx_mel_alerts_active_key,unique,where:status = 'active'" json:"equipment_group_key"`
	EquipmentGroupName string         `gorm:"size:255" json:"equipment_group_name"`
	MinimumQuantity    int            `gorm:"not null" json:"minimum_quantity"`
	CurrentAvailable   int            `gorm:"not null" json:"current_available"`
	Status             MelAlertStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	ResolvedAt         *time.Time     `json:"resolved_at,omitempty"`
}

// BeforeCreate assigns a UUID when none was set
func (a *MelAlert) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == "" {
		a.UUID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = MelAlertStatusActive
	}
	return nil
}

// IsActive reports whether the alert is still open
func (a *MelAlert) IsActive() bool {
	return a.Status == MelAlertStatusActive
}

// TableName overrides for explicit table naming
func (MelRule) TableName() string {
	return "mel_rules"
}

func (MelAlert) TableName() string {
	return "mel_alerts"
}
