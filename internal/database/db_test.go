package database

import (
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := Open("sqlite", ":memory:", logger.Silent)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open("mysql", "", logger.Silent); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestMelAlert_BeforeCreateAssignsUUIDAndStatus(t *testing.T) {
	db := setupTestDB(t)

	alert := &MelAlert{SectorID: "10", EquipmentGroupKey: "ventilador-pulmonar", MinimumQuantity: 3, CurrentAvailable: 1}
	if err := db.Create(alert).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	if alert.UUID == "" {
		t.Error("expected UUID to be assigned")
	}
	if !alert.IsActive() {
		t.Errorf("expected default status active, got %s", alert.Status)
	}
}

func TestMelAlert_OneActivePerKey(t *testing.T) {
	db := setupTestDB(t)

	first := &MelAlert{SectorID: "10", EquipmentGroupKey: "ventilador-pulmonar", Status: MelAlertStatusActive}
	if err := db.Create(first).Error; err != nil {
		t.Fatalf("create first: %v", err)
	}

	second := &MelAlert{SectorID: "10", EquipmentGroupKey: "ventilador-pulmonar", Status: MelAlertStatusActive}
	err := db.Create(second).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected duplicated key error, got %v", err)
	}

	// Resolved alerts do not count against the index.
	now := time.Now()
	if err := db.Model(first).Updates(map[string]any{"status": MelAlertStatusResolved, "resolved_at": now}).Error; err != nil {
		t.Fatalf("resolve: %v", err)
	}
	third := &MelAlert{SectorID: "10", EquipmentGroupKey: "ventilador-pulmonar", Status: MelAlertStatusActive}
	if err := db.Create(third).Error; err != nil {
		t.Errorf("expected new active alert after resolve, got %v", err)
	}
}

func TestMelRule_UniqueSectorGroup(t *testing.T) {
	db := setupTestDB(t)

	rule := &MelRule{SectorID: "10", EquipmentGroupKey: "monitor-multiparametrico", MinimumQuantity: 2, Active: true}
	if err := db.Create(rule).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := &MelRule{SectorID: "10", EquipmentGroupKey: "monitor-multiparametrico", MinimumQuantity: 1}
	if err := db.Create(dup).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("expected duplicated key error, got %v", err)
	}
}

func TestMelRule_InactiveIsPersisted(t *testing.T) {
	db := setupTestDB(t)

	rule := &MelRule{SectorID: "10", EquipmentGroupKey: "oximetro", Active: false}
	if err := db.Create(rule).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	var loaded MelRule
	if err := db.First(&loaded, rule.ID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Active {
		t.Error("expected inactive rule to stay inactive")
	}
}
