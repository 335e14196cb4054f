package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/engclin/melwatch/internal/database"
	"github.com/engclin/melwatch/internal/mel"
)

// AlertRepository is the alert persistence used by the reconciler.
type AlertRepository interface {
	ListActive(ctx context.Context) ([]database.MelAlert, error)
	FindActive(ctx context.Context, sectorID, groupKey string) (*database.MelAlert, error)
	Create(ctx context.Context, alert *database.MelAlert) error
	UpdateActive(ctx context.Context, id uint, changes AlertChanges, at time.Time) error
	Resolve(ctx context.Context, id uint, at time.Time) (bool, error)
}

// AlertChanges are the mutable fields of an active alert.
type AlertChanges struct {
	CurrentAvailable   int
	MinimumQuantity    int
	EquipmentGroupName string
}

// AlertFilter narrows ListAlerts. Empty fields match everything.
type AlertFilter struct {
	Status   database.MelAlertStatus
	SectorID string
	Limit    int
	Offset   int
}

// AlertStore persists MEL alerts with gorm
type AlertStore struct {
	db *gorm.DB
}

// NewAlertStore creates a new AlertStore
func NewAlertStore(db *gorm.DB) *AlertStore {
	return &AlertStore{db: db}
}

// ListActive returns every active alert ordered by sector and group
func (s *AlertStore) ListActive(ctx context.Context) ([]database.MelAlert, error) {
	var alerts []database.MelAlert
	err := s.db.WithContext(ctx).
		Where("status = ?", database.MelAlertStatusActive).
		Order("sector_id, equipment_group_key, id").
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	return alerts, nil
}

// FindActive returns the active alert for a sector and group
func (s *AlertStore) FindActive(ctx context.Context, sectorID, groupKey string) (*database.MelAlert, error) {
	var alert database.MelAlert
	err := s.db.WithContext(ctx).
		Where("sector_id = ? AND equipment_group_key = ? AND status = ?", sectorID, groupKey, database.MelAlertStatusActive).
		First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &mel.NotFoundError{Resource: "active alert", ID: sectorID + "/" + groupKey}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active alert: %w", err)
	}
	return &alert, nil
}

// Get returns an alert by id
func (s *AlertStore) Get(ctx context.Context, id uint) (*database.MelAlert, error) {
	var alert database.MelAlert
	err := s.db.WithContext(ctx).First(&alert, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &mel.NotFoundError{Resource: "alert", ID: strconv.FormatUint(uint64(id), 10)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return &alert, nil
}

// List returns alerts matching the filter, newest first, and the total count
func (s *AlertStore) List(ctx context.Context, filter AlertFilter) ([]database.MelAlert, int64, error) {
	query := s.db.WithContext(ctx).Model(&database.MelAlert{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.SectorID != "" {
		query = query.Where("sector_id = ?", filter.SectorID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}
	var alerts []database.MelAlert
	if err := query.Order("created_at DESC, id DESC").Find(&alerts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, total, nil
}

// Create inserts a new active alert. A second active alert for the same
// sector and group is rejected with mel.ErrConflict.
func (s *AlertStore) Create(ctx context.Context, alert *database.MelAlert) error {
	alert.Status = database.MelAlertStatusActive
	err := s.db.WithContext(ctx).Create(alert).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: active alert for sector %s group %s already exists", mel.ErrConflict, alert.SectorID, alert.EquipmentGroupKey)
	}
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// UpdateActive rewrites the mutable fields of an active alert
func (s *AlertStore) UpdateActive(ctx context.Context, id uint, changes AlertChanges, at time.Time) error {
	err := s.db.WithContext(ctx).Model(&database.MelAlert{}).
		Where("id = ? AND status = ?", id, database.MelAlertStatusActive).
		Updates(map[string]any{
			"current_available":    changes.CurrentAvailable,
			"minimum_quantity":     changes.MinimumQuantity,
			"equipment_group_name": changes.EquipmentGroupName,
			"updated_at":           at,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}
	return nil
}

// Resolve marks an active alert resolved. It reports false when the alert
// was no longer active.
func (s *AlertStore) Resolve(ctx context.Context, id uint, at time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&database.MelAlert{}).
		Where("id = ? AND status = ?", id, database.MelAlertStatusActive).
		Updates(map[string]any{
			"status":      database.MelAlertStatusResolved,
			"resolved_at": at,
			"updated_at":  at,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to resolve alert: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}
