// Package sources fetches equipment inventory and maintenance work orders
// from external systems and normalizes them into mel records.
package sources

import (
	"context"
	"sync"

	"github.com/engclin/melwatch/internal/mel"
)

// Source names used in errors, logs and metrics.
const (
	SourceEquipment  = "equipment"
	SourceWorkOrders = "work_orders"
)

// EquipmentSource returns the full equipment inventory.
type EquipmentSource interface {
	FetchEquipment(ctx context.Context) ([]mel.Equipment, error)
}

// WorkOrderSource returns the work orders relevant to availability.
type WorkOrderSource interface {
	FetchWorkOrders(ctx context.Context) ([]mel.WorkOrder, error)
}

// StaticSource serves fixed, already normalized records. Fields may be
// replaced between passes; each fetch returns a copy.
type StaticSource struct {
	mu            sync.RWMutex
	equipment     []mel.Equipment
	workOrders    []mel.WorkOrder
	equipmentErr  error
	workOrdersErr error
}

// NewStaticSource creates a source serving the given records.
func NewStaticSource(equipment []mel.Equipment, workOrders []mel.WorkOrder) *StaticSource {
	return &StaticSource{equipment: equipment, workOrders: workOrders}
}

// SetEquipment replaces the served equipment.
func (s *StaticSource) SetEquipment(equipment []mel.Equipment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.equipment = equipment
}

// SetWorkOrders replaces the served work orders.
func (s *StaticSource) SetWorkOrders(workOrders []mel.WorkOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workOrders = workOrders
}

// FailEquipment makes FetchEquipment return err until cleared with nil.
func (s *StaticSource) FailEquipment(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.equipmentErr = err
}

// FailWorkOrders makes FetchWorkOrders return err until cleared with nil.
func (s *StaticSource) FailWorkOrders(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workOrdersErr = err
}

// FetchEquipment implements EquipmentSource.
func (s *StaticSource) FetchEquipment(ctx context.Context) ([]mel.Equipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.equipmentErr != nil {
		return nil, &mel.SourceError{Source: SourceEquipment, Err: s.equipmentErr}
	}
	return append([]mel.Equipment(nil), s.equipment...), ctx.Err()
}

// FetchWorkOrders implements WorkOrderSource.
func (s *StaticSource) FetchWorkOrders(ctx context.Context) ([]mel.WorkOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.workOrdersErr != nil {
		return nil, &mel.SourceError{Source: SourceWorkOrders, Err: s.workOrdersErr}
	}
	return append([]mel.WorkOrder(nil), s.workOrders...), ctx.Err()
}
