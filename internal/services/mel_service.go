package services

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/engclin/melwatch/internal/cache"
	"github.com/engclin/melwatch/internal/database"
	"github.com/engclin/melwatch/internal/mel"
	"github.com/engclin/melwatch/internal/sources"
)

const sectorCachePrefix = "sector:"

// GroupSummary is the availability of one equipment group in a sector.
type GroupSummary struct {
	GroupKey         string `json:"group_key"`
	GroupName        string `json:"group_name"`
	Total            int    `json:"total"`
	Available        int    `json:"available"`
	Unavailable      int    `json:"unavailable"`
	MinimumQuantity  int    `json:"minimum_quantity"`
	EmAlerta         bool   `json:"em_alerta"`
	RuleID           *uint  `json:"rule_id,omitempty"`
	CustomMembership bool   `json:"custom_membership"`
}

// MelService answers read queries over MEL groups and alerts.
type MelService struct {
	equipment  sources.EquipmentSource
	workOrders sources.WorkOrderSource
	rules      *RuleService
	alerts     *AlertStore
	classifier *mel.Classifier
	calculator *mel.Calculator
	cache      *cache.Cache[[]GroupSummary]
	logger     *zap.Logger
}

// NewMelService creates a MelService. groupCache may be nil to disable caching.
func NewMelService(equipment sources.EquipmentSource, workOrders sources.WorkOrderSource, rules *RuleService, alerts *AlertStore, classifier *mel.Classifier, groupCache *cache.Cache[[]GroupSummary], logger *zap.Logger) *MelService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MelService{
		equipment:  equipment,
		workOrders: workOrders,
		rules:      rules,
		alerts:     alerts,
		classifier: classifier,
		calculator: mel.NewCalculator(),
		cache:      groupCache,
		logger:     logger,
	}
}

// Catalog returns the group definitions in use.
func (s *MelService) Catalog() *mel.Catalog {
	return s.classifier.Catalog()
}

// Invalidate drops every cached sector listing.
func (s *MelService) Invalidate() {
	if s.cache != nil {
		s.cache.DeleteByPrefix(sectorCachePrefix)
	}
}

// ListGroupsForSector reports availability for every group present in the
// sector. Groups owned by an active rule are classified exactly as the
// reconciler does; the remaining equipment is split across the default
// definitions, first match wins.
func (s *MelService) ListGroupsForSector(ctx context.Context, sectorID string) ([]GroupSummary, error) {
	sectorID = strings.TrimSpace(sectorID)
	if sectorID == "" {
		return nil, mel.NewValidationError("sector_id", "is required")
	}

	key := sectorCachePrefix + sectorID
	var gen uint64
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return cached, nil
		}
		gen = s.cache.Generation()
	}

	equipment, err := s.equipment.FetchEquipment(ctx)
	if err != nil {
		return nil, err
	}
	workOrders, err := s.workOrders.FetchWorkOrders(ctx)
	if err != nil {
		return nil, err
	}
	active := true
	rules, err := s.rules.List(ctx, RuleFilter{SectorID: sectorID, Active: &active})
	if err != nil {
		return nil, err
	}

	var sectorEquipment []mel.Equipment
	for _, e := range equipment {
		if e.SectorID == sectorID {
			sectorEquipment = append(sectorEquipment, e)
		}
	}

	summaries := s.summarize(sectorEquipment, mel.NewInventory(equipment), workOrders, rules)
	if s.cache != nil {
		s.cache.SetIfGeneration(gen, key, summaries)
	}
	return summaries, nil
}

func (s *MelService) summarize(sectorEquipment []mel.Equipment, inventory mel.Inventory, workOrders []mel.WorkOrder, rules []database.MelRule) []GroupSummary {
	summaries := make([]GroupSummary, 0, len(rules))
	owned := make(map[string]struct{}, len(rules))
	claimed := make(map[string]struct{})

	for _, rule := range rules {
		members, err := s.classifier.Classify(sectorEquipment, evaluationRule(rule))
		if err != nil {
			s.logger.Warn("skipping group in sector listing",
				zap.Uint("rule_id", rule.ID),
				zap.String("group_key", rule.EquipmentGroupKey),
				zap.Error(err))
			continue
		}
		owned[rule.EquipmentGroupKey] = struct{}{}

		ids, _ := mel.ParseMembership(rule.CustomMembership)
		if len(ids) > 0 {
			for _, e := range members {
				claimed[e.ID] = struct{}{}
			}
		}

		availability := s.calculator.ComputeWithInventory(members, workOrders, inventory)
		ruleID := rule.ID
		name := rule.EquipmentGroupName
		if name == "" {
			name = rule.EquipmentGroupKey
		}
		summaries = append(summaries, GroupSummary{
			GroupKey:         rule.EquipmentGroupKey,
			GroupName:        name,
			Total:            availability.Total,
			Available:        availability.Available,
			Unavailable:      availability.Unavailable,
			MinimumQuantity:  rule.MinimumQuantity,
			EmAlerta:         availability.Violates(rule.MinimumQuantity),
			RuleID:           &ruleID,
			CustomMembership: len(ids) > 0,
		})
	}

	var remaining []mel.Equipment
	for _, e := range sectorEquipment {
		if _, ok := claimed[e.ID]; !ok {
			remaining = append(remaining, e)
		}
	}
	groups, _ := s.classifier.Partition(remaining)
	for _, g := range groups {
		if _, ok := owned[g.Definition.Key]; ok {
			continue
		}
		availability := s.calculator.ComputeWithInventory(g.Equipment, workOrders, inventory)
		summaries = append(summaries, GroupSummary{
			GroupKey:    g.Definition.Key,
			GroupName:   g.Definition.DisplayName,
			Total:       availability.Total,
			Available:   availability.Available,
			Unavailable: availability.Unavailable,
		})
	}

	definitions := s.classifier.Catalog().Groups()
	rank := make(map[string]int, len(definitions))
	for i, def := range definitions {
		rank[def.Key] = i
	}
	order := func(key string) int {
		if i, ok := rank[key]; ok {
			return i
		}
		return len(definitions)
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		oi, oj := order(summaries[i].GroupKey), order(summaries[j].GroupKey)
		if oi != oj {
			return oi < oj
		}
		return summaries[i].GroupKey < summaries[j].GroupKey
	})
	return summaries
}

// ListActiveAlerts returns every active alert.
func (s *MelService) ListActiveAlerts(ctx context.Context) ([]database.MelAlert, error) {
	return s.alerts.ListActive(ctx)
}

// ListAlerts returns a filtered page of alerts and the total count.
func (s *MelService) ListAlerts(ctx context.Context, filter AlertFilter) ([]database.MelAlert, int64, error) {
	return s.alerts.List(ctx, filter)
}

// GetAlert returns one alert.
func (s *MelService) GetAlert(ctx context.Context, id uint) (*database.MelAlert, error) {
	return s.alerts.Get(ctx, id)
}
