package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/engclin/melwatch/internal/database"
	"github.com/engclin/melwatch/internal/mel"
)

// RuleLister loads the rules a reconcile pass evaluates.
type RuleLister interface {
	ListActiveRules(ctx context.Context) ([]database.MelRule, error)
}

// RuleInput carries the editable fields of a MEL rule.
type RuleInput struct {
	SectorID           string
	SectorName         string
	EquipmentGroupKey  string
	EquipmentGroupName string
	MinimumQuantity    int
	CustomMembership   []string
	Justification      string
	Active             *bool
	Actor              string
}

// RuleFilter narrows List. Empty fields match everything.
type RuleFilter struct {
	SectorID string
	Active   *bool
}

// RuleService manages MEL rules
type RuleService struct {
	db      *gorm.DB
	catalog *mel.Catalog
	logger  *zap.Logger

	hooksMu sync.RWMutex
	hooks   []func()
}

// NewRuleService creates a new RuleService
func NewRuleService(db *gorm.DB, catalog *mel.Catalog, logger *zap.Logger) *RuleService {
	if catalog == nil {
		catalog = mel.DefaultCatalog()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleService{db: db, catalog: catalog, logger: logger}
}

// OnChange registers a hook run after every successful rule mutation
func (s *RuleService) OnChange(hook func()) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks = append(s.hooks, hook)
}

func (s *RuleService) changed() {
	s.hooksMu.RLock()
	hooks := append([]func(){}, s.hooks...)
	s.hooksMu.RUnlock()
	for _, h := range hooks {
		h()
	}
}

// validate checks the input and returns it trimmed and with defaults applied
func (s *RuleService) validate(in RuleInput) (RuleInput, error) {
	fields := make(map[string]string)

	in.SectorID = strings.TrimSpace(in.SectorID)
	in.EquipmentGroupKey = strings.TrimSpace(in.EquipmentGroupKey)
	in.EquipmentGroupName = strings.TrimSpace(in.EquipmentGroupName)

	if in.SectorID == "" {
		fields["sector_id"] = "is required"
	} else if len(in.SectorID) > 64 {
		fields["sector_id"] = "must be at most 64 characters"
	}
	if in.EquipmentGroupKey == "" {
		fields["equipment_group_key"] = "is required"
	} else if len(in.EquipmentGroupKey) > 128 {
		fields["equipment_group_key"] = "must be at most 128 characters"
	}
	if in.MinimumQuantity < 0 {
		fields["minimum_quantity"] = "must be zero or greater"
	}

	members := make([]string, 0, len(in.CustomMembership))
	for _, id := range in.CustomMembership {
		id = strings.TrimSpace(id)
		if id == "" {
			fields["custom_membership"] = "must not contain empty ids"
			break
		}
		members = append(members, id)
	}
	in.CustomMembership = members

	def, known := s.catalog.Group(in.EquipmentGroupKey)
	if in.EquipmentGroupKey != "" && !known && len(members) == 0 {
		fields["equipment_group_key"] = "is not a known equipment group; provide a custom membership"
	}

	if len(fields) > 0 {
		return in, &mel.ValidationError{Fields: fields}
	}

	if in.EquipmentGroupName == "" {
		if known {
			in.EquipmentGroupName = def.DisplayName
		} else {
			in.EquipmentGroupName = in.EquipmentGroupKey
		}
	}
	return in, nil
}

// Create validates and stores a new rule. New rules are active unless
// Active is explicitly false.
func (s *RuleService) Create(ctx context.Context, in RuleInput) (*database.MelRule, error) {
	in, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	rule := &database.MelRule{
		SectorID:           in.SectorID,
		SectorName:         in.SectorName,
		EquipmentGroupKey:  in.EquipmentGroupKey,
		EquipmentGroupName: in.EquipmentGroupName,
		MinimumQuantity:    in.MinimumQuantity,
		CustomMembership:   mel.EncodeMembership(in.CustomMembership),
		Justification:      in.Justification,
		Active:             in.Active == nil || *in.Active,
		CreatedBy:          in.Actor,
		UpdatedBy:          in.Actor,
	}
	if err := s.db.WithContext(ctx).Create(rule).Error; err != nil {
		return nil, translateRuleError(err, in)
	}

	s.logger.Info("MEL rule created",
		zap.Uint("rule_id", rule.ID),
		zap.String("sector_id", rule.SectorID),
		zap.String("group_key", rule.EquipmentGroupKey),
		zap.Int("minimum_quantity", rule.MinimumQuantity))
	s.changed()
	return rule, nil
}

// Update replaces the editable fields of a rule. Active is left unchanged
// when nil.
func (s *RuleService) Update(ctx context.Context, id uint, in RuleInput) (*database.MelRule, error) {
	in, err := s.validate(in)
	if err != nil {
		return nil, err
	}
	rule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"sector_id":            in.SectorID,
		"sector_name":          in.SectorName,
		"equipment_group_key":  in.EquipmentGroupKey,
		"equipment_group_name": in.EquipmentGroupName,
		"minimum_quantity":     in.MinimumQuantity,
		"custom_membership":    mel.EncodeMembership(in.CustomMembership),
		"justification":        in.Justification,
		"updated_by":           in.Actor,
	}
	if in.Active != nil {
		updates["active"] = *in.Active
	}
	if err := s.db.WithContext(ctx).Model(rule).Updates(updates).Error; err != nil {
		return nil, translateRuleError(err, in)
	}

	s.logger.Info("MEL rule updated", zap.Uint("rule_id", id))
	s.changed()
	return s.Get(ctx, id)
}

// SetActive activates or soft-deactivates a rule
func (s *RuleService) SetActive(ctx context.Context, id uint, active bool, actor string) (*database.MelRule, error) {
	rule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Model(rule).Updates(map[string]any{"active": active, "updated_by": actor}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}

	s.logger.Info("MEL rule active flag changed", zap.Uint("rule_id", id), zap.Bool("active", active))
	s.changed()
	return s.Get(ctx, id)
}

// Delete removes a rule permanently. Its alert is resolved by the next
// reconcile pass.
func (s *RuleService) Delete(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&database.MelRule{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete rule: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &mel.NotFoundError{Resource: "rule", ID: strconv.FormatUint(uint64(id), 10)}
	}

	s.logger.Info("MEL rule deleted", zap.Uint("rule_id", id))
	s.changed()
	return nil
}

// Get returns a rule by id
func (s *RuleService) Get(ctx context.Context, id uint) (*database.MelRule, error) {
	var rule database.MelRule
	err := s.db.WithContext(ctx).First(&rule, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &mel.NotFoundError{Resource: "rule", ID: strconv.FormatUint(uint64(id), 10)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return &rule, nil
}

// List returns rules matching the filter ordered by sector and group
func (s *RuleService) List(ctx context.Context, filter RuleFilter) ([]database.MelRule, error) {
	query := s.db.WithContext(ctx).Model(&database.MelRule{})
	if filter.SectorID != "" {
		query = query.Where("sector_id = ?", filter.SectorID)
	}
	if filter.Active != nil {
		query = query.Where("active = ?", *filter.Active)
	}
	var rules []database.MelRule
	if err := query.Order("sector_id, equipment_group_key").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return rules, nil
}

// ListActiveRules implements RuleLister
func (s *RuleService) ListActiveRules(ctx context.Context) ([]database.MelRule, error) {
	active := true
	return s.List(ctx, RuleFilter{Active: &active})
}

func translateRuleError(err error, in RuleInput) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: a rule for sector %s and group %s already exists", mel.ErrConflict, in.SectorID, in.EquipmentGroupKey)
	}
	return fmt.Errorf("failed to save rule: %w", err)
}

// evaluationRule converts a stored rule into its evaluation view
func evaluationRule(r database.MelRule) mel.Rule {
	return mel.Rule{
		SectorID:         r.SectorID,
		GroupKey:         r.EquipmentGroupKey,
		GroupName:        r.EquipmentGroupName,
		MinimumQuantity:  r.MinimumQuantity,
		CustomMembership: r.CustomMembership,
	}
}
