package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/engclin/melwatch/internal/database"
	"github.com/engclin/melwatch/internal/mel"
	"github.com/engclin/melwatch/internal/metrics"
	"github.com/engclin/melwatch/internal/sources"
)

// ReconcileResult summarizes one pass.
type ReconcileResult struct {
	AlertsCreated  int       `json:"alerts_created"`
	AlertsUpdated  int       `json:"alerts_updated"`
	AlertsResolved int       `json:"alerts_resolved"`
	RulesEvaluated int       `json:"rules_evaluated"`
	RulesFailed    int       `json:"rules_failed"`
	WriteFailures  int       `json:"write_failures"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Changed reports whether the pass wrote any alert.
func (r *ReconcileResult) Changed() bool {
	return r.AlertsCreated+r.AlertsUpdated+r.AlertsResolved > 0
}

// PassPhase identifies where an aborted pass stopped.
type PassPhase string

const (
	PhaseFetchEquipment  PassPhase = "fetch_equipment"
	PhaseFetchWorkOrders PassPhase = "fetch_work_orders"
	PhaseLoadRules       PassPhase = "load_rules"
	PhaseLoadAlerts      PassPhase = "load_alerts"
)

// PassError reports a reconcile pass that stopped before evaluating rules.
// No alert was written.
type PassError struct {
	Phase PassPhase
	Err   error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("reconcile aborted during %s, alert state left unchanged: %v", e.Phase, e.Err)
}

func (e *PassError) Unwrap() error { return e.Err }

type alertKey struct {
	sectorID string
	groupKey string
}

// Reconciler recomputes MEL availability for every active rule and brings
// the stored alerts in line with it. Passes are serialized.
type Reconciler struct {
	equipment  sources.EquipmentSource
	workOrders sources.WorkOrderSource
	rules      RuleLister
	alerts     AlertRepository
	classifier *mel.Classifier
	calculator *mel.Calculator
	notifier   AlertNotifier
	clock      Clock
	logger     *zap.Logger
	afterPass  []func(*ReconcileResult)

	mu sync.Mutex
}

// ReconcilerOption customizes the reconciler.
type ReconcilerOption func(*Reconciler)

// WithNotifier assigns a notifier for alert transitions.
func WithNotifier(notifier AlertNotifier) ReconcilerOption {
	return func(r *Reconciler) { r.notifier = notifier }
}

// WithClock assigns a clock.
func WithClock(clock Clock) ReconcilerOption {
	return func(r *Reconciler) { r.clock = clock }
}

// WithLogger assigns a logger.
func WithLogger(logger *zap.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.logger = logger }
}

// WithCalculator replaces the availability calculator.
func WithCalculator(calculator *mel.Calculator) ReconcilerOption {
	return func(r *Reconciler) { r.calculator = calculator }
}

// WithAfterPass registers a hook called after every completed pass.
func WithAfterPass(hook func(*ReconcileResult)) ReconcilerOption {
	return func(r *Reconciler) { r.afterPass = append(r.afterPass, hook) }
}

// NewReconciler constructs a reconciler.
func NewReconciler(equipment sources.EquipmentSource, workOrders sources.WorkOrderSource, rules RuleLister, alerts AlertRepository, classifier *mel.Classifier, opts ...ReconcilerOption) (*Reconciler, error) {
	if equipment == nil || workOrders == nil {
		return nil, errors.New("reconciler: nil source")
	}
	if rules == nil || alerts == nil {
		return nil, errors.New("reconciler: nil store")
	}
	if classifier == nil {
		return nil, errors.New("reconciler: nil classifier")
	}
	r := &Reconciler{
		equipment:  equipment,
		workOrders: workOrders,
		rules:      rules,
		alerts:     alerts,
		classifier: classifier,
		calculator: mel.NewCalculator(),
		clock:      systemClock{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Reconcile runs one full pass. On a *PassError the stored alerts are
// unchanged and no result is returned.
func (r *Reconciler) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	result := &ReconcileResult{StartedAt: r.clock.Now()}
	activeAfter, err := r.run(ctx, result)
	result.FinishedAt = r.clock.Now()

	if err != nil {
		metrics.ObserveReconcile(metrics.ResultAborted, time.Since(start))
		r.logger.Error("reconcile pass aborted", zap.Error(err))
		return nil, err
	}

	outcome := metrics.ResultSuccess
	if result.RulesFailed > 0 || result.WriteFailures > 0 {
		outcome = metrics.ResultError
	}
	metrics.ObserveReconcile(outcome, time.Since(start))
	metrics.AddRuleFailures(result.RulesFailed)
	metrics.AddAlertTransitions(string(AlertEventCreated), result.AlertsCreated)
	metrics.AddAlertTransitions(string(AlertEventUpdated), result.AlertsUpdated)
	metrics.AddAlertTransitions(string(AlertEventResolved), result.AlertsResolved)
	metrics.SetActiveAlerts(activeAfter)

	r.logger.Info("reconcile pass completed",
		zap.Int("rules_evaluated", result.RulesEvaluated),
		zap.Int("rules_failed", result.RulesFailed),
		zap.Int("alerts_created", result.AlertsCreated),
		zap.Int("alerts_updated", result.AlertsUpdated),
		zap.Int("alerts_resolved", result.AlertsResolved),
		zap.Duration("duration", time.Since(start)))

	for _, hook := range r.afterPass {
		hook(result)
	}
	return result, nil
}

// run performs the pass and returns the number of active alerts left.
func (r *Reconciler) run(ctx context.Context, result *ReconcileResult) (int, error) {
	equipment, err := r.equipment.FetchEquipment(ctx)
	if err != nil {
		return 0, &PassError{Phase: PhaseFetchEquipment, Err: err}
	}
	workOrders, err := r.workOrders.FetchWorkOrders(ctx)
	if err != nil {
		return 0, &PassError{Phase: PhaseFetchWorkOrders, Err: err}
	}
	rules, err := r.rules.ListActiveRules(ctx)
	if err != nil {
		return 0, &PassError{Phase: PhaseLoadRules, Err: err}
	}
	active, err := r.alerts.ListActive(ctx)
	if err != nil {
		return 0, &PassError{Phase: PhaseLoadAlerts, Err: err}
	}
	activeAfter := len(active)

	current := make(map[alertKey]*database.MelAlert, len(active))
	for i := range active {
		a := &active[i]
		key := alertKey{a.SectorID, a.EquipmentGroupKey}
		prev, dup := current[key]
		if !dup {
			current[key] = a
			continue
		}
		// Keep the newest alert for a key and resolve the rest.
		stale := a
		if a.ID > prev.ID {
			current[key], stale = a, prev
		}
		if r.resolve(ctx, result, stale, false) {
			activeAfter--
		}
	}

	inventory := mel.NewInventory(equipment)
	bySector := make(map[string][]mel.Equipment)
	for _, e := range equipment {
		bySector[e.SectorID] = append(bySector[e.SectorID], e)
	}

	governed := make(map[alertKey]struct{}, len(rules))
	for _, rule := range rules {
		key := alertKey{rule.SectorID, rule.EquipmentGroupKey}
		governed[key] = struct{}{}

		availability, err := r.evaluate(bySector[rule.SectorID], inventory, rule, workOrders)
		if err != nil {
			result.RulesFailed++
			r.logger.Warn("rule evaluation failed, alert left untouched",
				zap.Uint("rule_id", rule.ID),
				zap.String("sector_id", rule.SectorID),
				zap.String("group_key", rule.EquipmentGroupKey),
				zap.Error(err))
			continue
		}
		result.RulesEvaluated++
		activeAfter += r.apply(ctx, result, rule, availability, current[key])
	}

	for i := range active {
		a := &active[i]
		key := alertKey{a.SectorID, a.EquipmentGroupKey}
		if current[key] != a {
			continue
		}
		if _, ok := governed[key]; ok {
			continue
		}
		if r.resolve(ctx, result, a, true) {
			activeAfter--
		}
	}
	return activeAfter, nil
}

func (r *Reconciler) evaluate(sectorEquipment []mel.Equipment, inventory mel.Inventory, rule database.MelRule, workOrders []mel.WorkOrder) (availability mel.Availability, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while evaluating rule: %v", p)
		}
	}()
	members, err := r.classifier.Classify(sectorEquipment, evaluationRule(rule))
	if err != nil {
		return mel.Availability{}, err
	}
	return r.calculator.ComputeWithInventory(members, workOrders, inventory), nil
}

// apply writes the transition for one evaluated rule and returns the change
// in active alert count.
func (r *Reconciler) apply(ctx context.Context, result *ReconcileResult, rule database.MelRule, availability mel.Availability, alert *database.MelAlert) int {
	violating := availability.Violates(rule.MinimumQuantity)
	switch {
	case alert == nil && violating:
		if r.create(ctx, result, rule, availability) {
			return 1
		}
	case alert != nil && violating:
		r.update(ctx, result, rule, availability, alert)
	case alert != nil && !violating:
		if r.resolve(ctx, result, alert, false) {
			return -1
		}
	}
	return 0
}

func (r *Reconciler) groupName(rule database.MelRule) string {
	if rule.EquipmentGroupName != "" {
		return rule.EquipmentGroupName
	}
	if def, ok := r.classifier.Catalog().Group(rule.EquipmentGroupKey); ok {
		return def.DisplayName
	}
	return rule.EquipmentGroupKey
}

func (r *Reconciler) create(ctx context.Context, result *ReconcileResult, rule database.MelRule, availability mel.Availability) bool {
	now := r.clock.Now()
	alert := &database.MelAlert{
		SectorID:           rule.SectorID,
		EquipmentGroupKey:  rule.EquipmentGroupKey,
		EquipmentGroupName: r.groupName(rule),
		MinimumQuantity:    rule.MinimumQuantity,
		CurrentAvailable:   availability.Available,
		Status:             database.MelAlertStatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	err := r.alerts.Create(ctx, alert)
	if errors.Is(err, mel.ErrConflict) {
		// Another process opened the alert first; converge on it.
		existing, findErr := r.alerts.FindActive(ctx, rule.SectorID, rule.EquipmentGroupKey)
		if findErr != nil {
			result.WriteFailures++
			r.logger.Error("failed to load concurrently created alert", zap.Error(findErr))
			return false
		}
		r.update(ctx, result, rule, availability, existing)
		return true
	}
	if err != nil {
		result.WriteFailures++
		r.logger.Error("failed to create alert",
			zap.String("sector_id", rule.SectorID),
			zap.String("group_key", rule.EquipmentGroupKey),
			zap.Error(err))
		return false
	}

	result.AlertsCreated++
	r.logger.Info("MEL alert created",
		zap.String("sector_id", alert.SectorID),
		zap.String("group_key", alert.EquipmentGroupKey),
		zap.Int("available", alert.CurrentAvailable),
		zap.Int("minimum", alert.MinimumQuantity))
	r.notify(ctx, AlertEvent{Type: AlertEventCreated, Alert: *alert})
	return true
}

func (r *Reconciler) update(ctx context.Context, result *ReconcileResult, rule database.MelRule, availability mel.Availability, alert *database.MelAlert) {
	changes := AlertChanges{
		CurrentAvailable:   availability.Available,
		MinimumQuantity:    rule.MinimumQuantity,
		EquipmentGroupName: r.groupName(rule),
	}
	if alert.CurrentAvailable == changes.CurrentAvailable &&
		alert.MinimumQuantity == changes.MinimumQuantity &&
		alert.EquipmentGroupName == changes.EquipmentGroupName {
		return
	}

	now := r.clock.Now()
	if err := r.alerts.UpdateActive(ctx, alert.ID, changes, now); err != nil {
		result.WriteFailures++
		r.logger.Error("failed to update alert", zap.Uint("alert_id", alert.ID), zap.Error(err))
		return
	}

	previous := alert.CurrentAvailable
	updated := *alert
	updated.CurrentAvailable = changes.CurrentAvailable
	updated.MinimumQuantity = changes.MinimumQuantity
	updated.EquipmentGroupName = changes.EquipmentGroupName
	updated.UpdatedAt = now

	result.AlertsUpdated++
	r.notify(ctx, AlertEvent{Type: AlertEventUpdated, Alert: updated, PreviousAvailable: &previous})
}

func (r *Reconciler) resolve(ctx context.Context, result *ReconcileResult, alert *database.MelAlert, orphaned bool) bool {
	now := r.clock.Now()
	resolved, err := r.alerts.Resolve(ctx, alert.ID, now)
	if err != nil {
		result.WriteFailures++
		r.logger.Error("failed to resolve alert", zap.Uint("alert_id", alert.ID), zap.Error(err))
		return false
	}
	if !resolved {
		return false
	}

	closed := *alert
	closed.Status = database.MelAlertStatusResolved
	closed.ResolvedAt = &now
	closed.UpdatedAt = now

	result.AlertsResolved++
	r.logger.Info("MEL alert resolved",
		zap.String("sector_id", alert.SectorID),
		zap.String("group_key", alert.EquipmentGroupKey),
		zap.Bool("orphaned", orphaned))
	r.notify(ctx, AlertEvent{Type: AlertEventResolved, Alert: closed, Orphaned: orphaned})
	return true
}

func (r *Reconciler) notify(ctx context.Context, event AlertEvent) {
	if r.notifier == nil {
		return
	}
	r.notifier.Notify(ctx, event)
}
