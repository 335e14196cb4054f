package services

import (
	"context"
	"time"

	"github.com/engclin/melwatch/internal/database"
)

// AlertEventType names an alert transition.
type AlertEventType string

const (
	AlertEventCreated  AlertEventType = "created"
	AlertEventUpdated  AlertEventType = "updated"
	AlertEventResolved AlertEventType = "resolved"
)

// AlertEvent describes one transition written by the reconciler.
// PreviousAvailable is set on updates.
type AlertEvent struct {
	Type              AlertEventType    `json:"type"`
	Alert             database.MelAlert `json:"alert"`
	PreviousAvailable *int              `json:"previous_available,omitempty"`
	Orphaned          bool              `json:"orphaned,omitempty"`
}

// AlertNotifier publishes alert transitions.
type AlertNotifier interface {
	Notify(ctx context.Context, event AlertEvent)
}

// MultiNotifier fans events out to several notifiers.
type MultiNotifier struct {
	notifiers []AlertNotifier
}

// NewMultiNotifier constructs a MultiNotifier. Nil entries are skipped.
func NewMultiNotifier(notifiers ...AlertNotifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Notify forwards the event to every notifier.
func (m *MultiNotifier) Notify(ctx context.Context, event AlertEvent) {
	if m == nil {
		return
	}
	for _, n := range m.notifiers {
		if n != nil {
			n.Notify(ctx, event)
		}
	}
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
