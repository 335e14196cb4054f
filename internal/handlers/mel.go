package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/engclin/melwatch/internal/api"
	"github.com/engclin/melwatch/internal/services"
)

// PassRunner runs one reconcile pass on demand
type PassRunner interface {
	Reconcile(ctx context.Context) (*services.ReconcileResult, error)
}

// MelHandler serves the MEL rules, groups, alerts and reconcile endpoints
type MelHandler struct {
	rules      *services.RuleService
	mel        *services.MelService
	reconciler PassRunner
	logger     *zap.Logger
}

// NewMelHandler creates a new MEL API handler
func NewMelHandler(rules *services.RuleService, melService *services.MelService, reconciler PassRunner, logger *zap.Logger) *MelHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MelHandler{
		rules:      rules,
		mel:        melService,
		reconciler: reconciler,
		logger:     logger,
	}
}

// SetupRoutes sets up all MEL API routes
func (h *MelHandler) SetupRoutes(mux *http.ServeMux) {
	// Rules
	mux.HandleFunc("GET /api/mel/rules", h.handleListRules)
	mux.HandleFunc("POST /api/mel/rules", h.handleCreateRule)
	mux.HandleFunc("GET /api/mel/rules/{id}", h.handleGetRule)
	mux.HandleFunc("PUT /api/mel/rules/{id}", h.handleUpdateRule)
	mux.HandleFunc("DELETE /api/mel/rules/{id}", h.handleDeleteRule)
	mux.HandleFunc("POST /api/mel/rules/{id}/activate", h.handleSetRuleActive(true))
	mux.HandleFunc("POST /api/mel/rules/{id}/deactivate", h.handleSetRuleActive(false))

	// Groups
	mux.HandleFunc("GET /api/mel/groups", h.handleListGroupDefinitions)
	mux.HandleFunc("GET /api/mel/sectors/{sectorId}/groups", h.handleListSectorGroups)

	// Alerts
	mux.HandleFunc("GET /api/mel/alerts", h.handleListAlerts)
	mux.HandleFunc("GET /api/mel/alerts/export.xlsx", h.handleExportAlerts)
	mux.HandleFunc("GET /api/mel/alerts/{id}", h.handleGetAlert)

	// Reconcile
	mux.HandleFunc("POST /api/mel/reconcile", h.handleReconcile)
}

// handleListGroupDefinitions handles GET /api/mel/groups
func (h *MelHandler) handleListGroupDefinitions(w http.ResponseWriter, r *http.Request) {
	api.RespondJSON(w, http.StatusOK, api.GroupsToResponses(h.mel.Catalog().Groups()))
}

// handleListSectorGroups handles GET /api/mel/sectors/{sectorId}/groups
func (h *MelHandler) handleListSectorGroups(w http.ResponseWriter, r *http.Request) {
	sectorID := strings.TrimSpace(r.PathValue("sectorId"))
	groups, err := h.mel.ListGroupsForSector(r.Context(), sectorID)
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	if groups == nil {
		groups = []services.GroupSummary{}
	}
	api.RespondJSON(w, http.StatusOK, api.SectorGroupsResponse{SectorID: sectorID, Groups: groups})
}

// handleReconcile handles POST /api/mel/reconcile and runs a pass synchronously
func (h *MelHandler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconciler.Reconcile(r.Context())
	if err != nil {
		h.logger.Warn("manual reconcile failed", zap.Error(err))
		api.RespondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, result)
}
