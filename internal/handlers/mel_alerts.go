package handlers

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/engclin/melwatch/internal/api"
	"github.com/engclin/melwatch/internal/database"
	"github.com/engclin/melwatch/internal/export"
	"github.com/engclin/melwatch/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// alertFilter reads status and sector_id. Status defaults to active; "all"
// lifts the status filter.
func alertFilter(w http.ResponseWriter, r *http.Request) (services.AlertFilter, bool) {
	q := r.URL.Query()
	filter := services.AlertFilter{SectorID: q.Get("sector_id")}

	switch status := q.Get("status"); status {
	case "", string(database.MelAlertStatusActive):
		filter.Status = database.MelAlertStatusActive
	case string(database.MelAlertStatusResolved):
		filter.Status = database.MelAlertStatusResolved
	case "all":
	default:
		api.RespondValidationError(w, map[string]string{"status": "must be one of: active, resolved, all"})
		return filter, false
	}
	return filter, true
}

// handleListAlerts handles GET /api/mel/alerts
func (h *MelHandler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	filter, ok := alertFilter(w, r)
	if !ok {
		return
	}
	page := api.ParsePagination(r)
	filter.Limit = page.Limit()
	filter.Offset = page.Offset()

	alerts, total, err := h.mel.ListAlerts(r.Context(), filter)
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	if alerts == nil {
		alerts = []database.MelAlert{}
	}
	api.RespondJSON(w, http.StatusOK, api.AlertListResponse{Data: alerts, Pagination: page.Meta(total)})
}

// handleGetAlert handles GET /api/mel/alerts/{id}
func (h *MelHandler) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathID(r, "id")
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	alert, err := h.mel.GetAlert(r.Context(), id)
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, alert)
}

// handleExportAlerts handles GET /api/mel/alerts/export.xlsx
func (h *MelHandler) handleExportAlerts(w http.ResponseWriter, r *http.Request) {
	filter, ok := alertFilter(w, r)
	if !ok {
		return
	}

	alerts, _, err := h.mel.ListAlerts(r.Context(), filter)
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}

	now := time.Now().UTC()
	data, err := export.BuildAlertsXLSX(alerts, now)
	if err != nil {
		api.RespondServiceError(w, fmt.Errorf("failed to build alert workbook: %w", err))
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="mel-alerts-%s.xlsx"`, now.Format("20060102-150405")))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("failed to write alert export", zap.Error(err))
	}
}
