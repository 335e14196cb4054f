package handlers

import (
	"net/http"
	"strconv"

	"github.com/engclin/melwatch/internal/api"
	"github.com/engclin/melwatch/internal/middleware"
	"github.com/engclin/melwatch/internal/services"
)

func ruleInput(req api.RuleRequest, actor string) services.RuleInput {
	in := services.RuleInput{
		SectorID:           req.SectorID,
		SectorName:         req.SectorName,
		EquipmentGroupKey:  req.EquipmentGroupKey,
		EquipmentGroupName: req.EquipmentGroupName,
		CustomMembership:   req.CustomMembership,
		Justification:      req.Justification,
		Active:             req.Active,
		Actor:              actor,
	}
	if req.MinimumQuantity != nil {
		in.MinimumQuantity = *req.MinimumQuantity
	}
	return in
}

// handleListRules handles GET /api/mel/rules?sector_id=&active=
func (h *MelHandler) handleListRules(w http.ResponseWriter, r *http.Request) {
	filter := services.RuleFilter{SectorID: r.URL.Query().Get("sector_id")}
	if raw := r.URL.Query().Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			api.RespondValidationError(w, map[string]string{"active": "must be true or false"})
			return
		}
		filter.Active = &active
	}

	rules, err := h.rules.List(r.Context(), filter)
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, api.RulesToResponses(rules))
}

// handleCreateRule handles POST /api/mel/rules
func (h *MelHandler) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req api.RuleRequest
	if !api.DecodeAndValidate(w, r, &req) {
		return
	}

	rule, err := h.rules.Create(r.Context(), ruleInput(req, middleware.GetUserFromContext(r.Context())))
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusCreated, api.RuleToResponse(*rule))
}

// handleGetRule handles GET /api/mel/rules/{id}
func (h *MelHandler) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathID(r, "id")
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule, err := h.rules.Get(r.Context(), id)
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, api.RuleToResponse(*rule))
}

// handleUpdateRule handles PUT /api/mel/rules/{id}
func (h *MelHandler) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathID(r, "id")
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req api.RuleRequest
	if !api.DecodeAndValidate(w, r, &req) {
		return
	}

	rule, err := h.rules.Update(r.Context(), id, ruleInput(req, middleware.GetUserFromContext(r.Context())))
	if err != nil {
		api.RespondServiceError(w, err)
		return
	}
	api.RespondJSON(w, http.StatusOK, api.RuleToResponse(*rule))
}

// handleDeleteRule handles DELETE /api/mel/rules/{id}
func (h *MelHandler) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := api.PathID(r, "id")
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.rules.Delete(r.Context(), id); err != nil {
		api.RespondServiceError(w, err)
		return
	}
	api.RespondNoContent(w)
}

// handleSetRuleActive handles POST /api/mel/rules/{id}/activate and /deactivate
func (h *MelHandler) handleSetRuleActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := api.PathID(r, "id")
		if err != nil {
			api.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}

		rule, err := h.rules.SetActive(r.Context(), id, active, middleware.GetUserFromContext(r.Context()))
		if err != nil {
			api.RespondServiceError(w, err)
			return
		}
		api.RespondJSON(w, http.StatusOK, api.RuleToResponse(*rule))
	}
}
