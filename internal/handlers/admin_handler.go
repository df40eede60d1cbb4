package handlers

import (
	"net/http"

	"travel-backend/internal/models"
	"travel-backend/internal/services"
	"travel-backend/pkg/utils"

	"go.uber.org/zap"
)

type AdminHandler struct {
	Balances *services.BalanceService
	Logger   *zap.Logger
}

func NewAdminHandler(balances *services.BalanceService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{Balances: balances, Logger: logger}
}

// Reconcile recalculates every account of the caller's organization (?kind= narrows it)
// and reports the ones whose cached balance had drifted
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	var kind models.AccountKind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		k, err := services.ParseAccountKind(raw)
		if err != nil {
			writeError(w, r, h.Logger, "Reconcile", err)
			return
		}
		kind = k
	}
	report, err := h.Balances.ReconcileOrg(r.Context(), orgID, kind)
	if err != nil {
		writeError(w, r, h.Logger, "Reconcile", err)
		return
	}
	utils.JSON(w, http.StatusOK, report)
}
