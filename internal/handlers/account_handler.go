package handlers

import (
	"net/http"

	"travel-backend/internal/models"
	"travel-backend/internal/services"
	"travel-backend/pkg/utils"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type AccountHandler struct {
	Service  *services.AccountService
	Balances *services.BalanceService
	Logger   *zap.Logger
}

func NewAccountHandler(s *services.AccountService, balances *services.BalanceService, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{Service: s, Balances: balances, Logger: logger}
}

// ref reads {kind} and {id}; it answers 400 itself for an unknown kind
func (h *AccountHandler) ref(w http.ResponseWriter, r *http.Request) (models.AccountRef, bool) {
	kind, err := services.ParseAccountKind(mux.Vars(r)["kind"])
	if err != nil {
		writeError(w, r, h.Logger, "AccountHandler.ref", err)
		return models.AccountRef{}, false
	}
	return models.AccountRef{Kind: kind, ID: mux.Vars(r)["id"]}, true
}

func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	kind, err := services.ParseAccountKind(mux.Vars(r)["kind"])
	if err != nil {
		writeError(w, r, h.Logger, "ListAccounts", err)
		return
	}
	accounts, err := h.Service.List(r.Context(), orgID, kind)
	if err != nil {
		writeError(w, r, h.Logger, "ListAccounts", err)
		return
	}
	if accounts == nil {
		accounts = []*models.Account{}
	}
	utils.JSON(w, http.StatusOK, accounts)
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	kind, err := services.ParseAccountKind(mux.Vars(r)["kind"])
	if err != nil {
		writeError(w, r, h.Logger, "CreateAccount", err)
		return
	}
	var req models.CreateAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	account, err := h.Service.Create(r.Context(), orgID, kind, &req)
	if err != nil {
		writeError(w, r, h.Logger, "CreateAccount", err)
		return
	}
	utils.JSON(w, http.StatusCreated, account)
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	ref, ok := h.ref(w, r)
	if !ok {
		return
	}
	account, err := h.Service.Get(r.Context(), orgID, ref)
	if err != nil {
		writeError(w, r, h.Logger, "GetAccount", err)
		return
	}
	utils.JSON(w, http.StatusOK, account)
}

func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	ref, ok := h.ref(w, r)
	if !ok {
		return
	}
	var req models.UpdateAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	account, err := h.Service.Update(r.Context(), orgID, ref, &req)
	if err != nil {
		writeError(w, r, h.Logger, "UpdateAccount", err)
		return
	}
	utils.JSON(w, http.StatusOK, account)
}

func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	ref, ok := h.ref(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), orgID, ref); err != nil {
		writeError(w, r, h.Logger, "DeleteAccount", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Recalculate recomputes and persists the balance, reporting how far the cached value drifted
func (h *AccountHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	ref, ok := h.ref(w, r)
	if !ok {
		return
	}
	breakdown, err := h.Balances.Recalculate(r.Context(), orgID, ref)
	if err != nil {
		writeError(w, r, h.Logger, "Recalculate", err)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]interface{}{
		"breakdown": breakdown,
		"drift":     breakdown.Drift(),
	})
}

// Balance explains the balance without writing it
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	ref, ok := h.ref(w, r)
	if !ok {
		return
	}
	breakdown, err := h.Balances.Breakdown(r.Context(), orgID, ref)
	if err != nil {
		writeError(w, r, h.Logger, "Balance", err)
		return
	}
	utils.JSON(w, http.StatusOK, breakdown)
}
