package handlers

import (
	"net/http"

	"travel-backend/internal/models"
	"travel-backend/internal/services"
	"travel-backend/pkg/utils"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type TransferHandler struct {
	Service *services.TransferService
	Logger  *zap.Logger
}

func NewTransferHandler(s *services.TransferService, logger *zap.Logger) *TransferHandler {
	return &TransferHandler{Service: s, Logger: logger}
}

func (h *TransferHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	filter := models.TransferFilter{OrgID: orgID}
	var err error
	if filter.Account, err = accountQuery(r); err == nil {
		filter.StartDate, filter.EndDate, err = dateRange(r)
	}
	if err == nil {
		filter.Limit, err = queryInt(r, "limit", 100)
	}
	if err == nil {
		filter.Offset, err = queryInt(r, "offset", 0)
	}
	if err != nil {
		writeError(w, r, h.Logger, "ListTransfers", err)
		return
	}

	transfers, err := h.Service.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.Logger, "ListTransfers", err)
		return
	}
	if transfers == nil {
		transfers = []*models.Transfer{}
	}
	utils.JSON(w, http.StatusOK, transfers)
}

func (h *TransferHandler) PostTransfer(w http.ResponseWriter, r *http.Request) {
	orgID, userID, ok := identity(w, r)
	if !ok {
		return
	}
	var req models.TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	transfer, err := h.Service.Post(r.Context(), orgID, userID, &req)
	if err != nil {
		writeError(w, r, h.Logger, "PostTransfer", err)
		return
	}
	utils.JSON(w, http.StatusCreated, transfer)
}

func (h *TransferHandler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	transfer, err := h.Service.Get(r.Context(), orgID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.Logger, "GetTransfer", err)
		return
	}
	utils.JSON(w, http.StatusOK, transfer)
}

func (h *TransferHandler) UpdateTransfer(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	var req models.TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	transfer, err := h.Service.Update(r.Context(), orgID, mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, r, h.Logger, "UpdateTransfer", err)
		return
	}
	utils.JSON(w, http.StatusOK, transfer)
}

func (h *TransferHandler) DeleteTransfer(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), orgID, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, h.Logger, "DeleteTransfer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
