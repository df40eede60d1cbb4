package handlers

import (
	"net/http"

	"travel-backend/internal/models"
	"travel-backend/internal/services"
	"travel-backend/pkg/utils"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type CustomerHandler struct {
	Service   *services.CustomerService
	Messaging *services.MessagingService
	Logger    *zap.Logger
}

func NewCustomerHandler(s *services.CustomerService, messaging *services.MessagingService, logger *zap.Logger) *CustomerHandler {
	return &CustomerHandler{Service: s, Messaging: messaging, Logger: logger}
}

// ListCustomers lists the organization's customers. ?phone= narrows to a single match.
func (h *CustomerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	if phone := r.URL.Query().Get("phone"); phone != "" {
		customer, err := h.Service.SearchByPhone(r.Context(), orgID, phone)
		if err != nil {
			writeError(w, r, h.Logger, "SearchCustomer", err)
			return
		}
		utils.JSON(w, http.StatusOK, []*models.Customer{customer})
		return
	}
	customers, err := h.Service.List(r.Context(), orgID)
	if err != nil {
		writeError(w, r, h.Logger, "ListCustomers", err)
		return
	}
	if customers == nil {
		customers = []*models.Customer{}
	}
	utils.JSON(w, http.StatusOK, customers)
}

func (h *CustomerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	var req models.CustomerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	customer, err := h.Service.Create(r.Context(), orgID, &req)
	if err != nil {
		writeError(w, r, h.Logger, "CreateCustomer", err)
		return
	}
	utils.JSON(w, http.StatusCreated, customer)
}

func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	customer, err := h.Service.Get(r.Context(), orgID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.Logger, "GetCustomer", err)
		return
	}
	utils.JSON(w, http.StatusOK, customer)
}

func (h *CustomerHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	var req models.CustomerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	customer, err := h.Service.Update(r.Context(), orgID, mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, r, h.Logger, "UpdateCustomer", err)
		return
	}
	utils.JSON(w, http.StatusOK, customer)
}

func (h *CustomerHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), orgID, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, h.Logger, "DeleteCustomer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendMessage sends a template or free-form message to one customer. A failed delivery
// still answers with the logged attempt so the caller can show the provider error.
func (h *CustomerHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	var req models.SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	log, err := h.Messaging.Send(r.Context(), orgID, mux.Vars(r)["id"], &req)
	if err != nil {
		if log != nil {
			utils.JSON(w, http.StatusBadGateway, map[string]interface{}{
				"error":   err.Error(),
				"code":    "delivery_failed",
				"message": log,
			})
			return
		}
		writeError(w, r, h.Logger, "SendMessage", err)
		return
	}
	utils.JSON(w, http.StatusCreated, log)
}

// Messages lists the message history for a customer, newest first
func (h *CustomerHandler) Messages(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, h.Logger, "Messages", err)
		return
	}
	logs, err := h.Service.Messages(r.Context(), orgID, mux.Vars(r)["id"], limit)
	if err != nil {
		writeError(w, r, h.Logger, "Messages", err)
		return
	}
	if logs == nil {
		logs = []*models.MessageLog{}
	}
	utils.JSON(w, http.StatusOK, logs)
}
