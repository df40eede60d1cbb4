package handlers

import (
	"fmt"
	"net/http"
	"time"

	"travel-backend/internal/models"
	"travel-backend/internal/services"
	"travel-backend/internal/timeutil"
	"travel-backend/pkg/utils"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type LedgerHandler struct {
	Service  *services.LedgerService
	Vouchers *services.VoucherService
	Export   *services.ExportService
	Logger   *zap.Logger
}

func NewLedgerHandler(s *services.LedgerService, vouchers *services.VoucherService, export *services.ExportService, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{Service: s, Vouchers: vouchers, Export: export, Logger: logger}
}

// dateRange reads ?from= and ?to= (YYYY-MM-DD, business time zone). to is inclusive.
func dateRange(r *http.Request) (start, end *time.Time, err error) {
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, perr := timeutil.ParseDate(raw)
		if perr != nil {
			return nil, nil, &services.ValidationError{Field: "from", Message: "must be a date (YYYY-MM-DD)"}
		}
		t = timeutil.StartOfDay(t)
		start = &t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, perr := timeutil.ParseDate(raw)
		if perr != nil {
			return nil, nil, &services.ValidationError{Field: "to", Message: "must be a date (YYYY-MM-DD)"}
		}
		t = timeutil.EndOfDay(t)
		end = &t
	}
	return start, end, nil
}

// accountQuery reads ?account_kind=&account_id=; both or neither must be present
func accountQuery(r *http.Request) (*models.AccountRef, error) {
	q := r.URL.Query()
	kind, id := q.Get("account_kind"), q.Get("account_id")
	if kind == "" && id == "" {
		return nil, nil
	}
	if id == "" {
		return nil, &services.ValidationError{Field: "account_id", Message: "is required with account_kind"}
	}
	k, err := services.ParseAccountKind(kind)
	if err != nil {
		return nil, err
	}
	return &models.AccountRef{Kind: k, ID: id}, nil
}

func ledgerFilter(r *http.Request, orgID string) (models.LedgerFilter, error) {
	filter := models.LedgerFilter{
		OrgID:      orgID,
		Kind:       models.LedgerEntryKind(r.URL.Query().Get("kind")),
		CustomerID: r.URL.Query().Get("customer_id"),
	}
	var err error
	if filter.Account, err = accountQuery(r); err != nil {
		return filter, err
	}
	if filter.StartDate, filter.EndDate, err = dateRange(r); err != nil {
		return filter, err
	}
	if filter.Limit, err = queryInt(r, "limit", 100); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		return filter, err
	}
	return filter, nil
}

func (h *LedgerHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	filter, err := ledgerFilter(r, orgID)
	if err != nil {
		writeError(w, r, h.Logger, "ListEntries", err)
		return
	}
	entries, err := h.Service.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.Logger, "ListEntries", err)
		return
	}
	if entries == nil {
		entries = []*models.LedgerEntry{}
	}
	utils.JSON(w, http.StatusOK, entries)
}

func (h *LedgerHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	orgID, userID, ok := identity(w, r)
	if !ok {
		return
	}
	var req models.LedgerEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := h.Service.Create(r.Context(), orgID, userID, &req)
	if err != nil {
		writeError(w, r, h.Logger, "CreateEntry", err)
		return
	}
	utils.JSON(w, http.StatusCreated, entry)
}

func (h *LedgerHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	entry, err := h.Service.Get(r.Context(), orgID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.Logger, "GetEntry", err)
		return
	}
	utils.JSON(w, http.StatusOK, entry)
}

func (h *LedgerHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	var req models.LedgerEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := h.Service.Update(r.Context(), orgID, mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, r, h.Logger, "UpdateEntry", err)
		return
	}
	utils.JSON(w, http.StatusOK, entry)
}

func (h *LedgerHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), orgID, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, h.Logger, "DeleteEntry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Voucher streams the printable PDF voucher for an entry
func (h *LedgerHandler) Voucher(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	pdf, entry, err := h.Vouchers.Render(r.Context(), orgID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.Logger, "Voucher", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", services.VoucherNumber(entry)+".pdf"))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

// ArchiveVoucher stores the voucher in object storage and returns a presigned link
func (h *LedgerHandler) ArchiveVoucher(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	archived, err := h.Vouchers.Archive(r.Context(), orgID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.Logger, "ArchiveVoucher", err)
		return
	}
	utils.JSON(w, http.StatusCreated, archived)
}

// ExportCSV downloads every entry matching the list filters
func (h *LedgerHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	filter, err := ledgerFilter(r, orgID)
	if err != nil {
		writeError(w, r, h.Logger, "ExportCSV", err)
		return
	}
	data, err := h.Export.LedgerCSV(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.Logger, "ExportCSV", err)
		return
	}
	filename := fmt.Sprintf("ledger_%s.csv", timeutil.Format(timeutil.Now(), "2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
