package http

import (
	"net/http"

	"travel-backend/internal/handlers"
	"travel-backend/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func NewRouter(
	accountHandler *handlers.AccountHandler,
	ledgerHandler *handlers.LedgerHandler,
	transferHandler *handlers.TransferHandler,
	customerHandler *handlers.CustomerHandler,
	campaignHandler *handlers.CampaignHandler,
	adminHandler *handlers.AdminHandler,
	webhookHandler *handlers.WebhookHandler,
	healthHandler *handlers.HealthHandler,
	authMiddleware *middleware.AuthMiddleware,
	logger *zap.Logger,
) *mux.Router {
	r := mux.NewRouter()
	// inside the router so the metrics see the matched route template
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.MetricsMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware.Authenticate)

	// Bank and cash accounts
	api.HandleFunc("/accounts/{kind}", accountHandler.ListAccounts).Methods("GET")
	api.HandleFunc("/accounts/{kind}", accountHandler.CreateAccount).Methods("POST")
	api.HandleFunc("/accounts/{kind}/{id}", accountHandler.GetAccount).Methods("GET")
	api.HandleFunc("/accounts/{kind}/{id}", accountHandler.UpdateAccount).Methods("PATCH")
	api.HandleFunc("/accounts/{kind}/{id}", accountHandler.DeleteAccount).Methods("DELETE")
	api.HandleFunc("/accounts/{kind}/{id}/recalculate", accountHandler.Recalculate).Methods("POST")
	api.HandleFunc("/accounts/{kind}/{id}/balance", accountHandler.Balance).Methods("GET")

	// Ledger - export is registered before {id} so it is not taken for an id
	api.HandleFunc("/ledger", ledgerHandler.ListEntries).Methods("GET")
	api.HandleFunc("/ledger", ledgerHandler.CreateEntry).Methods("POST")
	api.HandleFunc("/ledger/export", ledgerHandler.ExportCSV).Methods("GET")
	api.HandleFunc("/ledger/{id}", ledgerHandler.GetEntry).Methods("GET")
	api.HandleFunc("/ledger/{id}", ledgerHandler.UpdateEntry).Methods("PATCH")
	api.HandleFunc("/ledger/{id}", ledgerHandler.DeleteEntry).Methods("DELETE")
	api.HandleFunc("/ledger/{id}/voucher", ledgerHandler.Voucher).Methods("GET")
	api.HandleFunc("/ledger/{id}/voucher/archive", ledgerHandler.ArchiveVoucher).Methods("POST")

	// Transfers
	api.HandleFunc("/transfers", transferHandler.ListTransfers).Methods("GET")
	api.HandleFunc("/transfers", transferHandler.PostTransfer).Methods("POST")
	api.HandleFunc("/transfers/{id}", transferHandler.GetTransfer).Methods("GET")
	api.HandleFunc("/transfers/{id}", transferHandler.UpdateTransfer).Methods("PATCH")
	api.HandleFunc("/transfers/{id}", transferHandler.DeleteTransfer).Methods("DELETE")

	// Customers and direct messages
	api.HandleFunc("/customers", customerHandler.ListCustomers).Methods("GET")
	api.HandleFunc("/customers", customerHandler.CreateCustomer).Methods("POST")
	api.HandleFunc("/customers/{id}", customerHandler.GetCustomer).Methods("GET")
	api.HandleFunc("/customers/{id}", customerHandler.UpdateCustomer).Methods("PATCH")
	api.HandleFunc("/customers/{id}", customerHandler.DeleteCustomer).Methods("DELETE")
	api.HandleFunc("/customers/{id}/messages", customerHandler.Messages).Methods("GET")
	api.HandleFunc("/customers/{id}/messages", customerHandler.SendMessage).Methods("POST")

	// Campaigns
	api.HandleFunc("/campaigns", campaignHandler.ListCampaigns).Methods("GET")
	api.HandleFunc("/campaigns", campaignHandler.CreateCampaign).Methods("POST")
	api.HandleFunc("/campaigns/{id}", campaignHandler.GetCampaign).Methods("GET")
	api.HandleFunc("/campaigns/{id}", campaignHandler.DeleteCampaign).Methods("DELETE")
	api.HandleFunc("/campaigns/{id}/recipients", campaignHandler.ListRecipients).Methods("GET")
	api.HandleFunc("/campaigns/{id}/recipients", campaignHandler.AppendRecipients).Methods("POST")
	api.HandleFunc("/campaigns/{id}/recipients/import", campaignHandler.ImportRecipients).Methods("POST")
	api.HandleFunc("/campaigns/{id}/stats", campaignHandler.Stats).Methods("GET")
	api.HandleFunc("/campaigns/{id}/progress", campaignHandler.Progress).Methods("GET")

	// Admin-only routes
	adminAPI := api.NewRoute().Subrouter()
	adminAPI.Use(authMiddleware.RequireAdmin)
	adminAPI.HandleFunc("/campaigns/{id}/dispatch", campaignHandler.Dispatch).Methods("POST")
	adminAPI.HandleFunc("/campaigns/{id}/cancel", campaignHandler.Cancel).Methods("POST")
	adminAPI.HandleFunc("/admin/reconcile", adminHandler.Reconcile).Methods("POST")

	// Provider callbacks (no session; signature-checked)
	r.HandleFunc("/webhooks/{org}/twilio", webhookHandler.Twilio).Methods("POST")
	r.HandleFunc("/webhooks/{org}/meta", webhookHandler.MetaVerify).Methods("GET")
	r.HandleFunc("/webhooks/{org}/meta", webhookHandler.Meta).Methods("POST")

	// Health endpoints (no auth required - for Kubernetes probes)
	r.HandleFunc("/health", healthHandler.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", healthHandler.ReadinessHealth).Methods("GET")
	r.HandleFunc("/health/detailed", healthHandler.DetailedHealth).Methods("GET")

	// Metrics endpoint (Prometheus format)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Wrap adds the middleware that must also see unmatched requests (CORS preflight)
func Wrap(router http.Handler, cors func(http.Handler) http.Handler, logger *zap.Logger) http.Handler {
	return middleware.PanicRecovery(logger)(cors(router))
}
