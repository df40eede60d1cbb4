package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"travel-backend/internal/auth"
	"travel-backend/internal/cache"
	"travel-backend/internal/dispatch"
	"travel-backend/internal/events"
	"travel-backend/internal/handlers"
	"travel-backend/internal/health"
	"travel-backend/internal/middleware"
	"travel-backend/internal/models"
	"travel-backend/internal/services"
	"travel-backend/internal/store/memory"
	"travel-backend/internal/whatsapp"

	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSecret      = "test-secret"
	testAppSecret   = "meta-app-secret"
	testVerifyToken = "verify-me"
	testTwilioToken = "twilio-token"
	testPublicURL   = "https://travel.example.com"
)

type recordingProvider struct {
	mu      sync.Mutex
	counter int
	sent    []string
}

func (p *recordingProvider) SendTemplate(ctx context.Context, msg whatsapp.TemplateMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counter++
	p.sent = append(p.sent, msg.To)
	return fmt.Sprintf("SM%03d", p.counter), nil
}

func (p *recordingProvider) SendText(ctx context.Context, to, body string) (string, error) {
	return p.SendTemplate(ctx, whatsapp.TemplateMessage{To: to})
}

func (p *recordingProvider) Name() string { return whatsapp.ProviderTwilio }

type testServer struct {
	handler  http.Handler
	jwt      *auth.JWTManager
	runs     *dispatch.Manager
	provider *recordingProvider
	store    *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := zap.NewNop()
	st := memory.New()
	rec := &events.Recorder{}
	provider := &recordingProvider{}
	providers := whatsapp.Registry{whatsapp.ProviderTwilio: provider}
	dedupe := cache.NewMemoryDeduper(time.Hour)
	t.Cleanup(func() { dedupe.Close() })

	balances := services.NewBalanceService(st, rec, log)
	hub := dispatch.NewHub()
	dispatcher := dispatch.NewDispatcher(st, providers, rec, hub, log)
	dispatcher.Sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	runs := dispatch.NewManager(context.Background(), dispatcher)

	jwtManager := auth.NewJWTManager(testSecret, "")
	router := NewRouter(
		handlers.NewAccountHandler(services.NewAccountService(st, balances), balances, log),
		handlers.NewLedgerHandler(
			services.NewLedgerService(st, balances, log),
			services.NewVoucherService(st, nil, time.Hour, log),
			services.NewExportService(st),
			log),
		handlers.NewTransferHandler(services.NewTransferService(st, balances, rec, log), log),
		handlers.NewCustomerHandler(
			services.NewCustomerService(st, "91"),
			services.NewMessagingService(st, providers, whatsapp.ProviderTwilio, log),
			log),
		handlers.NewCampaignHandler(services.NewCampaignService(st, runs, whatsapp.ProviderTwilio, 60, "91", log), runs, hub, log),
		handlers.NewAdminHandler(balances, log),
		handlers.NewWebhookHandler(services.NewWebhookService(st, dedupe, time.Hour, "91", log), handlers.WebhookSecrets{
			PublicURL:       testPublicURL,
			TwilioAuthToken: testTwilioToken,
			MetaAppSecret:   testAppSecret,
			MetaVerifyToken: testVerifyToken,
		}, log),
		handlers.NewHealthHandler(health.NewHealthChecker()),
		middleware.NewAuthMiddleware(jwtManager, "__session"),
		log,
	)
	return &testServer{
		handler:  Wrap(router, cors.AllowAll().Handler, log),
		jwt:      jwtManager,
		runs:     runs,
		provider: provider,
		store:    st,
	}
}

func (s *testServer) token(t *testing.T, org, role string) string {
	t.Helper()
	token, err := s.jwt.GenerateToken("user-1", org, role, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, token, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestAPI_RequiresAuthentication(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, "", http.MethodGet, "/api/accounts/bank", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, "not-a-token", http.MethodGet, "/api/accounts/bank", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_LedgerAndTransferKeepBalances(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t, "org-a", auth.RoleMember)

	rec := srv.do(t, token, http.MethodPost, "/api/accounts/bank", map[string]interface{}{
		"name": "HDFC Current", "bank_name": "HDFC", "opening_balance": "1000",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var bank models.Account
	decode(t, rec, &bank)

	rec = srv.do(t, token, http.MethodPost, "/api/accounts/cash", map[string]interface{}{
		"name": "Front desk", "opening_balance": "0",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cash models.Account
	decode(t, rec, &cash)

	rec = srv.do(t, token, http.MethodPost, "/api/ledger", map[string]interface{}{
		"kind": "receipt", "account_kind": "bank", "account_id": bank.ID,
		"amount": "500", "entry_date": "2024-04-05T00:00:00Z", "reference": "BK-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = srv.do(t, token, http.MethodPost, "/api/transfers", map[string]interface{}{
		"from_account_type": "bank", "from_account_id": bank.ID,
		"to_account_type": "cash", "to_account_id": cash.ID,
		"amount": "100", "transfer_date": "2024-04-06T00:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = srv.do(t, token, http.MethodGet, "/api/accounts/bank/"+bank.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.Account
	decode(t, rec, &got)
	assert.True(t, got.CurrentBalance.Equal(decimal.NewFromInt(1400)), "bank balance %s", got.CurrentBalance)

	rec = srv.do(t, token, http.MethodGet, "/api/accounts/cash/"+cash.ID+"/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var breakdown models.BalanceBreakdown
	decode(t, rec, &breakdown)
	assert.True(t, breakdown.Current.Equal(decimal.NewFromInt(100)))
	assert.True(t, breakdown.TransfersIn.Equal(decimal.NewFromInt(100)))

	rec = srv.do(t, token, http.MethodGet, "/api/ledger?account_kind=bank&account_id="+bank.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []models.LedgerEntry
	decode(t, rec, &entries)
	assert.Len(t, entries, 1)

	// another organization cannot see the account
	other := srv.token(t, "org-b", auth.RoleMember)
	rec = srv.do(t, other, http.MethodGet, "/api/accounts/bank/"+bank.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_ErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t, "org-a", auth.RoleMember)

	rec := srv.do(t, token, http.MethodGet, "/api/accounts/savings", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, token, http.MethodGet, "/api/ledger/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "not_found", body["code"])

	rec = srv.do(t, token, http.MethodPost, "/api/transfers", map[string]interface{}{
		"from_account_type": "bank", "from_account_id": "a1",
		"to_account_type": "bank", "to_account_id": "a1",
		"amount": "10", "transfer_date": "2024-04-06T00:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/customers", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	out := httptest.NewRecorder()
	srv.handler.ServeHTTP(out, req)
	assert.Equal(t, http.StatusBadRequest, out.Code)

	rec = srv.do(t, token, http.MethodGet, "/api/ledger?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_SendTextOutsideSessionWindow(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t, "org-a", auth.RoleMember)

	rec := srv.do(t, token, http.MethodPost, "/api/customers", map[string]interface{}{
		"name": "Asha", "phone": "98765 43210",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var customer models.Customer
	decode(t, rec, &customer)
	assert.Equal(t, "919876543210", customer.Phone)

	rec = srv.do(t, token, http.MethodPost, "/api/customers/"+customer.ID+"/messages", map[string]interface{}{
		"text": "Your tickets are ready",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = srv.do(t, token, http.MethodPost, "/api/customers/"+customer.ID+"/messages", map[string]interface{}{
		"template_name": "booking_confirmed", "variables": map[string]string{"1": "Asha"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = srv.do(t, token, http.MethodGet, "/api/customers/"+customer.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []models.MessageLog
	decode(t, rec, &logs)
	require.Len(t, logs, 1)
	assert.Equal(t, "template:booking_confirmed [Asha]", logs[0].Body)
}

func createCampaign(t *testing.T, srv *testServer, token string, phones ...string) models.Campaign {
	t.Helper()
	recipients := make([]map[string]string, 0, len(phones))
	for _, p := range phones {
		recipients = append(recipients, map[string]string{"phone": p})
	}
	rec := srv.do(t, token, http.MethodPost, "/api/campaigns", map[string]interface{}{
		"name": "Diwali offers", "template_name": "diwali_2024", "recipients": recipients,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var campaign models.Campaign
	decode(t, rec, &campaign)
	return campaign
}

func TestAPI_DispatchRequiresAdmin(t *testing.T) {
	srv := newTestServer(t)
	member := srv.token(t, "org-a", auth.RoleMember)
	admin := srv.token(t, "org-a", auth.RoleAdmin)
	campaign := createCampaign(t, srv, member, "9876543210", "9876543211")

	rec := srv.do(t, member, http.MethodPost, "/api/campaigns/"+campaign.ID+"/dispatch", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, admin, http.MethodPost, "/api/campaigns/"+campaign.ID+"/dispatch", map[string]interface{}{"rate_per_minute": 600})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	srv.runs.Wait()

	rec = srv.do(t, member, http.MethodGet, "/api/campaigns/"+campaign.ID+"/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.CampaignStats
	decode(t, rec, &stats)
	assert.Equal(t, 2, stats.ByStatus[models.RecipientStatusSent])
	assert.Equal(t, 0, stats.ByStatus[models.RecipientStatusPending])

	rec = srv.do(t, member, http.MethodGet, "/api/campaigns/"+campaign.ID, nil)
	var got models.Campaign
	decode(t, rec, &got)
	assert.Equal(t, models.CampaignStatusCompleted, got.Status)

	// nothing is running any more
	rec = srv.do(t, admin, http.MethodPost, "/api/campaigns/"+campaign.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_ImportRecipientsCSV(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t, "org-a", auth.RoleMember)
	campaign := createCampaign(t, srv, token)

	csv := "phone,name,city\n9876543210,Asha,Jaipur\n9876543210,Asha again,Jaipur\n9876543211,Ravi,Pune\n"
	req := httptest.NewRequest(http.MethodPost, "/api/campaigns/"+campaign.ID+"/recipients/import", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result services.AppendResult
	decode(t, rec, &result)
	assert.Equal(t, 2, result.Added)
	assert.Equal(t, 1, result.Skipped)
}

func TestWebhook_MetaVerifyHandshake(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, "", http.MethodGet, "/webhooks/org-a/meta?hub.mode=subscribe&hub.verify_token="+testVerifyToken+"&hub.challenge=12345", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())

	rec = srv.do(t, "", http.MethodGet, "/webhooks/org-a/meta?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhook_MetaStatusAdvancesRecipient(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.token(t, "org-a", auth.RoleAdmin)
	campaign := createCampaign(t, srv, admin, "9876543210")

	rec := srv.do(t, admin, http.MethodPost, "/api/campaigns/"+campaign.ID+"/dispatch", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	srv.runs.Wait()

	body := []byte(`{"entry":[{"changes":[{"value":{"statuses":[{"id":"SM001","status":"delivered","timestamp":"1712300000"}]}}]}]}`)
	post := func(signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/org-a/meta", bytes.NewReader(body))
		req.Header.Set("X-Hub-Signature-256", signature)
		out := httptest.NewRecorder()
		srv.handler.ServeHTTP(out, req)
		return out
	}

	assert.Equal(t, http.StatusForbidden, post("sha256=deadbeef").Code)

	out := post(whatsapp.MetaSignature(testAppSecret, body))
	require.Equal(t, http.StatusOK, out.Code, out.Body.String())

	recipients, err := srv.store.Campaigns().ListRecipients(context.Background(), campaign.ID)
	require.NoError(t, err)
	require.Len(t, recipients, 1)
	assert.Equal(t, models.RecipientStatusDelivered, recipients[0].Status)

	// another organization's webhook cannot touch the recipient
	otherBody := []byte(`{"entry":[{"changes":[{"value":{"statuses":[{"id":"SM001","status":"read","timestamp":"1712300100"}]}}]}]}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/org-b/meta", bytes.NewReader(otherBody))
	req.Header.Set("X-Hub-Signature-256", whatsapp.MetaSignature(testAppSecret, otherBody))
	out = httptest.NewRecorder()
	srv.handler.ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code)

	recipients, err = srv.store.Campaigns().ListRecipients(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecipientStatusDelivered, recipients[0].Status)
}

func TestWebhook_TwilioSignature(t *testing.T) {
	srv := newTestServer(t)
	member := srv.token(t, "org-a", auth.RoleMember)

	rec := srv.do(t, member, http.MethodPost, "/api/customers", map[string]interface{}{
		"name": "Asha", "phone": "9876543210",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var customer models.Customer
	decode(t, rec, &customer)

	form := url.Values{
		"MessageSid": {"SM900"},
		"From":       {"whatsapp:+919876543210"},
		"Body":       {"Is my hotel confirmed?"},
	}
	post := func(signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/org-a/twilio", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("X-Twilio-Signature", signature)
		out := httptest.NewRecorder()
		srv.handler.ServeHTTP(out, req)
		return out
	}

	assert.Equal(t, http.StatusForbidden, post("bogus").Code)

	signature := whatsapp.TwilioSignature(testTwilioToken, testPublicURL+"/webhooks/org-a/twilio", form)
	out := post(signature)
	require.Equal(t, http.StatusOK, out.Code, out.Body.String())

	got, err := srv.store.Customers().Get(context.Background(), "org-a", customer.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastInboundAt)

	// inside the session window free text is allowed
	rec = srv.do(t, member, http.MethodPost, "/api/customers/"+customer.ID+"/messages", map[string]interface{}{
		"text": "Yes, confirmed for 12 Dec",
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestAPI_ReconcileReportsDrift(t *testing.T) {
	srv := newTestServer(t)
	member := srv.token(t, "org-a", auth.RoleMember)
	admin := srv.token(t, "org-a", auth.RoleAdmin)

	rec := srv.do(t, member, http.MethodPost, "/api/accounts/cash", map[string]interface{}{
		"name": "Petty cash", "opening_balance": "250",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var cash models.Account
	decode(t, rec, &cash)

	// simulate a stale cached balance
	require.NoError(t, srv.store.Accounts().SetCurrentBalance(context.Background(), "org-a", cash.Ref(), decimal.NewFromInt(999)))

	rec = srv.do(t, member, http.MethodPost, "/api/admin/reconcile", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, admin, http.MethodPost, "/api/admin/reconcile", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report services.ReconcileReport
	decode(t, rec, &report)
	assert.Equal(t, 1, report.Checked)
	require.Len(t, report.Drifted, 1)
	assert.True(t, report.Drifted[0].Current.Equal(decimal.NewFromInt(250)))
}

func TestAPI_ExportAndHealth(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t, "org-a", auth.RoleMember)

	rec := srv.do(t, token, http.MethodGet, "/api/ledger/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Date,Voucher,Kind"))

	rec = srv.do(t, "", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = srv.do(t, "", http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}
