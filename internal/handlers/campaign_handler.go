package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"travel-backend/internal/dispatch"
	"travel-backend/internal/logger"
	"travel-backend/internal/models"
	"travel-backend/internal/services"
	"travel-backend/pkg/utils"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	maxImportBytes = 10 << 20
	wsWriteWait    = 10 * time.Second
	wsPingPeriod   = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type CampaignHandler struct {
	Service *services.CampaignService
	Runs    *dispatch.Manager
	Hub     *dispatch.Hub
	Logger  *zap.Logger
}

func NewCampaignHandler(s *services.CampaignService, runs *dispatch.Manager, hub *dispatch.Hub, logger *zap.Logger) *CampaignHandler {
	return &CampaignHandler{Service: s, Runs: runs, Hub: hub, Logger: logger}
}

func (h *CampaignHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	campaigns, err := h.Service.List(r.Context(), orgID)
	if err != nil {
		writeError(w, r, h.Logger, "ListCampaigns", err)
		return
	}
	if campaigns == nil {
		campaigns = []*models.Campaign{}
	}
	utils.JSON(w, http.StatusOK, campaigns)
}

func (h *CampaignHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	orgID, userID, ok := identity(w, r)
	if !ok {
		return
	}
	var req models.CreateCampaignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	campaign, err := h.Service.Create(r.Context(), orgID, userID, &req)
	if err != nil {
		writeError(w, r, h.Logger, "CreateCampaign", err)
		return
	}
	utils.JSON(w, http.StatusCreated, campaign)
}

func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	campaign, err := h.Service.Get(r.Context(), orgID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.Logger, "GetCampaign", err)
		return
	}
	utils.JSON(w, http.StatusOK, campaign)
}

func (h *CampaignHandler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), orgID, mux.Vars(r)["id"]); err != nil {
		writeError(w, r, h.Logger, "DeleteCampaign", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CampaignHandler) ListRecipients(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	recipients, err := h.Service.ListRecipients(r.Context(), orgID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.Logger, "ListRecipients", err)
		return
	}
	if recipients == nil {
		recipients = []*models.CampaignRecipient{}
	}
	utils.JSON(w, http.StatusOK, recipients)
}

func (h *CampaignHandler) AppendRecipients(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	var req models.AppendRecipientsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.Service.AppendRecipients(r.Context(), orgID, mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, r, h.Logger, "AppendRecipients", err)
		return
	}
	utils.JSON(w, http.StatusOK, result)
}

// ImportRecipients accepts a CSV either as the multipart field "file" or as the raw body
func (h *CampaignHandler) ImportRecipients(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxImportBytes); err != nil {
			utils.JSONError(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest, "invalid_request_body")
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			utils.JSONError(w, "CSV file is required in field \"file\"", http.StatusBadRequest, "invalid_request_body")
			return
		}
		defer file.Close()
		src = file
	}

	result, err := h.Service.ImportRecipientsCSV(r.Context(), orgID, mux.Vars(r)["id"], src)
	if err != nil {
		writeError(w, r, h.Logger, "ImportRecipients", err)
		return
	}
	utils.JSON(w, http.StatusOK, result)
}

func (h *CampaignHandler) Stats(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	stats, err := h.Service.Stats(r.Context(), orgID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.Logger, "Stats", err)
		return
	}
	utils.JSON(w, http.StatusOK, stats)
}

// Dispatch starts the campaign in the background. An empty body uses the campaign's defaults.
func (h *CampaignHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	var req models.DispatchRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	campaign, err := h.Service.Dispatch(r.Context(), orgID, mux.Vars(r)["id"], &req)
	if err != nil {
		writeError(w, r, h.Logger, "Dispatch", err)
		return
	}
	utils.JSON(w, http.StatusAccepted, map[string]interface{}{
		"campaign": campaign,
		"dry_run":  req.DryRun,
	})
}

// Cancel stops a running dispatch. Recipients not yet sent stay pending.
func (h *CampaignHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	if _, err := h.Service.Get(r.Context(), orgID, id); err != nil {
		writeError(w, r, h.Logger, "Cancel", err)
		return
	}
	if !h.Runs.Cancel(id) {
		utils.JSONError(w, "Campaign is not running on this server", http.StatusConflict, "conflict")
		return
	}
	utils.JSON(w, http.StatusAccepted, map[string]string{"campaign_id": id, "status": "cancelling"})
}

// Progress streams dispatch progress over a websocket until the run finishes or the client leaves
func (h *CampaignHandler) Progress(w http.ResponseWriter, r *http.Request) {
	orgID, _, ok := identity(w, r)
	if !ok {
		return
	}
	campaign, err := h.Service.Get(r.Context(), orgID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.Logger, "Progress", err)
		return
	}
	log := logger.FromContext(r.Context(), h.Logger).With(zap.String("campaign_id", campaign.ID))

	updates, unsubscribe := h.Hub.Subscribe(campaign.ID)
	defer unsubscribe()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// first frame is the state at subscription time
	snapshot := dispatch.Progress{
		CampaignID:     campaign.ID,
		Total:          campaign.TotalRecipients,
		CampaignStatus: campaign.Status,
		Done:           campaign.Status != models.CampaignStatusRunning,
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(snapshot); err != nil || snapshot.Done {
		return
	}

	// reader notices the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case p, open := <-updates:
			if !open {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(p); err != nil {
				log.Debug("websocket write failed", zap.Error(err))
				return
			}
			if p.Done {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, p.CampaignStatus),
					time.Now().Add(wsWriteWait))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
