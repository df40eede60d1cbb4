package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"travel-backend/internal/models"
	"travel-backend/internal/store"
	"travel-backend/internal/whatsapp"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CampaignRunner starts a campaign dispatch in the background.
// It returns ErrConflict if the campaign is already being dispatched.
type CampaignRunner interface {
	Start(campaign *models.Campaign, req models.DispatchRequest) error
}

type CampaignService struct {
	Store           store.Store
	Runner          CampaignRunner
	DefaultProvider string
	DefaultRate     int
	CountryCode     string
	Logger          *zap.Logger
}

func NewCampaignService(st store.Store, runner CampaignRunner, defaultProvider string, defaultRate int, countryCode string, logger *zap.Logger) *CampaignService {
	return &CampaignService{
		Store:           st,
		Runner:          runner,
		DefaultProvider: defaultProvider,
		DefaultRate:     defaultRate,
		CountryCode:     countryCode,
		Logger:          logger.Named("campaigns"),
	}
}

// AppendResult reports how many recipients an append added and how many duplicates it skipped
type AppendResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

func (s *CampaignService) Create(ctx context.Context, orgID, userID string, req *models.CreateCampaignRequest) (*models.Campaign, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	recipients, _, err := s.buildRecipients(req.Recipients, nil)
	if err != nil {
		return nil, err
	}

	provider := req.Provider
	if provider == "" {
		provider = s.DefaultProvider
	}
	rate := req.RatePerMinute
	if rate == 0 {
		rate = s.DefaultRate
	}
	language := req.TemplateLanguage
	if language == "" {
		language = "en"
	}

	campaign := &models.Campaign{
		ID:               uuid.NewString(),
		OrgID:            orgID,
		Name:             strings.TrimSpace(req.Name),
		Provider:         provider,
		TemplateName:     strings.TrimSpace(req.TemplateName),
		TemplateLanguage: language,
		RatePerMinute:    rate,
		Status:           models.CampaignStatusDraft,
		CreatedBy:        userID,
	}

	err = s.Store.InTx(ctx, func(tx store.Store) error {
		if err := tx.Campaigns().Create(ctx, campaign); err != nil {
			return fmt.Errorf("create campaign: %w", err)
		}
		if len(recipients) == 0 {
			return nil
		}
		return tx.Campaigns().AppendRecipients(ctx, campaign.ID, recipients)
	})
	if err != nil {
		return nil, err
	}
	campaign.TotalRecipients = len(recipients)

	s.Logger.Info("campaign created",
		zap.String("org_id", orgID),
		zap.String("campaign_id", campaign.ID),
		zap.String("provider", provider),
		zap.Int("recipients", len(recipients)))
	return campaign, nil
}

func (s *CampaignService) Get(ctx context.Context, orgID, id string) (*models.Campaign, error) {
	return s.Store.Campaigns().Get(ctx, orgID, id)
}

func (s *CampaignService) List(ctx context.Context, orgID string) ([]*models.Campaign, error) {
	return s.Store.Campaigns().List(ctx, orgID)
}

func (s *CampaignService) Delete(ctx context.Context, orgID, id string) error {
	campaign, err := s.Store.Campaigns().Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if campaign.Status == models.CampaignStatusRunning {
		return conflict("campaign is running")
	}
	return s.Store.Campaigns().Delete(ctx, orgID, id)
}

// AppendRecipients adds recipients after the existing ones. Phones already in the
// campaign, or repeated in the request, are skipped.
func (s *CampaignService) AppendRecipients(ctx context.Context, orgID, id string, req *models.AppendRecipientsRequest) (*AppendResult, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	return s.appendInputs(ctx, orgID, id, req.Recipients)
}

func (s *CampaignService) appendInputs(ctx context.Context, orgID, id string, inputs []models.RecipientInput) (*AppendResult, error) {
	result := &AppendResult{}
	err := s.Store.InTx(ctx, func(tx store.Store) error {
		if _, err := tx.Campaigns().Get(ctx, orgID, id); err != nil {
			return err
		}
		existing, err := tx.Campaigns().ListRecipients(ctx, id)
		if err != nil {
			return err
		}
		known := make(map[string]bool, len(existing))
		for _, r := range existing {
			known[r.Phone] = true
		}
		recipients, skipped, err := s.buildRecipients(inputs, known)
		if err != nil {
			return err
		}
		result.Added, result.Skipped = len(recipients), skipped
		if len(recipients) == 0 {
			return nil
		}
		return tx.Campaigns().AppendRecipients(ctx, id, recipients)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// buildRecipients normalizes phones and drops duplicates against known (which it extends)
func (s *CampaignService) buildRecipients(inputs []models.RecipientInput, known map[string]bool) ([]*models.CampaignRecipient, int, error) {
	if known == nil {
		known = make(map[string]bool)
	}
	var out []*models.CampaignRecipient
	skipped := 0
	for i, in := range inputs {
		phone, err := whatsapp.NormalizePhone(in.Phone, s.CountryCode)
		if err != nil {
			return nil, 0, invalid(fmt.Sprintf("recipients[%d].phone", i), err.Error())
		}
		if known[phone] {
			skipped++
			continue
		}
		known[phone] = true

		vars := in.Variables
		if vars == nil {
			vars = map[string]string{}
		}
		out = append(out, &models.CampaignRecipient{
			ID:         uuid.NewString(),
			Phone:      phone,
			Name:       strings.TrimSpace(in.Name),
			CustomerID: emptyToNil(in.CustomerID),
			Variables:  vars,
			Status:     models.RecipientStatusPending,
		})
	}
	return out, skipped, nil
}

// ImportRecipientsCSV appends recipients from a CSV with a header row. "phone" is required;
// "name" and "customer_id" map to recipient fields; every other column becomes a template variable.
func (s *CampaignService) ImportRecipientsCSV(ctx context.Context, orgID, id string, r io.Reader) (*AppendResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, invalid("file", "CSV is empty")
	}
	if err != nil {
		return nil, invalid("file", err.Error())
	}
	columns := make([]string, len(header))
	phoneCol := -1
	for i, h := range header {
		columns[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if columns[i] == "phone" {
			phoneCol = i
		}
	}
	if phoneCol < 0 {
		return nil, invalid("file", "CSV header must include a phone column")
	}

	var inputs []models.RecipientInput
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, invalid("file", fmt.Sprintf("line %d: %v", line, err))
		}
		if phoneCol >= len(record) || strings.TrimSpace(record[phoneCol]) == "" {
			continue
		}
		in := models.RecipientInput{Variables: map[string]string{}}
		for i, value := range record {
			if i >= len(columns) {
				break
			}
			value = strings.TrimSpace(value)
			switch columns[i] {
			case "phone":
				in.Phone = value
			case "name":
				in.Name = value
			case "customer_id":
				if value != "" {
					v := value
					in.CustomerID = &v
				}
			case "":
			default:
				in.Variables[columns[i]] = value
			}
		}
		inputs = append(inputs, in)
	}
	if len(inputs) == 0 {
		return nil, invalid("file", "CSV has no recipients")
	}
	return s.appendInputs(ctx, orgID, id, inputs)
}

func (s *CampaignService) ListRecipients(ctx context.Context, orgID, id string) ([]*models.CampaignRecipient, error) {
	if _, err := s.Store.Campaigns().Get(ctx, orgID, id); err != nil {
		return nil, err
	}
	return s.Store.Campaigns().ListRecipients(ctx, id)
}

// Stats counts the campaign's recipients by status
func (s *CampaignService) Stats(ctx context.Context, orgID, id string) (*models.CampaignStats, error) {
	campaign, err := s.Store.Campaigns().Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.Store.Campaigns().CountByStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, status := range []string{
		models.RecipientStatusPending,
		models.RecipientStatusSent,
		models.RecipientStatusFailed,
		models.RecipientStatusDelivered,
		models.RecipientStatusRead,
	} {
		if _, ok := counts[status]; !ok {
			counts[status] = 0
		}
	}
	return &models.CampaignStats{
		CampaignID:      id,
		TotalRecipients: campaign.TotalRecipients,
		ByStatus:        counts,
	}, nil
}

// Dispatch starts sending in the background and returns the campaign as it was when accepted
func (s *CampaignService) Dispatch(ctx context.Context, orgID, id string, req *models.DispatchRequest) (*models.Campaign, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	campaign, err := s.Store.Campaigns().Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status == models.CampaignStatusRunning {
		return nil, conflict("campaign is already running")
	}
	if campaign.TotalRecipients == 0 {
		return nil, invalid("recipients", "campaign has no recipients")
	}

	opts := *req
	if opts.RatePerMinute == 0 {
		opts.RatePerMinute = campaign.RatePerMinute
	}
	if opts.RatePerMinute == 0 {
		opts.RatePerMinute = s.DefaultRate
	}
	if err := s.Runner.Start(campaign, opts); err != nil {
		return nil, err
	}
	s.Logger.Info("campaign dispatch accepted",
		zap.String("org_id", orgID),
		zap.String("campaign_id", id),
		zap.Int("rate_per_minute", opts.RatePerMinute),
		zap.Bool("retry_failed", opts.RetryFailed),
		zap.Bool("dry_run", opts.DryRun))
	return campaign, nil
}
