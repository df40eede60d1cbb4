package repositories

import (
	"context"
	"fmt"
	"time"

	"travel-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

type CampaignRepository struct {
	DB DBTX
}

const campaignColumns = `id, org_id, name, provider, template_name, template_language,
	rate_per_minute, status, total_recipients, created_by, started_at, completed_at,
	created_at, updated_at`

const recipientColumns = `id, campaign_id, position, phone, name, customer_id, variables, status,
	provider_message_id, error_message, sent_at, updated_at`

func scanCampaign(row pgx.Row) (*models.Campaign, error) {
	var c models.Campaign
	err := row.Scan(&c.ID, &c.OrgID, &c.Name, &c.Provider, &c.TemplateName, &c.TemplateLanguage,
		&c.RatePerMinute, &c.Status, &c.TotalRecipients, &c.CreatedBy, &c.StartedAt, &c.CompletedAt,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

func scanRecipient(row pgx.Row) (*models.CampaignRecipient, error) {
	var rec models.CampaignRecipient
	err := row.Scan(&rec.ID, &rec.CampaignID, &rec.Position, &rec.Phone, &rec.Name, &rec.CustomerID,
		&rec.Variables, &rec.Status, &rec.ProviderMessageID, &rec.ErrorMessage, &rec.SentAt, &rec.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &rec, nil
}

func (r *CampaignRepository) Create(ctx context.Context, c *models.Campaign) error {
	return mapError(r.DB.QueryRow(ctx,
		`INSERT INTO whatsapp_campaigns(id, org_id, name, provider, template_name, template_language,
		                                rate_per_minute, status, total_recipients, created_by)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at, updated_at`,
		c.ID, c.OrgID, c.Name, c.Provider, c.TemplateName, c.TemplateLanguage, c.RatePerMinute,
		c.Status, c.TotalRecipients, c.CreatedBy,
	).Scan(&c.CreatedAt, &c.UpdatedAt))
}

func (r *CampaignRepository) Get(ctx context.Context, orgID, id string) (*models.Campaign, error) {
	return scanCampaign(r.DB.QueryRow(ctx,
		`SELECT `+campaignColumns+` FROM whatsapp_campaigns WHERE id=$1 AND org_id=$2`, id, orgID))
}

func (r *CampaignRepository) List(ctx context.Context, orgID string) ([]*models.Campaign, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+campaignColumns+` FROM whatsapp_campaigns WHERE org_id=$1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []*models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

// UpdateStatus stamps started_at when a run begins and completed_at when it ends
func (r *CampaignRepository) UpdateStatus(ctx context.Context, orgID, id, status string, at time.Time) error {
	return expectOne(r.DB.Exec(ctx,
		`UPDATE whatsapp_campaigns
		 SET status = $1,
		     started_at = CASE WHEN $1 = 'running' THEN $2 ELSE started_at END,
		     completed_at = CASE WHEN $1 = 'running' THEN NULL
		                         WHEN $1 IN ('completed', 'cancelled') THEN $2
		                         ELSE completed_at END,
		     updated_at = $2
		 WHERE id = $3 AND org_id = $4`,
		status, at, id, orgID))
}

func (r *CampaignRepository) Delete(ctx context.Context, orgID, id string) error {
	return expectOne(r.DB.Exec(ctx, `DELETE FROM whatsapp_campaigns WHERE id=$1 AND org_id=$2`, id, orgID))
}

// AppendRecipients locks the campaign row so concurrent appends get distinct positions
func (r *CampaignRepository) AppendRecipients(ctx context.Context, campaignID string, recipients []*models.CampaignRecipient) error {
	var last int
	err := r.DB.QueryRow(ctx,
		`SELECT COALESCE((SELECT MAX(position) FROM whatsapp_campaign_recipients WHERE campaign_id = c.id), 0)
		 FROM whatsapp_campaigns c WHERE c.id = $1 FOR UPDATE`, campaignID).Scan(&last)
	if err != nil {
		return mapError(err)
	}

	batch := &pgx.Batch{}
	for i, rec := range recipients {
		rec.CampaignID = campaignID
		rec.Position = last + i + 1
		if rec.Variables == nil {
			rec.Variables = map[string]string{}
		}
		batch.Queue(
			`INSERT INTO whatsapp_campaign_recipients(id, campaign_id, position, phone, name, customer_id,
			                                          variables, status)
			 VALUES($1, $2, $3, $4, $5, $6, $7, $8)
			 RETURNING updated_at`,
			rec.ID, rec.CampaignID, rec.Position, rec.Phone, rec.Name, rec.CustomerID, rec.Variables, rec.Status,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&rec.UpdatedAt)
		})
	}
	batch.Queue(
		`UPDATE whatsapp_campaigns SET total_recipients = total_recipients + $1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $2`, len(recipients), campaignID)

	if err := r.DB.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("append recipients: %w", mapError(err))
	}
	return nil
}

// ListRecipients returns recipients in position order
func (r *CampaignRepository) ListRecipients(ctx context.Context, campaignID string) ([]*models.CampaignRecipient, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+recipientColumns+` FROM whatsapp_campaign_recipients
		 WHERE campaign_id=$1 ORDER BY position`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recipients []*models.CampaignRecipient
	for rows.Next() {
		rec, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}

func (r *CampaignRepository) UpdateRecipientResult(ctx context.Context, rec *models.CampaignRecipient) error {
	return mapError(r.DB.QueryRow(ctx,
		`UPDATE whatsapp_campaign_recipients
		 SET status=$1, provider_message_id=$2, error_message=$3, sent_at=$4, updated_at=CURRENT_TIMESTAMP
		 WHERE id=$5 AND campaign_id=$6
		 RETURNING updated_at`,
		rec.Status, rec.ProviderMessageID, rec.ErrorMessage, rec.SentAt, rec.ID, rec.CampaignID,
	).Scan(&rec.UpdatedAt))
}

func (r *CampaignRepository) AdvanceRecipientStatus(ctx context.Context, recipientID, status, errorMessage string, from []string) (bool, error) {
	tag, err := r.DB.Exec(ctx,
		`UPDATE whatsapp_campaign_recipients
		 SET status=$1, error_message=COALESCE(NULLIF($2, ''), error_message), updated_at=CURRENT_TIMESTAMP
		 WHERE id=$3 AND status = ANY($4)`,
		status, errorMessage, recipientID, from)
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CampaignRepository) GetRecipientByMessageID(ctx context.Context, providerMessageID string) (*models.CampaignRecipient, error) {
	if providerMessageID == "" {
		return nil, mapError(pgx.ErrNoRows)
	}
	return scanRecipient(r.DB.QueryRow(ctx,
		`SELECT `+recipientColumns+` FROM whatsapp_campaign_recipients WHERE provider_message_id=$1`,
		providerMessageID))
}

func (r *CampaignRepository) CountByStatus(ctx context.Context, campaignID string) (map[string]int, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT status, COUNT(*) FROM whatsapp_campaign_recipients WHERE campaign_id=$1 GROUP BY status`,
		campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
