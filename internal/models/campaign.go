package models

import "time"

// Campaign status values
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusRunning   = "running"
	CampaignStatusCompleted = "completed"
	CampaignStatusCancelled = "cancelled"
)

// Recipient status values. pending is the only non-terminal dispatch state;
// delivered and read arrive later through provider callbacks.
const (
	RecipientStatusPending   = "pending"
	RecipientStatusSent      = "sent"
	RecipientStatusFailed    = "failed"
	RecipientStatusDelivered = "delivered"
	RecipientStatusRead      = "read"
)

// Campaign is a WhatsApp template broadcast
type Campaign struct {
	ID               string     `json:"id"`
	OrgID            string     `json:"org_id"`
	Name             string     `json:"name"`
	Provider         string     `json:"provider"`
	TemplateName     string     `json:"template_name"` // Twilio: ContentSid, Meta/AiSensy: template name
	TemplateLanguage string     `json:"template_language"`
	RatePerMinute    int        `json:"rate_per_minute"`
	Status           string     `json:"status"`
	TotalRecipients  int        `json:"total_recipients"`
	CreatedBy        string     `json:"created_by"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CampaignRecipient is one addressable target of a campaign
type CampaignRecipient struct {
	ID                string            `json:"id"`
	CampaignID        string            `json:"campaign_id"`
	Position          int               `json:"position"`
	Phone             string            `json:"phone"`
	Name              string            `json:"name,omitempty"`
	CustomerID        *string           `json:"customer_id,omitempty"`
	Variables         map[string]string `json:"variables"`
	Status            string            `json:"status"`
	ProviderMessageID string            `json:"provider_message_id,omitempty"`
	ErrorMessage      string            `json:"error_message,omitempty"`
	SentAt            *time.Time        `json:"sent_at,omitempty"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// RecipientInput is one recipient in a create/append request
type RecipientInput struct {
	Phone      string            `json:"phone" validate:"required,min=8,max=20"`
	Name       string            `json:"name" validate:"max=120"`
	CustomerID *string           `json:"customer_id"`
	Variables  map[string]string `json:"variables"`
}

// CreateCampaignRequest is the body for POST /api/campaigns
type CreateCampaignRequest struct {
	Name             string           `json:"name" validate:"required,max=120"`
	Provider         string           `json:"provider" validate:"omitempty,oneof=twilio meta aisensy"`
	TemplateName     string           `json:"template_name" validate:"required,max=200"`
	TemplateLanguage string           `json:"template_language" validate:"max=10"`
	RatePerMinute    int              `json:"rate_per_minute" validate:"gte=0,lte=6000"`
	Recipients       []RecipientInput `json:"recipients" validate:"dive"`
}

// AppendRecipientsRequest is the body for POST /api/campaigns/{id}/recipients
type AppendRecipientsRequest struct {
	Recipients []RecipientInput `json:"recipients" validate:"required,min=1,dive"`
}

// DispatchRequest is the body for POST /api/campaigns/{id}/dispatch
type DispatchRequest struct {
	RatePerMinute int  `json:"rate_per_minute" validate:"gte=0,lte=6000"`
	RetryFailed   bool `json:"retry_failed"`
	DryRun        bool `json:"dry_run"`
}

// CampaignStats counts recipients by status, computed from recipient rows
type CampaignStats struct {
	CampaignID      string         `json:"campaign_id"`
	TotalRecipients int            `json:"total_recipients"`
	ByStatus        map[string]int `json:"by_status"`
}

// IsSuccessfulStatus reports whether a recipient has already been handed to the provider successfully
func IsSuccessfulStatus(status string) bool {
	switch status {
	case RecipientStatusSent, RecipientStatusDelivered, RecipientStatusRead:
		return true
	}
	return false
}
