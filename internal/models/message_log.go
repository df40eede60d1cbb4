package models

import "time"

// MessageLog represents a sent WhatsApp message
type MessageLog struct {
	ID                string    `json:"id"`
	OrgID             string    `json:"org_id"`
	CustomerID        *string   `json:"customer_id,omitempty"`
	CampaignID        *string   `json:"campaign_id,omitempty"`
	Phone             string    `json:"phone"`
	Provider          string    `json:"provider"`
	MessageType       string    `json:"message_type"`
	Body              string    `json:"body"`
	Status            string    `json:"status"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Message types
const (
	MessageTypeTemplate = "template"
	MessageTypeText     = "text"
	MessageTypeCampaign = "campaign"
)

// SendMessageRequest is the body for POST /api/customers/{id}/messages.
// Either TemplateName or Text must be set.
type SendMessageRequest struct {
	TemplateName     string            `json:"template_name" validate:"max=200"`
	TemplateLanguage string            `json:"template_language" validate:"max=10"`
	Variables        map[string]string `json:"variables"`
	Text             string            `json:"text" validate:"max=4096"`
}
