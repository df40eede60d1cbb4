package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"travel-backend/internal/metrics"
	"travel-backend/internal/models"
	"travel-backend/internal/store"
	"travel-backend/internal/whatsapp"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessagingService sends one-off WhatsApp messages to customers
type MessagingService struct {
	Store           store.Store
	Providers       whatsapp.Registry
	DefaultProvider string
	Logger          *zap.Logger
	Now             func() time.Time
}

func NewMessagingService(st store.Store, providers whatsapp.Registry, defaultProvider string, logger *zap.Logger) *MessagingService {
	return &MessagingService{
		Store:           st,
		Providers:       providers,
		DefaultProvider: defaultProvider,
		Logger:          logger.Named("messaging"),
		Now:             time.Now,
	}
}

// Send delivers a template (any time) or free text (only inside the session window).
// The attempt is logged either way; a provider failure returns the failed log with ErrDeliveryFailed.
func (s *MessagingService) Send(ctx context.Context, orgID, customerID string, req *models.SendMessageRequest) (*models.MessageLog, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	isTemplate := strings.TrimSpace(req.TemplateName) != ""
	isText := strings.TrimSpace(req.Text) != ""
	switch {
	case isTemplate && isText:
		return nil, invalid("text", "send either template_name or text, not both")
	case !isTemplate && !isText:
		return nil, invalid("template_name", "template_name or text is required")
	}

	customer, err := s.Store.Customers().Get(ctx, orgID, customerID)
	if err != nil {
		return nil, err
	}
	provider, err := s.Providers.Get(s.DefaultProvider)
	if err != nil {
		return nil, invalid("provider", err.Error())
	}
	if isText && !whatsapp.InSessionWindow(customer.LastInboundAt, s.Now()) {
		return nil, ErrOutsideSessionWindow
	}

	log := &models.MessageLog{
		ID:         uuid.NewString(),
		OrgID:      orgID,
		CustomerID: &customer.ID,
		Phone:      customer.Phone,
		Provider:   provider.Name(),
	}

	var messageID string
	var sendErr error
	if isTemplate {
		log.MessageType = models.MessageTypeTemplate
		log.Body = templateSummary(req.TemplateName, req.Variables)
		messageID, sendErr = provider.SendTemplate(ctx, whatsapp.TemplateMessage{
			To:           customer.Phone,
			TemplateName: req.TemplateName,
			Language:     req.TemplateLanguage,
			Variables:    req.Variables,
		})
	} else {
		log.MessageType = models.MessageTypeText
		log.Body = req.Text
		messageID, sendErr = provider.SendText(ctx, customer.Phone, req.Text)
	}

	log.ProviderMessageID = messageID
	result := "sent"
	log.Status = models.RecipientStatusSent
	if sendErr != nil {
		result = "failed"
		log.Status = models.RecipientStatusFailed
		log.ErrorMessage = sendErr.Error()
	}
	metrics.WhatsAppMessagesTotal.WithLabelValues(provider.Name(), log.MessageType, result).Inc()

	if err := s.Store.MessageLogs().Create(ctx, log); err != nil {
		s.Logger.Error("message log write failed", zap.String("customer_id", customer.ID), zap.Error(err))
	}
	if sendErr != nil {
		s.Logger.Warn("message send failed",
			zap.String("org_id", orgID),
			zap.String("customer_id", customer.ID),
			zap.String("provider", provider.Name()),
			zap.Error(sendErr))
		return log, fmt.Errorf("%w: %v", ErrDeliveryFailed, sendErr)
	}
	return log, nil
}

// templateSummary renders a template send for the message log: "template:name [v1, v2]"
func templateSummary(name string, vars map[string]string) string {
	values := whatsapp.OrderedValues(vars)
	if len(values) == 0 {
		return "template:" + name
	}
	return fmt.Sprintf("template:%s [%s]", name, strings.Join(values, ", "))
}
