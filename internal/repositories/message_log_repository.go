package repositories

import (
	"context"

	"travel-backend/internal/models"
)

type MessageLogRepository struct {
	DB DBTX
}

func (r *MessageLogRepository) Create(ctx context.Context, l *models.MessageLog) error {
	return mapError(r.DB.QueryRow(ctx,
		`INSERT INTO whatsapp_message_logs(id, org_id, customer_id, campaign_id, phone, provider,
		                                   message_type, body, status, provider_message_id, error_message)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at`,
		l.ID, l.OrgID, l.CustomerID, l.CampaignID, l.Phone, l.Provider, l.MessageType, l.Body,
		l.Status, l.ProviderMessageID, l.ErrorMessage,
	).Scan(&l.CreatedAt))
}

func (r *MessageLogRepository) ListByCustomer(ctx context.Context, orgID, customerID string, limit int) ([]*models.MessageLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.Query(ctx,
		`SELECT id, org_id, customer_id, campaign_id, phone, provider, message_type, body, status,
		        provider_message_id, error_message, created_at
		 FROM whatsapp_message_logs
		 WHERE org_id=$1 AND customer_id=$2
		 ORDER BY created_at DESC
		 LIMIT $3`, orgID, customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.MessageLog
	for rows.Next() {
		var l models.MessageLog
		if err := rows.Scan(&l.ID, &l.OrgID, &l.CustomerID, &l.CampaignID, &l.Phone, &l.Provider,
			&l.MessageType, &l.Body, &l.Status, &l.ProviderMessageID, &l.ErrorMessage, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
