package models

import "time"

type Customer struct {
	ID            string     `json:"id"`
	OrgID         string     `json:"org_id"`
	Name          string     `json:"name"`
	Phone         string     `json:"phone"`
	Email         string     `json:"email"`
	City          string     `json:"city"`
	Notes         string     `json:"notes"`
	OptedIn       bool       `json:"opted_in"`
	LastInboundAt *time.Time `json:"last_inbound_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CustomerRequest represents the request body for creating or updating a customer
type CustomerRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Phone   string `json:"phone" validate:"required,min=8,max=20"`
	Email   string `json:"email" validate:"omitempty,email"`
	City    string `json:"city" validate:"max=80"`
	Notes   string `json:"notes" validate:"max=2000"`
	OptedIn bool   `json:"opted_in"`
}
