package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"travel-backend/internal/models"
	"travel-backend/internal/store"
	"travel-backend/internal/whatsapp"

	"github.com/google/uuid"
)

type CustomerService struct {
	Store       store.Store
	CountryCode string
}

func NewCustomerService(st store.Store, countryCode string) *CustomerService {
	return &CustomerService{Store: st, CountryCode: countryCode}
}

func (s *CustomerService) normalizePhone(phone string) (string, error) {
	normalized, err := whatsapp.NormalizePhone(phone, s.CountryCode)
	if err != nil {
		return "", invalid("phone", err.Error())
	}
	return normalized, nil
}

func (s *CustomerService) Create(ctx context.Context, orgID string, req *models.CustomerRequest) (*models.Customer, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	phone, err := s.normalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	customer := &models.Customer{
		ID:      uuid.NewString(),
		OrgID:   orgID,
		Name:    strings.TrimSpace(req.Name),
		Phone:   phone,
		Email:   strings.TrimSpace(req.Email),
		City:    strings.TrimSpace(req.City),
		Notes:   req.Notes,
		OptedIn: req.OptedIn,
	}
	if err := s.Store.Customers().Create(ctx, customer); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, conflict("a customer with phone %s already exists", phone)
		}
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return customer, nil
}

func (s *CustomerService) Get(ctx context.Context, orgID, id string) (*models.Customer, error) {
	return s.Store.Customers().Get(ctx, orgID, id)
}

// SearchByPhone looks a customer up by any spelling of their phone number
func (s *CustomerService) SearchByPhone(ctx context.Context, orgID, phone string) (*models.Customer, error) {
	normalized, err := s.normalizePhone(phone)
	if err != nil {
		return nil, err
	}
	return s.Store.Customers().GetByPhone(ctx, orgID, normalized)
}

func (s *CustomerService) List(ctx context.Context, orgID string) ([]*models.Customer, error) {
	return s.Store.Customers().List(ctx, orgID)
}

func (s *CustomerService) Update(ctx context.Context, orgID, id string, req *models.CustomerRequest) (*models.Customer, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	phone, err := s.normalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}

	customer, err := s.Store.Customers().Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	customer.Name = strings.TrimSpace(req.Name)
	customer.Phone = phone
	customer.Email = strings.TrimSpace(req.Email)
	customer.City = strings.TrimSpace(req.City)
	customer.Notes = req.Notes
	customer.OptedIn = req.OptedIn

	if err := s.Store.Customers().Update(ctx, customer); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, conflict("a customer with phone %s already exists", phone)
		}
		return nil, err
	}
	return s.Store.Customers().Get(ctx, orgID, id)
}

func (s *CustomerService) Delete(ctx context.Context, orgID, id string) error {
	return s.Store.Customers().Delete(ctx, orgID, id)
}

// RecordInbound notes that the customer wrote in at the given time, opening the session window
func (s *CustomerService) RecordInbound(ctx context.Context, orgID, phone string, at time.Time) error {
	normalized, err := s.normalizePhone(phone)
	if err != nil {
		return err
	}
	return s.Store.Customers().TouchInbound(ctx, orgID, normalized, at)
}

// Messages returns the customer's message history, newest first
func (s *CustomerService) Messages(ctx context.Context, orgID, id string, limit int) ([]*models.MessageLog, error) {
	if _, err := s.Store.Customers().Get(ctx, orgID, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.Store.MessageLogs().ListByCustomer(ctx, orgID, id, limit)
}
