package dispatch

import (
	"context"
	"fmt"
	"sync"

	"travel-backend/internal/models"
	"travel-backend/internal/store"

	"go.uber.org/zap"
)

// Manager runs dispatches in the background, at most one per campaign
type Manager struct {
	dispatcher *Dispatcher
	base       context.Context
	logger     *zap.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager ties background runs to base; cancelling base cancels every run
func NewManager(base context.Context, d *Dispatcher) *Manager {
	return &Manager{
		dispatcher: d,
		base:       base,
		logger:     d.Logger,
		running:    make(map[string]context.CancelFunc),
	}
}

// Start launches a run for campaign. It fails with store.ErrConflict if one is in progress.
func (m *Manager) Start(campaign *models.Campaign, req models.DispatchRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.running[campaign.ID]; busy {
		return fmt.Errorf("%w: campaign %s is already being dispatched", store.ErrConflict, campaign.ID)
	}
	if !req.DryRun {
		if _, err := m.dispatcher.Providers.Get(campaign.Provider); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(m.base)
	m.running[campaign.ID] = cancel
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()
		defer func() {
			cancel()
			m.mu.Lock()
			delete(m.running, campaign.ID)
			m.mu.Unlock()
		}()
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("dispatch panicked", zap.String("campaign_id", campaign.ID), zap.Any("panic", r))
			}
		}()

		if _, err := m.dispatcher.Run(ctx, campaign, Options{
			RatePerMinute: req.RatePerMinute,
			RetryFailed:   req.RetryFailed,
			DryRun:        req.DryRun,
		}); err != nil {
			m.logger.Error("dispatch failed", zap.String("campaign_id", campaign.ID), zap.Error(err))
		}
	}()
	return nil
}

// Cancel stops a running dispatch. It reports whether one was running.
func (m *Manager) Cancel(campaignID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cancel, ok := m.running[campaignID]
	if ok {
		cancel()
	}
	return ok
}

// Running reports whether campaignID is being dispatched
func (m *Manager) Running(campaignID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[campaignID]
	return ok
}

// Wait blocks until every background run has returned
func (m *Manager) Wait() {
	m.wg.Wait()
}
