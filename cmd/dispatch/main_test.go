package main

import (
	"testing"

	"travel-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCheckStartable(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		resume  bool
		wantErr bool
	}{
		{name: "draft", status: models.CampaignStatusDraft},
		{name: "completed rerun", status: models.CampaignStatusCompleted},
		{name: "cancelled", status: models.CampaignStatusCancelled},
		{name: "running refused", status: models.CampaignStatusRunning, wantErr: true},
		{name: "running resumed", status: models.CampaignStatusRunning, resume: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkStartable(&models.Campaign{ID: "camp-1", Status: tt.status}, tt.resume)
			if tt.wantErr {
				assert.ErrorContains(t, err, "-resume")
				return
			}
			assert.NoError(t, err)
		})
	}
}
