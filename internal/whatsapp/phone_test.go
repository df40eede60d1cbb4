package whatsapp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "9876543210", want: "919876543210"},
		{in: "098765 43210", want: "919876543210"},
		{in: "+91 98765-43210", want: "919876543210"},
		{in: "whatsapp:+14155238886", want: "14155238886"},
		{in: "0044 20 7946 0958", want: "442079460958"},
		{in: "919876543210", want: "919876543210"},
		{in: "12345", wantErr: true},
		{in: "", wantErr: true},
		{in: "+1234567890123456", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizePhone(tt.in, "91")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInSessionWindow(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	assert.False(t, InSessionWindow(nil, now))
	assert.False(t, InSessionWindow(&time.Time{}, now))
	assert.True(t, InSessionWindow(at(time.Minute), now))
	assert.True(t, InSessionWindow(at(23*time.Hour+59*time.Minute), now))
	assert.False(t, InSessionWindow(at(24*time.Hour), now))
	assert.False(t, InSessionWindow(at(25*time.Hour), now))
	assert.True(t, InSessionWindow(at(-time.Minute), now))
}
