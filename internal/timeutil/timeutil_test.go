package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, 5, d.Day())
	assert.Equal(t, Location(), d.Location())

	d, err = ParseDate("2024-03-05T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 10, d.UTC().Hour())

	_, err = ParseDate("05/03/2024")
	assert.Error(t, err)
}

func TestDayBounds(t *testing.T) {
	ts := time.Date(2024, 3, 5, 15, 30, 0, 0, Location())
	start := StartOfDay(ts)
	end := EndOfDay(ts)

	assert.Equal(t, 0, start.Hour())
	assert.Equal(t, 5, end.Day())
	assert.Equal(t, 23, end.Hour())
	assert.True(t, end.Sub(start) < 24*time.Hour)
}

func TestConfigure(t *testing.T) {
	original := Location()
	defer location.Store(original)

	require.NoError(t, Configure("UTC"))
	assert.Equal(t, "UTC", Location().String())
	assert.Error(t, Configure("Not/AZone"))
}
