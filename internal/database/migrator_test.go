package database

import (
	"testing"
	"testing/fstest"

	"travel-backend/migrations"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingMigrations(t *testing.T) {
	files := fstest.MapFS{
		"002_b.sql":     {Data: []byte("select 2")},
		"001_a.sql":     {Data: []byte("select 1")},
		"003_reset.sql": {Data: []byte("drop table x")},
		"README.md":     {Data: []byte("docs")},
		"sub/004_c.sql": {Data: []byte("select 4")},
	}

	pending, err := PendingMigrations(files, map[string]bool{})
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql", "002_b.sql"}, pending)

	pending, err = PendingMigrations(files, map[string]bool{"001_a.sql": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"002_b.sql"}, pending)
}

func TestPendingMigrations_Embedded(t *testing.T) {
	pending, err := PendingMigrations(migrations.FS, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_ledger.sql", "002_crm_campaigns.sql"}, pending)
}
