package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
app:
  name: simpkl
  environment: test
database:
  path: /tmp/simpkl-test.db
quotas:
  default: 5
  groups:
    Umum: 10
groups:
  - name: LabA
    type: internship
    quota: 3
    is_active: true
    sort_order: 1
  - name: Umum
    type: internship
    is_active: true
    sort_order: 2
booking:
  max_advance_days: 180
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "simpkl", cfg.App.Name)
	assert.Equal(t, 8080, cfg.HTTP.Port, "default port applied")
	assert.Equal(t, "x-api-key", cfg.Auth.HeaderAPIKey)
	assert.Equal(t, 180, cfg.Booking.MaxAdvanceDays)
	assert.Equal(t, 90, cfg.Booking.BlockedWindowDays, "default window applied")
	require.Len(t, cfg.Groups, 2)
}

func TestQuotaTable(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/simpkl-test.db
quotas:
  default: 5
  groups:
    Umum: 10
    LabA: 7
groups:
  - name: LabA
    type: internship
    quota: 3
    is_active: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	table := cfg.QuotaTable()
	assert.Equal(t, 10, table.For("Umum"))
	assert.Equal(t, 7, table.For("LabA"), "quotas section beats per-group field")
	assert.Equal(t, 5, table.For("unlisted"))
}

func TestValidate(t *testing.T) {
	t.Run("missing database path", func(t *testing.T) {
		path := writeConfig(t, `app: {name: simpkl}`)
		_, err := Load(path)
		require.Error(t, err)
	})

	t.Run("duplicate groups", func(t *testing.T) {
		path := writeConfig(t, `
database:
  path: /tmp/simpkl-test.db
groups:
  - name: LabA
  - name: LabA
`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate resource group")
	})

	t.Run("telegram enabled without token", func(t *testing.T) {
		path := writeConfig(t, `
database:
  path: /tmp/simpkl-test.db
telegram:
  enabled: true
`)
		_, err := Load(path)
		require.Error(t, err)
	})
}

func TestEnvExpansion(t *testing.T) {
	t.Setenv("SIMPKL_TEST_DB", "/tmp/expanded.db")
	path := writeConfig(t, `
database:
  path: ${SIMPKL_TEST_DB}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/expanded.db", cfg.Database.Path)
}
