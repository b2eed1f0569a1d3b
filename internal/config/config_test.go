package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bher20/avoidedcost/internal/calc"
)

func TestFromEnvDefaults(t *testing.T) {
	c := FromEnv()
	assert.Equal(t, Default(), c)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("AVOIDEDCOST_DB_DRIVER", "postgres")
	t.Setenv("AVOIDEDCOST_DB_DSN", "postgres://db/avoidedcost")
	t.Setenv("AVOIDEDCOST_AUTO_MIGRATE", "false")
	t.Setenv("AVOIDEDCOST_CONCURRENCY", "8")
	t.Setenv("AVOIDEDCOST_CONTINUE_ON_ERROR", "true")
	t.Setenv("AVOIDEDCOST_AUTH_ENABLED", "1")
	t.Setenv("AVOIDEDCOST_ALERT_WEBHOOK_URL", "https://hooks.slack.com/services/x")
	t.Setenv("AVOIDEDCOST_ALERT_MIN_FAILURES", "3")

	c := FromEnv()
	assert.Equal(t, "postgres", c.DBDriver)
	assert.Equal(t, "postgres://db/avoidedcost", c.DBDSN)
	assert.False(t, c.AutoMigrate)
	assert.Equal(t, 8, c.Concurrency)
	assert.True(t, c.ContinueOnError)
	assert.True(t, c.AuthEnabled)
	assert.Equal(t, "https://hooks.slack.com/services/x", c.AlertWebhookURL)
	assert.Equal(t, 3, c.AlertMinFailures)
}

func TestFromEnvIgnoresInvalid(t *testing.T) {
	t.Setenv("AVOIDEDCOST_CONCURRENCY", "zero")
	t.Setenv("AVOIDEDCOST_AUTO_MIGRATE", "perhaps")
	c := FromEnv()
	assert.Equal(t, 1, c.Concurrency)
	assert.True(t, c.AutoMigrate)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avoidedcost.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_driver: memory\nconcurrency: 4\nlisten: \":9000\"\n"), 0o644))
	t.Setenv("AVOIDEDCOST_LISTEN", ":9100")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", c.DBDriver)
	assert.Equal(t, 4, c.Concurrency)
	assert.Equal(t, ":9100", c.Listen)
	assert.Equal(t, "@daily", c.WorkerSchedule)
}

func TestLoadEmail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avoidedcost.yaml")
	yml := "email:\n  provider: smtp\n  from: alerts@x.org\n  to: [ops@x.org]\n  host: mail.x.org\n  port: 587\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("AVOIDEDCOST_EMAIL_TO", "a@x.org, b@x.org")
	t.Setenv("AVOIDEDCOST_SMTP_ENCRYPTION", "tls")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "smtp", c.Email.Provider)
	assert.Equal(t, 587, c.Email.Port)
	assert.Equal(t, []string{"a@x.org", "b@x.org"}, c.Email.To)
	assert.Equal(t, "tls", c.Email.Encryption)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_drvier: memory\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestThermsAdjustmentsOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "therms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pge:\n  Annual: 1.0\nsocalgas:\n  winter: 1.2\n"), 0o644))

	c := Default()
	c.ThermsProfilesFile = path
	adj, err := c.ThermsAdjustments()
	require.NoError(t, err)

	f, err := adj.Factor("PGE", "annual")
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)

	f, err = adj.Factor("pge", "summer")
	require.NoError(t, err)
	assert.Equal(t, 0.8293, f)

	f, err = adj.Factor("SOCALGAS", "winter")
	require.NoError(t, err)
	assert.Equal(t, 1.2, f)
}

func TestLoadThermsProfilesUnknownProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "therms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("PGE:\n  spring: 1.0\n"), 0o644))
	_, err := LoadThermsProfiles(path)
	assert.ErrorIs(t, err, calc.ErrUnknownThermsProfile)
}
