package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, "local", cfg.Media.Driver)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Broker.Kafka.Brokers)

	// no secret configured
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigFileEnvAndSecrets(t *testing.T) {
	dir := t.TempDir()
	yml := `
server:
  port: 9000
schedule:
  time_zone: Europe/Paris
media:
  driver: s3
  s3:
    bucket: photos
outbox:
  poll_interval: 2s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(yml), 0o600))

	t.Setenv("CAREGIVER_SERVER_PORT", "9100")
	t.Setenv("CAREGIVER_JWT_SECRET", "top-secret")
	t.Setenv("CAREGIVER_DB_PASSWORD", "pg-pass")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, "photos", cfg.Media.S3.Bucket)
	assert.Equal(t, "top-secret", cfg.JWT.Secret)
	assert.Equal(t, "top-secret", cfg.JWT.RefreshSecret)
	assert.Equal(t, "pg-pass", cfg.Database.Password)
	assert.Contains(t, cfg.Database.DSN(), "password=pg-pass")
	require.NoError(t, cfg.Validate())

	loc, err := cfg.Schedule.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())
}

func TestValidateRejectsUnknownDrivers(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	cfg.JWT.Secret = "x"

	cfg.Media.Driver = "ftp"
	assert.Error(t, cfg.Validate())

	cfg.Media.Driver = "local"
	cfg.Broker.Driver = "nats"
	assert.Error(t, cfg.Validate())

	cfg.Broker.Driver = "kafka"
	cfg.Schedule.TimeZone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())
}
