package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DISCOVERY_DEFAULT_RADIUS_KM", "")
	t.Setenv("DEFAULT_LATITUDE", "")
	t.Setenv("DEFAULT_LONGITUDE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Discovery.DefaultRadiusKm)
	assert.Equal(t, 1, cfg.Discovery.MinRadiusKm)
	assert.Equal(t, 50, cfg.Discovery.MaxRadiusKm)
	assert.Equal(t, 50, cfg.Discovery.DefaultResultCap)
	assert.Equal(t, 30, cfg.Messaging.SendRateLimit)
	assert.Equal(t, 10, cfg.Messaging.ReviewRateLimit)
	assert.InDelta(t, -22.9068, cfg.Geolocation.DefaultLatitude, 1e-9)
	assert.InDelta(t, -43.1729, cfg.Geolocation.DefaultLongitude, 1e-9)
	assert.Equal(t, 3*time.Second, cfg.Geolocation.Timeout)
}

func TestLoad_Alerts(t *testing.T) {
	t.Setenv("WHATSAPP_ACCESS_TOKEN", "")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Alerts.Enabled())
	assert.Equal(t, "pt_BR", cfg.Alerts.LanguageCode)
	assert.Equal(t, 10*time.Minute, cfg.Alerts.Cooldown)

	t.Setenv("WHATSAPP_ACCESS_TOKEN", "token")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "123456789")
	t.Setenv("OFFLINE_ALERT_COOLDOWN_MINUTES", "2")

	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.Alerts.Enabled())
	assert.Equal(t, 2*time.Minute, cfg.Alerts.Cooldown)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DISCOVERY_DEFAULT_RADIUS_KM", "12")
	t.Setenv("TYPESENSE_URL", "http://test-typesense:8108")
	t.Setenv("TYPESENSE_ENABLED", "true")
	t.Setenv("GEOLOCATION_TIMEOUT_MS", "500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Discovery.DefaultRadiusKm)
	assert.Equal(t, "http://test-typesense:8108", cfg.Typesense.URL)
	assert.True(t, cfg.Typesense.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.Geolocation.Timeout)
}

func TestLoad_RejectsOutOfRangeRadius(t *testing.T) {
	t.Setenv("DISCOVERY_DEFAULT_RADIUS_KM", "80")

	_, err := Load()
	assert.Error(t, err)
}
