package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 900, cfg.ExportSignedURLSeconds)
	assert.Equal(t, 0.65, cfg.ReportConfidenceThreshold)
	assert.Equal(t, "America/Bogota", cfg.ReportDefaultTimezone)
	assert.Equal(t, "classification-v1", cfg.ClassificationPromptVersion)
	assert.Equal(t, 7, cfg.ClassificationWindowDays)
	assert.Equal(t, 120, cfg.ClassificationSchedulerLimit)
	assert.Equal(t, 60, cfg.AlertCooldownMinutes)
	assert.Equal(t, "alert-v1-weighted", cfg.AlertSignalVersion)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REPORT_CONFIDENCE_THRESHOLD", "0.8")
	t.Setenv("CLASSIFICATION_WINDOW_DAYS", "3")
	t.Setenv("ALERT_COOLDOWN_MINUTES", "5000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.8, cfg.ReportConfidenceThreshold)
	assert.Equal(t, 3, cfg.ClassificationWindowDays)
	// Cooldown is clamped to [1, 1440].
	assert.Equal(t, 1440, cfg.AlertCooldownMinutes)
}

func TestGetEnvBool(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", "on"} {
		t.Setenv("FLAG_UNDER_TEST", v)
		assert.True(t, getEnvBool("FLAG_UNDER_TEST", false), v)
	}
	t.Setenv("FLAG_UNDER_TEST", "off")
	assert.False(t, getEnvBool("FLAG_UNDER_TEST", true))
}

func TestRequireDB(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.RequireDB())

	cfg.DatabaseURL = "postgres://localhost/claro"
	assert.NoError(t, cfg.RequireDB())

	cfg = &Config{DBResourceARN: "arn:r", DBSecretARN: "arn:s", DBName: "claro"}
	assert.NoError(t, cfg.RequireDB())
}

func TestSocialChannelList(t *testing.T) {
	cfg := &Config{SocialChannels: "Facebook, instagram ,,X"}
	assert.Equal(t, []string{"facebook", "instagram", "x"}, cfg.SocialChannelList())
}
