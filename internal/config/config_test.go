package config_test

import (
	"testing"
	"time"

	"survey_wallet/internal/config"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func Test_LoadConfig(t *testing.T) {
	t.Run("ok, defaults", func(t *testing.T) {
		for _, k := range []string{"APP_PORT", "GATEWAY_TIMEOUT", "SURVEY_LIMIT", "SURVEY_REWARD_UNIT", "MPESA_BASE_URL"} {
			t.Setenv(k, "")
		}
		cfg := config.LoadConfig()
		require.Equal(t, "8080", cfg.AppPort)
		require.Equal(t, 15*time.Second, cfg.GatewayTimeout)
		require.Equal(t, 3, cfg.SurveyLimit)
		require.True(t, cfg.SurveyRewardUnit.Equal(decimal.NewFromInt(5)))
		require.Equal(t, "https://sandbox.safaricom.co.ke", cfg.Mpesa.BaseURL)
	})

	t.Run("ok, overrides", func(t *testing.T) {
		t.Setenv("DB_USER", "app")
		t.Setenv("DB_PASSWORD", "pw")
		t.Setenv("DB_HOST", "db")
		t.Setenv("DB_PORT", "3307")
		t.Setenv("DB_NAME", "wallet")
		t.Setenv("GATEWAY_TIMEOUT", "3s")
		t.Setenv("VIDEO_LIMIT", "5")
		t.Setenv("VIDEO_REWARD_UNIT", "2.5")
		t.Setenv("IS_PROD", "true")

		cfg := config.LoadConfig()
		require.Equal(t, "app:pw@tcp(db:3307)/wallet?parseTime=true", cfg.DSN())
		require.Equal(t, 3*time.Second, cfg.GatewayTimeout)
		require.Equal(t, 5, cfg.VideoLimit)
		require.True(t, cfg.VideoRewardUnit.Equal(decimal.RequireFromString("2.5")))
		require.True(t, cfg.IsProd)
	})

	t.Run("ok, malformed values fall back", func(t *testing.T) {
		t.Setenv("GATEWAY_TIMEOUT", "soon")
		t.Setenv("SURVEY_LIMIT", "many")
		t.Setenv("SURVEY_REWARD_UNIT", "five")
		cfg := config.LoadConfig()
		require.Equal(t, 15*time.Second, cfg.GatewayTimeout)
		require.Equal(t, 3, cfg.SurveyLimit)
		require.True(t, cfg.SurveyRewardUnit.Equal(decimal.NewFromInt(5)))
	})
}
