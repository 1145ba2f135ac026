package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fullConfig() Config {
	return Config{
		AvvanceBaseURL:      "https://api.example.com",
		AvvanceAuthURL:      "https://auth.example.com/token",
		AvvanceClientID:     "client",
		AvvanceClientSecret: "secret",
		OrdersBaseURL:       "http://orders.internal",
		WebhookUsername:     "hook",
		WebhookPassword:     "hook-secret",
		OperatorUsername:    "ops",
		OperatorPassword:    "ops-secret",
		PollTokenSecret:     "poll-secret",
	}
}

func TestValidateConfig(t *testing.T) {
	t.Run("complete configuration passes", func(t *testing.T) {
		app := &Application{cfg: fullConfig()}
		require.NoError(t, app.validateConfig())
	})

	t.Run("missing operator credentials are rejected", func(t *testing.T) {
		cfg := fullConfig()
		cfg.OperatorUsername = ""
		cfg.OperatorPassword = ""
		app := &Application{cfg: cfg}

		err := app.validateConfig()
		require.Error(t, err)
		require.Contains(t, err.Error(), "OPERATOR_USERNAME")
		require.Contains(t, err.Error(), "OPERATOR_PASSWORD")
	})

	t.Run("every required variable is reported", func(t *testing.T) {
		app := &Application{cfg: Config{}}

		err := app.validateConfig()
		require.Error(t, err)
		for _, key := range []string{
			"AVVANCE_BASE_URL", "AVVANCE_AUTH_URL",
			"AVVANCE_CLIENT_ID", "AVVANCE_CLIENT_SECRET",
			"ORDERS_BASE_URL",
			"WEBHOOK_USERNAME", "WEBHOOK_PASSWORD",
			"OPERATOR_USERNAME", "OPERATOR_PASSWORD",
			"POLL_TOKEN_SECRET",
		} {
			require.Contains(t, err.Error(), key)
		}
	})
}
