package app

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/skintrend/internal/config"
)

func testApp(mutate func(*config.Config)) *App {
	cfg := config.Defaults()
	if mutate != nil {
		mutate(&cfg)
	}
	return New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNeedsArchiver(t *testing.T) {
	cases := []struct {
		mode    string
		enabled bool
		want    bool
	}{
		{"full", true, true},
		{"market", true, true},
		{"MARKET", true, true},
		{"server", true, false},
		{"full", false, false},
	}
	for _, tc := range cases {
		cfg := config.Defaults()
		cfg.Mode = tc.mode
		cfg.Archive.Enabled = tc.enabled
		assert.Equal(t, tc.want, needsArchiver(&cfg), "mode=%s enabled=%v", tc.mode, tc.enabled)
	}
}

func TestAlertRelayNeedsAChannel(t *testing.T) {
	a := testApp(nil)
	assert.Nil(t, a.buildAlertRelay(&Dependencies{}))

	a = testApp(func(c *config.Config) {
		c.Notify.DiscordWebhookURL = "https://discord.example/hook"
	})
	assert.NotNil(t, a.buildAlertRelay(&Dependencies{}))
}

func TestCloseRunsClosersInReverse(t *testing.T) {
	a := testApp(nil)
	var order []int
	a.closers = append(a.closers, func() { order = append(order, 1) }, func() { order = append(order, 2) })

	a.Close()
	a.Close()
	assert.Equal(t, []int{2, 1}, order)
}

func TestRunRejectsUnknownModeBeforeWiring(t *testing.T) {
	a := testApp(func(c *config.Config) { c.Mode = "backtest" })
	err := a.Run(t.Context())
	assert.ErrorContains(t, err, `unsupported mode "backtest"`)
	assert.Empty(t, a.closers)
}
