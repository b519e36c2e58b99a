package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phenomsim/internal/phenomenon/deadcat"
	"phenomsim/internal/phenomenon/insider"
)

func TestDefaultMirrorsModels(t *testing.T) {
	cfg := Default()

	assert.Equal(t, deadcat.DefaultConfig(), cfg.DeadCat)
	assert.Equal(t, insider.DefaultConfig(), cfg.Insider)
	assert.Len(t, cfg.Simulation.Instruments, 5)
	assert.Equal(t, int64(12345), cfg.Simulation.Seed)
	assert.True(t, cfg.Simulation.Instruments[2].Meme)
}

func TestLoadOverridesFieldByField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
simulation:
  seed: 7
  days: 30
  disabled_kinds: insider_buying
  instruments:
    - symbol: AAA
      price: 10
      volatility: 0.02
deadcat:
  daily_chance: 0.1
  probability:
    base: 0.4
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(7), cfg.Simulation.Seed)
	assert.Equal(t, 30, cfg.Simulation.Days)
	require.Len(t, cfg.Simulation.Instruments, 1)
	assert.Equal(t, "AAA", cfg.Simulation.Instruments[0].Symbol)
	assert.Equal(t, 0.1, cfg.DeadCat.DailyChance)
	assert.Equal(t, 0.4, cfg.DeadCat.Probability.Base)
	assert.Equal(t, deadcat.DefaultConfig().Probability.Max, cfg.DeadCat.Probability.Max)
	assert.True(t, cfg.KindDisabled("insider_buying"))
	assert.False(t, cfg.KindDisabled("dead_cat_bounce"))
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"no instruments":   func(c *Config) { c.Simulation.Instruments = nil },
		"duplicate symbol": func(c *Config) { c.Simulation.Instruments[1].Symbol = c.Simulation.Instruments[0].Symbol },
		"zero price":       func(c *Config) { c.Simulation.Instruments[0].Price = 0 },
		"probability cap":  func(c *Config) { c.DeadCat.Probability.Max = 1 },
		"telegram token":   func(c *Config) { c.Alerting.Telegram.Enabled = true },
		"interval":         func(c *Config) { c.Scheduler.Interval = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 5, cfg.ResolveMaxPoints(5))
	assert.Equal(t, 100000, cfg.ResolveMaxPoints(0))
}
