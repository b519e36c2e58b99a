package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"phenomsim/internal/logging"
	"phenomsim/internal/phenomenon/deadcat"
	"phenomsim/internal/phenomenon/insider"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	DeadCat    deadcat.Config   `mapstructure:"deadcat"`
	Insider    insider.Config   `mapstructure:"insider"`
	Validation ValidationConfig `mapstructure:"validation"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	Export     ExportConfig     `mapstructure:"export"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. An empty DSN keeps
// everything in memory.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// SchedulerConfig governs the live cadence: one simulated day per interval.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// InstrumentConfig seeds one simulated instrument.
type InstrumentConfig struct {
	Symbol     string  `mapstructure:"symbol"`
	Name       string  `mapstructure:"name"`
	Price      float64 `mapstructure:"price"`
	Volatility float64 `mapstructure:"volatility"`
	Meme       bool    `mapstructure:"meme"`
	Trend      float64 `mapstructure:"trend"`
}

// SimulationConfig drives the day loop.
type SimulationConfig struct {
	Seed          int64              `mapstructure:"seed"`
	Days          int                `mapstructure:"days"`
	Instruments   []InstrumentConfig `mapstructure:"instruments"`
	DisabledKinds []string           `mapstructure:"disabled_kinds"`

	ActiveNoiseDamping     float64 `mapstructure:"active_noise_damping"`
	ConvergenceSpeed       float64 `mapstructure:"convergence_speed"`
	ActiveConvergenceSpeed float64 `mapstructure:"active_convergence_speed"`
}

// ValidationConfig sets coupling tolerances.
type ValidationConfig struct {
	PriceTolerance     float64 `mapstructure:"price_tolerance"`
	PctTolerance       float64 `mapstructure:"pct_tolerance"`
	SentimentTolerance float64 `mapstructure:"sentiment_tolerance"`
}

// AlertingConfig defines where defect reports go.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	APIBase        string        `mapstructure:"api_base"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int    `mapstructure:"max_data_points"`
	Dir           string `mapstructure:"dir"`
}

// MetricsConfig controls the Prometheus endpoint in live mode.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Listen    string `mapstructure:"listen"`
	Namespace string `mapstructure:"namespace"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	return decode(v)
}

// Default returns the configuration used when no file or environment is present.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("default config invalid: %v", err))
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("PHENOMSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	// Model sections start from the reference model; the file overrides field by field.
	cfg := Config{
		DeadCat: deadcat.DefaultConfig(),
		Insider: insider.DefaultConfig(),
	}
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "phenomsim")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("scheduler.interval", "1m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x64636221))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("simulation.seed", int64(12345))
	v.SetDefault("simulation.days", 500)
	v.SetDefault("simulation.instruments", []map[string]any{
		{"symbol": "NXTG", "name": "NextGen Systems", "price": 100.0, "volatility": 0.02},
		{"symbol": "QBIT", "name": "Qubit Dynamics", "price": 45.0, "volatility": 0.035},
		{"symbol": "MOON", "name": "MoonShot Holdings", "price": 12.0, "volatility": 0.07, "meme": true},
		{"symbol": "GRDL", "name": "Gradle Utilities", "price": 230.0, "volatility": 0.012},
		{"symbol": "FLUX", "name": "Flux Biotech", "price": 33.33, "volatility": 0.045},
	})
	v.SetDefault("simulation.disabled_kinds", []string{})
	v.SetDefault("simulation.active_noise_damping", 0.3)
	v.SetDefault("simulation.convergence_speed", 0.15)
	v.SetDefault("simulation.active_convergence_speed", 0.05)

	v.SetDefault("validation.price_tolerance", 0.005)
	v.SetDefault("validation.pct_tolerance", 0.0015)
	v.SetDefault("validation.sentiment_tolerance", 0.03)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.request_timeout", "10s")

	v.SetDefault("export.max_data_points", 100000)
	v.SetDefault("export.dir", "exports")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9108")
	v.SetDefault("metrics.namespace", "phenomsim")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Simulation.Days < 0 {
		return fmt.Errorf("simulation.days cannot be negative")
	}
	if len(c.Simulation.Instruments) == 0 {
		return fmt.Errorf("simulation.instruments must not be empty")
	}
	seen := make(map[string]bool, len(c.Simulation.Instruments))
	for i, inst := range c.Simulation.Instruments {
		if inst.Symbol == "" {
			return fmt.Errorf("simulation.instruments[%d].symbol is required", i)
		}
		if seen[inst.Symbol] {
			return fmt.Errorf("simulation.instruments: duplicate symbol %s", inst.Symbol)
		}
		seen[inst.Symbol] = true
		if inst.Price <= 0 {
			return fmt.Errorf("simulation.instruments[%s].price must be greater than zero", inst.Symbol)
		}
		if inst.Volatility < 0 {
			return fmt.Errorf("simulation.instruments[%s].volatility cannot be negative", inst.Symbol)
		}
	}
	if err := c.DeadCat.Validate(); err != nil {
		return fmt.Errorf("deadcat: %w", err)
	}
	if err := c.Insider.Validate(); err != nil {
		return fmt.Errorf("insider: %w", err)
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}

// KindDisabled reports whether a phenomenon kind is switched off.
func (c *Config) KindDisabled(kind string) bool {
	for _, k := range c.Simulation.DisabledKinds {
		if strings.EqualFold(strings.TrimSpace(k), kind) {
			return true
		}
	}
	return false
}
