package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"dealer-pricing/internal/logging"
	"dealer-pricing/internal/pricing"
)

// EnvPrefix prefixes every environment override, e.g. DEALERPRICING_DATABASE_DSN.
const EnvPrefix = "DEALERPRICING"

// Comparable sources.
const (
	SourcePostgres = "postgres"
	SourceHTTP     = "http"
)

// Config materialises application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Logging     logging.Config    `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Comparables ComparablesConfig `mapstructure:"comparables"`
	Engine      pricing.Options   `mapstructure:"engine"`
	RulesCache  RulesCacheConfig  `mapstructure:"rules_cache"`
	Reprice     RepriceConfig     `mapstructure:"reprice"`
	Alerting    AlertingConfig    `mapstructure:"alerting"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Export      ExportConfig      `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ComparablesConfig selects where comparable listings come from.
type ComparablesConfig struct {
	Source         string        `mapstructure:"source"`
	YearPrefilter  int           `mapstructure:"year_prefilter"`
	MaxListings    int           `mapstructure:"max_listings"`
	BaseURL        string        `mapstructure:"base_url"`
	APIToken       string        `mapstructure:"api_token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// RulesCacheConfig tunes the in-memory pricing rules cache.
type RulesCacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RepriceConfig governs bulk repricing.
type RepriceConfig struct {
	Workers           int           `mapstructure:"workers"`
	VehicleTimeout    time.Duration `mapstructure:"vehicle_timeout"`
	Persist           bool          `mapstructure:"persist"`
	Cron              string        `mapstructure:"cron"`
	Interval          time.Duration `mapstructure:"interval"`
	AlignToBucket     bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey   int64         `mapstructure:"advisory_lock_key"`
	StartupDelay      time.Duration `mapstructure:"startup_delay"`
	Tenants           []string      `mapstructure:"tenants"`
	InventoryPageSize int           `mapstructure:"inventory_page_size"`
}

// AlertingConfig defines deviation alert thresholds and routing.
type AlertingConfig struct {
	Enabled      bool           `mapstructure:"enabled"`
	ThresholdPct float64        `mapstructure:"threshold_pct"`
	Cooldown     time.Duration  `mapstructure:"cooldown"`
	Retention    time.Duration  `mapstructure:"retention"`
	Channels     []string       `mapstructure:"channels"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram alert parameters.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	ListenAddr   string        `mapstructure:"listen_addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxComparables int      `mapstructure:"max_comparables"`
	S3             S3Config `mapstructure:"s3"`
}

// S3Config describes the optional export upload target.
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Prefix       string `mapstructure:"prefix"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

// Load builds configuration from file, environment, and defaults. A .env file
// in the working directory is applied to the environment first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

	var cfg Config
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
	v.SetDefault("app.name", "dealer-pricing")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("comparables.source", SourcePostgres)
	v.SetDefault("comparables.base_url", "")
	v.SetDefault("comparables.api_token", "")
	v.SetDefault("comparables.year_prefilter", 6)
	v.SetDefault("comparables.max_listings", 500)
	v.SetDefault("comparables.request_timeout", "10s")
	v.SetDefault("comparables.rate_limit_rps", 5.0)
	v.SetDefault("comparables.rate_limit_burst", 5)
	v.SetDefault("comparables.user_agent", "dealer-pricing/1.0")

	def := pricing.DefaultOptions()
	v.SetDefault("engine.year_window", def.YearWindow)
	v.SetDefault("engine.mileage_band_pct", def.MileageBandPct)
	v.SetDefault("engine.mileage_floor_km", def.MileageFloorKm)
	v.SetDefault("engine.min_sample", def.MinSample)
	v.SetDefault("engine.max_sample", def.MaxSample)
	v.SetDefault("engine.max_widen_steps", def.MaxWidenSteps)
	v.SetDefault("engine.widen_year_step", def.WidenYearStep)
	v.SetDefault("engine.widen_mileage_step", def.WidenMileageStep)
	v.SetDefault("engine.recency_half_life_days", def.RecencyHalfLifeDays)
	v.SetDefault("engine.normalize_spec_premiums", def.NormalizeSpecPremiums)
	v.SetDefault("engine.band_sigma", def.BandSigma)
	v.SetDefault("engine.single_comp_spread_pct", def.SingleCompSpreadPct)
	v.SetDefault("engine.fallback_spread_pct", def.FallbackSpreadPct)
	v.SetDefault("engine.high_demand_count", def.HighDemandCount)
	v.SetDefault("engine.saleability.bias", def.Saleability.Bias)
	v.SetDefault("engine.saleability.mileage_weight", def.Saleability.MileageWeight)
	v.SetDefault("engine.saleability.age_weight", def.Saleability.AgeWeight)
	v.SetDefault("engine.saleability.equipment_weight", def.Saleability.EquipmentWeight)
	v.SetDefault("engine.saleability.demand_weight", def.Saleability.DemandWeight)
	v.SetDefault("engine.saleability.horizon_shift", def.Saleability.HorizonShift)
	v.SetDefault("engine.saleability.mileage_scale_km", def.Saleability.MileageScaleKm)
	v.SetDefault("engine.saleability.age_scale_years", def.Saleability.AgeScaleYears)
	v.SetDefault("engine.saleability.equipment_scale", def.Saleability.EquipmentScale)
	v.SetDefault("engine.saleability.demand_scale", def.Saleability.DemandScale)

	v.SetDefault("rules_cache.ttl", "5m")
	v.SetDefault("rules_cache.cleanup_interval", "10m")

	v.SetDefault("reprice.workers", 4)
	v.SetDefault("reprice.vehicle_timeout", "15s")
	v.SetDefault("reprice.persist", true)
	v.SetDefault("reprice.cron", "")
	v.SetDefault("reprice.interval", "1h")
	v.SetDefault("reprice.align_to_bucket", true)
	v.SetDefault("reprice.advisory_lock_key", int64(0x64707269))
	v.SetDefault("reprice.startup_delay", "0s")
	v.SetDefault("reprice.tenants", []string{})
	v.SetDefault("reprice.inventory_page_size", 200)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.threshold_pct", 10.0)
	v.SetDefault("alerting.cooldown", "24h")
	v.SetDefault("alerting.retention", "2160h")
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("http.listen_addr", ":8080")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.body_limit", 1<<20)

	v.SetDefault("export.max_comparables", 25)
	v.SetDefault("export.s3.bucket", "")
	v.SetDefault("export.s3.prefix", "exports/")
	v.SetDefault("export.s3.region", "eu-north-1")
	v.SetDefault("export.s3.endpoint", "")
	v.SetDefault("export.s3.use_path_style", false)
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
	switch c.Comparables.Source {
	case SourcePostgres:
	case SourceHTTP:
		if c.Comparables.BaseURL == "" {
			return fmt.Errorf("comparables.base_url is required for the http source")
		}
	default:
		return fmt.Errorf("comparables.source must be %q or %q, got %q", SourcePostgres, SourceHTTP, c.Comparables.Source)
	}
	if c.Comparables.YearPrefilter < 0 {
		return fmt.Errorf("comparables.year_prefilter cannot be negative")
	}
	if c.Comparables.MaxListings < 0 {
		return fmt.Errorf("comparables.max_listings cannot be negative")
	}
	if c.Comparables.RateLimitRPS < 0 {
		return fmt.Errorf("comparables.rate_limit_rps cannot be negative")
	}
	if c.Reprice.Workers <= 0 {
		return fmt.Errorf("reprice.workers must be greater than zero")
	}
	if c.Reprice.Cron == "" && c.Reprice.Interval <= 0 {
		return fmt.Errorf("reprice.interval must be greater than zero when reprice.cron is empty")
	}
	if c.Engine.MinSample < 0 || c.Engine.MaxSample < 0 {
		return fmt.Errorf("engine sample sizes cannot be negative")
	}
	if c.Engine.MaxSample > 0 && c.Engine.MaxSample < c.Engine.MinSample {
		return fmt.Errorf("engine.max_sample must be at least engine.min_sample")
	}
	if c.Alerting.ThresholdPct < 0 {
		return fmt.Errorf("alerting.threshold_pct cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	if c.Export.MaxComparables <= 0 {
		return fmt.Errorf("export.max_comparables must be greater than zero")
	}
	return nil
}

// ResolveMaxComparables returns either the CLI override or config default.
func (c *Config) ResolveMaxComparables(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxComparables
}
