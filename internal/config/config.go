package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/propscope/propscope/internal/db"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	OneMap  OneMapConfig  `yaml:"onemap" mapstructure:"onemap"`
	Search  SearchConfig  `yaml:"search" mapstructure:"search"`
	Router  RouterConfig  `yaml:"router" mapstructure:"router"`
	Transit TransitConfig `yaml:"transit" mapstructure:"transit"`
	Zones   ZonesConfig   `yaml:"zones" mapstructure:"zones"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the relational read path.
type StoreConfig struct {
	DatabaseURL string        `yaml:"database_url" mapstructure:"database_url"`
	Pool        db.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// OneMapConfig holds OneMap API credentials and client settings.
type OneMapConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Email       string  `yaml:"email" mapstructure:"email"`
	Password    string  `yaml:"password" mapstructure:"password"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SearchConfig bounds radius search inputs.
type SearchConfig struct {
	DefaultRadius float64 `yaml:"default_radius" mapstructure:"default_radius"`
	MaxRadius     float64 `yaml:"max_radius" mapstructure:"max_radius"`
	MaxLimit      int     `yaml:"max_limit" mapstructure:"max_limit"`
	MaxCenters    int     `yaml:"max_centers" mapstructure:"max_centers"`
}

// RouterConfig holds the batch-router tunables that were previously
// hard-coded literals in the routing flow.
type RouterConfig struct {
	BatchSize    int           `yaml:"batch_size" mapstructure:"batch_size"`
	BaseDelay    time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	MaxRetries   int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff" mapstructure:"retry_backoff"`
	MaxDests     int           `yaml:"max_dests" mapstructure:"max_dests"`
}

// TransitConfig configures the station reference data source.
type TransitConfig struct {
	// Source is "store" (relational table) or "shapefile".
	Source        string `yaml:"source" mapstructure:"source"`
	ShapefilePath string `yaml:"shapefile_path" mapstructure:"shapefile_path"`
	// StationTTLHours controls how long the station set is cached.
	StationTTLHours int `yaml:"station_ttl_hours" mapstructure:"station_ttl_hours"`
}

// ZonesConfig configures the planning-zone dataset.
type ZonesConfig struct {
	DatasetPath string `yaml:"dataset_path" mapstructure:"dataset_path"`
}

// CacheConfig configures the query-signature result cache.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROPSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to empty so AutomaticEnv can populate
	// them without a config file.
	v.SetDefault("store.database_url", "")
	v.SetDefault("onemap.email", "")
	v.SetDefault("onemap.password", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("onemap.base_url", "https://www.onemap.gov.sg")
	v.SetDefault("onemap.rate_limit", 4.0)
	v.SetDefault("onemap.timeout_secs", 30)
	v.SetDefault("search.default_radius", 1000)
	v.SetDefault("search.max_radius", 5000)
	v.SetDefault("search.max_limit", 100)
	v.SetDefault("search.max_centers", 20)
	v.SetDefault("router.batch_size", 3)
	v.SetDefault("router.base_delay", "2s")
	v.SetDefault("router.max_delay", "10s")
	v.SetDefault("router.max_retries", 2)
	v.SetDefault("router.retry_backoff", "1s")
	v.SetDefault("router.max_dests", 40)
	v.SetDefault("transit.source", "store")
	v.SetDefault("transit.shapefile_path", "data/TrainStation.shp")
	v.SetDefault("transit.station_ttl_hours", 168)
	v.SetDefault("zones.dataset_path", "data/MasterPlanLandUse.geojson")
	v.SetDefault("cache.max_entries", 512)
	v.SetDefault("cache.ttl_minutes", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
