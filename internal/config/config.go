package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/stopsearch-cli/internal/db"
	"github.com/sells-group/stopsearch-cli/internal/isochrone"
	"github.com/sells-group/stopsearch-cli/internal/police"
	"github.com/sells-group/stopsearch-cli/internal/spatial"
)

// Config holds the full application configuration.
type Config struct {
	Police     PoliceConfig         `yaml:"police" mapstructure:"police"`
	Isochrone  IsochroneConfig      `yaml:"isochrone" mapstructure:"isochrone"`
	Boundary   BoundaryConfig       `yaml:"boundary" mapstructure:"boundary"`
	Fetch      FetchConfig          `yaml:"fetch" mapstructure:"fetch"`
	Export     ExportConfig         `yaml:"export" mapstructure:"export"`
	Census     CensusConfig         `yaml:"census" mapstructure:"census"`
	Subsets    []spatial.SubsetSpec `yaml:"subsets" mapstructure:"subsets"`
	Server     ServerConfig         `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig     `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig            `yaml:"log" mapstructure:"log"`
}

// PoliceConfig configures the records-by-polygon API.
type PoliceConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// ValidatePolygon rejects malformed boundaries before any request.
	ValidatePolygon bool `yaml:"validate_polygon" mapstructure:"validate_polygon"`
}

// IsochroneConfig configures the isochrone API and the default origin.
type IsochroneConfig struct {
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	Token   string  `yaml:"token" mapstructure:"token"`
	Profile string  `yaml:"profile" mapstructure:"profile"`
	Lng     float64 `yaml:"lng" mapstructure:"lng"`
	Lat     float64 `yaml:"lat" mapstructure:"lat"`
	Minutes []int   `yaml:"minutes" mapstructure:"minutes"`
}

// BoundaryConfig is the query polygon.
type BoundaryConfig struct {
	Polygon []police.LatLng `yaml:"polygon" mapstructure:"polygon"`
}

// FetchConfig controls concurrency, timeouts, retries and rate limits.
type FetchConfig struct {
	Concurrency      int     `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries       int     `yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	RatePerSec       float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst            int     `yaml:"burst" mapstructure:"burst"`
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// ExportConfig configures the output sinks.
type ExportConfig struct {
	Dir           string        `yaml:"dir" mapstructure:"dir"`
	Formats       []string      `yaml:"formats" mapstructure:"formats"`
	PostGISURL    string        `yaml:"postgis_url" mapstructure:"postgis_url"`
	PostGISSchema string        `yaml:"postgis_schema" mapstructure:"postgis_schema"`
	Pool          db.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// CensusConfig points at the population table used for rates.
type CensusConfig struct {
	Path           string `yaml:"path" mapstructure:"path"`
	ReferenceGroup string `yaml:"reference_group" mapstructure:"reference_group"`
}

// ServerConfig configures the layer server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig sets the thresholds checked after each fetch.
type MonitoringConfig struct {
	WebhookURL        string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	MaxFailedMonths   int     `yaml:"max_failed_months" mapstructure:"max_failed_months"`
	SkipRateThreshold float64 `yaml:"skip_rate_threshold" mapstructure:"skip_rate_threshold"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultPolygon is a boundary around Liverpool city centre.
func DefaultPolygon() police.Polygon {
	return police.Polygon{
		{Lat: 53.4207, Lng: -3.0021},
		{Lat: 53.4207, Lng: -2.9602},
		{Lat: 53.3955, Lng: -2.9602},
		{Lat: 53.3955, Lng: -3.0021},
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STOPSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("police.base_url", police.DefaultBaseURL)
	v.SetDefault("police.validate_polygon", false)
	v.SetDefault("isochrone.base_url", isochrone.DefaultBaseURL)
	v.SetDefault("isochrone.token", "")
	v.SetDefault("isochrone.profile", "walking")
	v.SetDefault("isochrone.lng", -2.9916)
	v.SetDefault("isochrone.lat", 53.4084)
	v.SetDefault("isochrone.minutes", []int{5, 10})
	v.SetDefault("fetch.concurrency", 4)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.initial_backoff_ms", 500)
	v.SetDefault("fetch.rate_per_sec", 15)
	v.SetDefault("fetch.burst", 15)
	v.SetDefault("fetch.user_agent", "stopsearch-cli/1.0")
	v.SetDefault("export.dir", "out")
	v.SetDefault("export.formats", []string{"geojson"})
	v.SetDefault("export.postgis_url", "")
	v.SetDefault("export.postgis_schema", "stopsearch")
	v.SetDefault("census.path", "")
	v.SetDefault("census.reference_group", "white")
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.max_failed_months", 0)
	v.SetDefault("monitoring.skip_rate_threshold", 0.05)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	if len(cfg.Boundary.Polygon) == 0 {
		cfg.Boundary.Polygon = DefaultPolygon()
	}
	if len(cfg.Subsets) == 0 {
		cfg.Subsets = spatial.DefaultSubsets()
	}
	return &cfg, nil
}

// Polygon returns the configured boundary.
func (c *Config) Polygon() police.Polygon {
	return police.Polygon(c.Boundary.Polygon)
}

// Validate checks the values required by a command mode: "fetch",
// "isochrone", "stats", "serve" or "postgis". All problems are reported at
// once.
func (c *Config) Validate(mode string) error {
	var errs []string
	switch mode {
	case "fetch":
		if c.Police.BaseURL == "" {
			errs = append(errs, "police.base_url is required")
		}
		if len(c.Boundary.Polygon) == 0 {
			errs = append(errs, "boundary.polygon is required")
		} else if c.Police.ValidatePolygon {
			if err := c.Polygon().Validate(); err != nil {
				errs = append(errs, "boundary.polygon: "+err.Error())
			}
		}
		if c.Fetch.Concurrency < 1 || c.Fetch.Concurrency > 12 {
			errs = append(errs, "fetch.concurrency must be between 1 and 12")
		}
		if c.Fetch.TimeoutSecs < 0 {
			errs = append(errs, "fetch.timeout_secs must be >= 0")
		}
		if c.Export.Dir == "" {
			errs = append(errs, "export.dir is required")
		}
	case "isochrone":
		if c.Isochrone.Token == "" {
			errs = append(errs, "isochrone.token is required (STOPSEARCH_ISOCHRONE_TOKEN)")
		}
		if len(c.Isochrone.Minutes) == 0 {
			errs = append(errs, "isochrone.minutes is required")
		}
	case "stats":
		if c.Census.Path == "" {
			errs = append(errs, "census.path is required")
		}
		if c.Census.ReferenceGroup == "" {
			errs = append(errs, "census.reference_group is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "postgis":
		if c.Export.PostGISURL == "" {
			errs = append(errs, "export.postgis_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
