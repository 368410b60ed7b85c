// Package config loads night-light settings from config.yaml and
// NIGHTLIGHT_* environment variables.
package config

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/night-light/internal/contrast"
	"github.com/sells-group/night-light/internal/export"
	"github.com/sells-group/night-light/internal/loader"
	"github.com/sells-group/night-light/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Input    InputConfig    `yaml:"input" mapstructure:"input"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// InputConfig locates the three source datasets.
type InputConfig struct {
	Crosswalks     string `yaml:"crosswalks" mapstructure:"crosswalks"`
	Streets        string `yaml:"streets" mapstructure:"streets"`
	Streetlights   string `yaml:"streetlights" mapstructure:"streetlights"`
	IDProperty     string `yaml:"id_property" mapstructure:"id_property"`
	OnewayProperty string `yaml:"oneway_property" mapstructure:"oneway_property"`
}

// PipelineConfig tunes the contrast stages.
type PipelineConfig struct {
	SearchRadiusM      float64 `yaml:"search_radius_m" mapstructure:"search_radius_m"`
	ContrastThreshold  float64 `yaml:"contrast_threshold" mapstructure:"contrast_threshold"`
	OnewayCode         string  `yaml:"oneway_code" mapstructure:"oneway_code"`
	OnewayDirection    string  `yaml:"oneway_direction" mapstructure:"oneway_direction"`
	MinIntersections   int     `yaml:"min_intersections" mapstructure:"min_intersections"`
	MinDistanceM       float64 `yaml:"min_distance_m" mapstructure:"min_distance_m"`
	AngleWeighted      bool    `yaml:"angle_weighted" mapstructure:"angle_weighted"`
	StrongMultiplier   float64 `yaml:"strong_multiplier" mapstructure:"strong_multiplier"`
	OneSidedMultiplier float64 `yaml:"one_sided_multiplier" mapstructure:"one_sided_multiplier"`
}

// OutputConfig configures file exports.
type OutputConfig struct {
	Dir     string   `yaml:"dir" mapstructure:"dir"`
	Formats []string `yaml:"formats" mapstructure:"formats"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the read API.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins  []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	CacheEntries    int      `yaml:"cache_entries" mapstructure:"cache_entries"`
	CacheTTLSeconds int      `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
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
	v.SetEnvPrefix("NIGHTLIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	def := contrast.DefaultParams()
	opts := loader.DefaultOptions()
	v.SetDefault("input.crosswalks", "")
	v.SetDefault("input.streets", "")
	v.SetDefault("input.streetlights", "")
	v.SetDefault("input.id_property", opts.IDProperty)
	v.SetDefault("input.oneway_property", opts.OnewayProperty)
	v.SetDefault("pipeline.search_radius_m", def.SearchRadiusM)
	v.SetDefault("pipeline.contrast_threshold", def.Threshold)
	v.SetDefault("pipeline.oneway_code", def.OnewayCode)
	v.SetDefault("pipeline.oneway_direction", def.OnewayDirection)
	v.SetDefault("pipeline.min_intersections", def.MinIntersections)
	v.SetDefault("pipeline.min_distance_m", def.MinDistanceM)
	v.SetDefault("pipeline.angle_weighted", def.AngleWeighted)
	v.SetDefault("pipeline.strong_multiplier", def.StrongMultiplier)
	v.SetDefault("pipeline.one_sided_multiplier", def.OneSidedMultiplier)
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.formats", export.Formats)
	v.SetDefault("store.driver", store.DriverSQLite)
	v.SetDefault("store.database_url", "night_light.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.cache_entries", 256)
	v.SetDefault("server.cache_ttl_secs", 0)
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

	return &cfg, nil
}

// PipelineParams converts the pipeline section to stage parameters.
func (c *Config) PipelineParams() contrast.Params {
	p := c.Pipeline
	return contrast.Params{
		SearchRadiusM:      p.SearchRadiusM,
		Threshold:          p.ContrastThreshold,
		OnewayCode:         p.OnewayCode,
		OnewayDirection:    strings.ToLower(p.OnewayDirection),
		MinIntersections:   p.MinIntersections,
		MinDistanceM:       p.MinDistanceM,
		AngleWeighted:      p.AngleWeighted,
		StrongMultiplier:   p.StrongMultiplier,
		OneSidedMultiplier: p.OneSidedMultiplier,
	}
}

// LoaderOptions returns the property names used to read input features.
func (c *Config) LoaderOptions() loader.Options {
	return loader.Options{IDProperty: c.Input.IDProperty, OnewayProperty: c.Input.OnewayProperty}
}

// InputPaths returns the configured dataset paths.
func (c *Config) InputPaths() loader.Paths {
	return loader.Paths{
		Crosswalks:   c.Input.Crosswalks,
		Streets:      c.Input.Streets,
		Streetlights: c.Input.Streetlights,
	}
}

// Modes accepted by Validate, one per command.
const (
	ModeRun     = "run"
	ModeServe   = "serve"
	ModeCompare = "compare"
	ModeStatus  = "status"
	ModeMigrate = "migrate"
)

// Validate checks the settings the given command depends on and reports
// every problem at once.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch strings.ToLower(c.Store.Driver) {
	case store.DriverSQLite, store.DriverPostgres, "postgresql":
	default:
		errs = append(errs, "unknown store.driver "+strconv.Quote(c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case ModeRun:
		for _, in := range []struct{ key, path string }{
			{"input.crosswalks", c.Input.Crosswalks},
			{"input.streets", c.Input.Streets},
			{"input.streetlights", c.Input.Streetlights},
		} {
			if strings.TrimSpace(in.path) == "" {
				errs = append(errs, in.key+" is required")
			}
		}
		if err := c.PipelineParams().Validate(); err != nil {
			errs = append(errs, strings.TrimPrefix(err.Error(), "contrast: "))
		}
		if _, err := export.ParseFormats(c.Output.Formats); err != nil {
			errs = append(errs, "output.formats: "+strings.TrimPrefix(err.Error(), "export: "))
		}
	case ModeServe:
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.CacheEntries < 0 {
			errs = append(errs, "server.cache_entries must be >= 0")
		}
	case ModeCompare, ModeStatus, ModeMigrate:
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
