package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/night-light/internal/contrast"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "OBJECTID", cfg.Input.IDProperty)
	assert.Equal(t, "ONEWAY", cfg.Input.OnewayProperty)
	assert.InDelta(t, 20.0, cfg.Pipeline.SearchRadiusM, 1e-9)
	assert.InDelta(t, 0.01, cfg.Pipeline.ContrastThreshold, 1e-9)
	assert.Equal(t, "FT", cfg.Pipeline.OnewayCode)
	assert.Equal(t, "distance", cfg.Pipeline.OnewayDirection)
	assert.Equal(t, 2, cfg.Pipeline.MinIntersections)
	assert.InDelta(t, 0.001, cfg.Pipeline.MinDistanceM, 1e-12)
	assert.False(t, cfg.Pipeline.AngleWeighted)
	assert.InDelta(t, 5.0, cfg.Pipeline.StrongMultiplier, 1e-9)
	assert.InDelta(t, 2.0, cfg.Pipeline.OneSidedMultiplier, 1e-9)
	assert.Equal(t, "output", cfg.Output.Dir)
	assert.Equal(t, []string{"csv", "parquet", "xlsx", "geojson"}, cfg.Output.Formats)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "night_light.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Equal(t, contrast.DefaultParams(), cfg.PipelineParams())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
input:
  crosswalks: data/crosswalks.geojson
  streets: data/streets.shp
  streetlights: data/lights.csv
  id_property: FID
pipeline:
  search_radius_m: 35
  angle_weighted: true
  oneway_direction: cross
output:
  formats: [csv, geojson]
store:
  driver: postgres
  database_url: postgres://localhost/night_light
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/streets.shp", cfg.InputPaths().Streets)
	assert.Equal(t, "FID", cfg.LoaderOptions().IDProperty)
	assert.Equal(t, "ONEWAY", cfg.LoaderOptions().OnewayProperty)
	assert.InDelta(t, 35.0, cfg.Pipeline.SearchRadiusM, 1e-9)
	assert.Equal(t, []string{"csv", "geojson"}, cfg.Output.Formats)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "console", cfg.Log.Format)

	p := cfg.PipelineParams()
	assert.True(t, p.AngleWeighted)
	assert.Equal(t, contrast.OnewayCross, p.OnewayDirection)
	// Defaults still apply for unset values
	assert.InDelta(t, 0.01, p.Threshold, 1e-9)

	assert.NoError(t, cfg.Validate(ModeRun))
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("NIGHTLIGHT_STORE_DRIVER", "postgres")
	t.Setenv("NIGHTLIGHT_LOG_LEVEL", "warn")
	t.Setenv("NIGHTLIGHT_PIPELINE_SEARCH_RADIUS_M", "12.5")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.InDelta(t, 12.5, cfg.Pipeline.SearchRadiusM, 1e-9)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("pipeline: [unterminated"), 0o644))

	_, err := Load()
	assert.ErrorContains(t, err, "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	def := contrast.DefaultParams()
	cfg := &Config{}
	cfg.Input.Crosswalks = "crosswalks.geojson"
	cfg.Input.Streets = "streets.geojson"
	cfg.Input.Streetlights = "streetlights.geojson"
	cfg.Pipeline = PipelineConfig{
		SearchRadiusM:      def.SearchRadiusM,
		ContrastThreshold:  def.Threshold,
		OnewayCode:         def.OnewayCode,
		OnewayDirection:    def.OnewayDirection,
		MinIntersections:   def.MinIntersections,
		MinDistanceM:       def.MinDistanceM,
		StrongMultiplier:   def.StrongMultiplier,
		OneSidedMultiplier: def.OneSidedMultiplier,
	}
	cfg.Output.Formats = []string{"csv"}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "night_light.db"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		mutate  func(*Config)
		wantErr []string
	}{
		{name: "run ok", mode: ModeRun, mutate: func(*Config) {}},
		{name: "serve ok", mode: ModeServe, mutate: func(*Config) {}},
		{name: "status ignores inputs", mode: ModeStatus, mutate: func(c *Config) { c.Input = InputConfig{} }},
		{
			name:    "missing inputs",
			mode:    ModeRun,
			mutate:  func(c *Config) { c.Input.Streets, c.Input.Streetlights = "", " " },
			wantErr: []string{"input.streets is required", "input.streetlights is required"},
		},
		{
			name:    "negative radius",
			mode:    ModeRun,
			mutate:  func(c *Config) { c.Pipeline.SearchRadiusM = -1 },
			wantErr: []string{"search radius must be positive"},
		},
		{
			name:    "negative threshold",
			mode:    ModeRun,
			mutate:  func(c *Config) { c.Pipeline.ContrastThreshold = -0.1 },
			wantErr: []string{"contrast threshold must not be negative"},
		},
		{
			name: "multiplier below one",
			mode: ModeRun,
			mutate: func(c *Config) {
				c.Pipeline.AngleWeighted = true
				c.Pipeline.StrongMultiplier = 0.5
			},
			wantErr: []string{"multipliers must be at least 1"},
		},
		{
			name:    "unknown policy",
			mode:    ModeRun,
			mutate:  func(c *Config) { c.Pipeline.OnewayDirection = "heading" },
			wantErr: []string{`unknown one-way direction policy "heading"`},
		},
		{
			name:    "unknown format",
			mode:    ModeRun,
			mutate:  func(c *Config) { c.Output.Formats = []string{"kml"} },
			wantErr: []string{"output.formats", `"kml"`},
		},
		{
			name:    "unknown driver",
			mode:    ModeMigrate,
			mutate:  func(c *Config) { c.Store.Driver = "mysql" },
			wantErr: []string{`unknown store.driver "mysql"`},
		},
		{
			name:    "missing database url",
			mode:    ModeCompare,
			mutate:  func(c *Config) { c.Store.DatabaseURL = "" },
			wantErr: []string{"store.database_url is required"},
		},
		{
			name:    "invalid port",
			mode:    ModeServe,
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: []string{"server.port must be > 0"},
		},
		{
			name:    "unknown mode",
			mode:    "deploy",
			mutate:  func(*Config) {},
			wantErr: []string{"unknown mode"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)

			err := cfg.Validate(tt.mode)
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}
