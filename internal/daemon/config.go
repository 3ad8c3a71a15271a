// Package daemon manages the Kola server lifecycle and configuration.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"

	"github.com/volo-kola/kola/internal/app/progress"
)

// Config holds all server configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Database  DatabaseConfig  `toml:"database"`
	Hearts    HeartsConfig    `toml:"hearts"`
	Calendar  CalendarConfig  `toml:"calendar"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	RequestTimeout string `toml:"request_timeout"`
}

// DatabaseConfig selects and tunes the learner store.
type DatabaseConfig struct {
	Driver          string `toml:"driver"` // sqlite or postgres
	Path            string `toml:"path"`   // sqlite data directory
	DSN             string `toml:"dsn"`    // postgres connection string
	MaxConns        int    `toml:"max_conns"`
	MinConns        int    `toml:"min_conns"`
	MaxConnLifetime string `toml:"max_conn_lifetime"`
}

// HeartsConfig sets the heart pool.
type HeartsConfig struct {
	Max           int    `toml:"max"`
	RegenInterval string `toml:"regen_interval"`
}

// CalendarConfig fixes the timezone day boundaries are computed in.
type CalendarConfig struct {
	Timezone string `toml:"timezone"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// TelemetryConfig controls metrics and health probing.
type TelemetryConfig struct {
	Prometheus     bool   `toml:"prometheus"`
	HealthInterval string `toml:"health_interval"`
}

// Driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			RequestTimeout: "30s",
		},
		Database: DatabaseConfig{
			Driver:          DriverSQLite,
			Path:            kolaHome(),
			MaxConns:        10,
			MaxConnLifetime: "1h",
		},
		Hearts: HeartsConfig{
			Max:           5,
			RegenInterval: "4h",
		},
		Calendar: CalendarConfig{
			Timezone: "Africa/Monrovia",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Prometheus:     true,
			HealthInterval: "30s",
		},
	}
}

// ConfigPath is where LoadConfig and SaveConfig look.
func ConfigPath() string {
	return filepath.Join(kolaHome(), "config.toml")
}

// LoadConfig reads $KOLA_HOME/config.toml, falling back to defaults.
// KOLA_DATABASE_DSN overrides database.dsn so secrets stay out of the file.
func LoadConfig() (Config, error) {
	cfg, err := LoadConfigFile(ConfigPath())
	if err != nil {
		return cfg, err
	}
	if dsn := os.Getenv("KOLA_DATABASE_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	return cfg, cfg.Validate()
}

// LoadConfigFile decodes path over the defaults. A missing file is not an
// error.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, fmt.Errorf("parse config: unknown keys %s", strings.Join(keys, ", "))
	}
	return cfg, nil
}

// SaveConfig writes the config to $KOLA_HOME/config.toml.
func SaveConfig(cfg Config) error {
	return SaveConfigFile(ConfigPath(), cfg)
}

// SaveConfigFile writes cfg to path, creating parent directories.
func SaveConfigFile(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d out of range", c.API.Port))
	}
	if _, err := positiveDuration("api.request_timeout", c.API.RequestTimeout); err != nil {
		errs = append(errs, err)
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for postgres"))
		}
		if c.Database.MinConns > c.Database.MaxConns && c.Database.MaxConns > 0 {
			errs = append(errs, fmt.Errorf("database.min_conns %d exceeds max_conns %d", c.Database.MinConns, c.Database.MaxConns))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q: want sqlite or postgres", c.Database.Driver))
	}
	if c.Database.MaxConnLifetime != "" {
		if _, err := positiveDuration("database.max_conn_lifetime", c.Database.MaxConnLifetime); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Hearts.Max < 1 {
		errs = append(errs, fmt.Errorf("hearts.max must be at least 1, got %d", c.Hearts.Max))
	}
	if _, err := positiveDuration("hearts.regen_interval", c.Hearts.RegenInterval); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q: want debug, info, warn or error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q: want json or console", c.Logging.Format))
	}
	if _, err := positiveDuration("telemetry.health_interval", c.Telemetry.HealthInterval); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Location loads the calendar timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Calendar.Timezone)
	if err != nil {
		return nil, fmt.Errorf("calendar.timezone %q: %w", c.Calendar.Timezone, err)
	}
	return loc, nil
}

// Rules converts the hearts and calendar sections for the progress service.
func (c Config) Rules() (progress.Rules, error) {
	regen, err := positiveDuration("hearts.regen_interval", c.Hearts.RegenInterval)
	if err != nil {
		return progress.Rules{}, err
	}
	loc, err := c.Location()
	if err != nil {
		return progress.Rules{}, err
	}
	return progress.Rules{MaxHearts: c.Hearts.Max, RegenInterval: regen, Location: loc}, nil
}

func positiveDuration(key, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, s)
	}
	return d, nil
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// kolaHome returns the Kola data directory.
func kolaHome() string {
	if env := os.Getenv("KOLA_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".kola")
}
