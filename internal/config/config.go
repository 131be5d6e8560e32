// Package config loads server configuration. Values come from built-in
// defaults, an optional YAML file, an optional .env file and the process
// environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Data sources.
const (
	SourceJSON   = "json"
	SourceSQLite = "sqlite"
)

type Config struct {
	Port     int    `koanf:"port"`
	Env      string `koanf:"env"`
	LogLevel string `koanf:"log_level"`

	Source     string `koanf:"source"`
	DataDir    string `koanf:"data_dir"`
	SQLitePath string `koanf:"sqlite_path"`

	AreaBreakpoints  []float64 `koanf:"area_breakpoints"`
	ChoroplethDomain []float64 `koanf:"choropleth_domain"`
}

var (
	ErrInvalidPort          = errors.New("PORT must be between 1 and 65535")
	ErrUnknownSource        = errors.New("DATA_SOURCE must be json or sqlite")
	ErrMissingSQLitePath    = errors.New("SQLITE_PATH is required when DATA_SOURCE=sqlite")
	ErrBreakpointsNeedZero  = errors.New("AREA_BREAKPOINTS must include 0")
	ErrNegativeBreakpoint   = errors.New("AREA_BREAKPOINTS must not be negative")
	ErrEmptyChoroplethScale = errors.New("CHOROPLETH_DOMAIN must not be empty")
)

const (
	DefaultPort     = 8080
	DefaultEnv      = "development"
	DefaultLogLevel = "info"
	DefaultSource   = SourceJSON
	DefaultDataDir  = "data"
)

var (
	DefaultAreaBreakpoints  = []float64{100000, 10000, 0}
	DefaultChoroplethDomain = []float64{1, 5, 10, 50, 100}
)

// Load reads configuration. A missing .env file is not an error; an
// unreadable config file is. The second result lists every validation
// problem found.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var errs []error

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}
	// godotenv never overrides variables that are already set.
	_ = godotenv.Load()

	port, err := envInt("PORT", k.Int("port"), DefaultPort)
	if err != nil {
		errs = append(errs, err)
	}
	breakpoints, err := envFloats("AREA_BREAKPOINTS", k.Float64s("area_breakpoints"), DefaultAreaBreakpoints)
	if err != nil {
		errs = append(errs, err)
	}
	domain, err := envFloats("CHOROPLETH_DOMAIN", k.Float64s("choropleth_domain"), DefaultChoroplethDomain)
	if err != nil {
		errs = append(errs, err)
	}

	cfg := &Config{
		Port:             port,
		Env:              envString("ENV", k.String("env"), DefaultEnv),
		LogLevel:         strings.ToLower(envString("LOG_LEVEL", k.String("log_level"), DefaultLogLevel)),
		Source:           strings.ToLower(envString("DATA_SOURCE", k.String("source"), DefaultSource)),
		DataDir:          envString("DATA_DIR", k.String("data_dir"), DefaultDataDir),
		SQLitePath:       envString("SQLITE_PATH", k.String("sqlite_path"), ""),
		AreaBreakpoints:  breakpoints,
		ChoroplethDomain: domain,
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(cfg.AreaBreakpoints)))
	sort.Float64s(cfg.ChoroplethDomain)

	return cfg, append(errs, cfg.Validate()...)
}

// Validate returns every problem with c.
func (c *Config) Validate() []error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}
	switch c.Source {
	case SourceJSON:
	case SourceSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, ErrMissingSQLitePath)
		}
	default:
		errs = append(errs, ErrUnknownSource)
	}
	hasZero := false
	for _, b := range c.AreaBreakpoints {
		if b < 0 {
			errs = append(errs, ErrNegativeBreakpoint)
			break
		}
		if b == 0 {
			hasZero = true
		}
	}
	if !hasZero {
		errs = append(errs, ErrBreakpointsNeedZero)
	}
	if len(c.ChoroplethDomain) == 0 {
		errs = append(errs, ErrEmptyChoroplethScale)
	}
	return errs
}

func (c *Config) IsDevelopment() bool { return c.Env == DefaultEnv }

func envString(key, fileVal, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if fileVal != "" {
		return fileVal
	}
	return def
}

func envInt(key string, fileVal, def int) (int, error) {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return def, fmt.Errorf("%w: %q", ErrInvalidPort, v)
		}
		return n, nil
	}
	if fileVal != 0 {
		return fileVal, nil
	}
	return def, nil
}

// envFloats parses a comma-separated list.
func envFloats(key string, fileVal, def []float64) ([]float64, error) {
	v := os.Getenv(key)
	if v == "" {
		if len(fileVal) > 0 {
			return append([]float64(nil), fileVal...), nil
		}
		return append([]float64(nil), def...), nil
	}
	var out []float64
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return append([]float64(nil), def...), fmt.Errorf("%s: invalid number %q", key, part)
		}
		out = append(out, f)
	}
	return out, nil
}
