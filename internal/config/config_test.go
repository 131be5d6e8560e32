package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"PORT", "ENV", "LOG_LEVEL", "DATA_SOURCE", "DATA_DIR", "SQLITE_PATH", "AREA_BREAKPOINTS", "CHOROPLETH_DOMAIN"} {
		t.Setenv(k, "")
	}
	// godotenv reads .env from the working directory.
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, errs := Load("")
	if len(errs) != 0 {
		t.Fatalf("Expected no errors, got %v", errs)
	}
	if cfg.Port != DefaultPort || cfg.Source != SourceJSON || cfg.DataDir != DefaultDataDir {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
	if !cfg.IsDevelopment() {
		t.Error("Default env should be development")
	}
	if !reflect.DeepEqual(cfg.AreaBreakpoints, DefaultAreaBreakpoints) {
		t.Errorf("Expected default breakpoints, got %v", cfg.AreaBreakpoints)
	}
}

func TestLoadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("DATA_SOURCE", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/farmviz.db")
	t.Setenv("AREA_BREAKPOINTS", "0, 500 ,5000")

	cfg, errs := Load("")
	if len(errs) != 0 {
		t.Fatalf("Expected no errors, got %v", errs)
	}
	if cfg.Port != 9090 || cfg.IsDevelopment() || cfg.LogLevel != "debug" {
		t.Errorf("Unexpected config %+v", cfg)
	}
	if want := []float64{5000, 500, 0}; !reflect.DeepEqual(cfg.AreaBreakpoints, want) {
		t.Errorf("Expected %v, got %v", want, cfg.AreaBreakpoints)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "port: 7000\ndata_dir: /srv/data\nchoropleth_domain: [50, 1, 10]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "7001")

	cfg, errs := Load(path)
	if len(errs) != 0 {
		t.Fatalf("Expected no errors, got %v", errs)
	}
	// Env wins over the file.
	if cfg.Port != 7001 {
		t.Errorf("Expected env port 7001, got %d", cfg.Port)
	}
	if cfg.DataDir != "/srv/data" {
		t.Errorf("Expected data dir from file, got %q", cfg.DataDir)
	}
	if want := []float64{1, 10, 50}; !reflect.DeepEqual(cfg.ChoroplethDomain, want) {
		t.Errorf("Expected %v, got %v", want, cfg.ChoroplethDomain)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	cfg, errs := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if cfg != nil || len(errs) != 1 {
		t.Errorf("Expected nil config and one error, got %+v %v", cfg, errs)
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "70000")
	t.Setenv("DATA_SOURCE", "sqlite")
	t.Setenv("AREA_BREAKPOINTS", "100,-1")

	_, errs := Load("")
	for _, want := range []error{ErrInvalidPort, ErrMissingSQLitePath, ErrNegativeBreakpoint, ErrBreakpointsNeedZero} {
		found := false
		for _, err := range errs {
			if errors.Is(err, want) {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected %v in %v", want, errs)
		}
	}

	c := &Config{Port: 80, Source: "csv", AreaBreakpoints: []float64{0}}
	errs = c.Validate()
	if len(errs) != 2 {
		t.Errorf("Expected unknown source and empty domain, got %v", errs)
	}
}

func TestBadNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")
	t.Setenv("CHOROPLETH_DOMAIN", "1,x")

	cfg, errs := Load("")
	if cfg.Port != DefaultPort {
		t.Errorf("Expected default port after a bad value, got %d", cfg.Port)
	}
	if len(errs) != 2 {
		t.Errorf("Expected 2 errors, got %v", errs)
	}
}
