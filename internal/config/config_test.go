package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/piwi3910/CutYield/internal/model"
)

// isolate points the home directory at a temp dir and clears CUTYIELD_*
// variables so the user's real configuration never leaks into a test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"SHEET_WIDTH", "SHEET_HEIGHT", "KERF", "MIN_OFFCUT", "RATE_LIMIT_RPS",
		"RATE_LIMIT_BURST", "REQUEST_LOGGING", "LOG_LEVEL", "PORT", "HISTORY_DB",
	} {
		t.Setenv(envPrefix+key, "")
	}
	return home
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.SheetWidth != 3500 || cfg.SheetHeight != 2500 {
		t.Fatalf("unexpected default sheet %vx%v", cfg.SheetWidth, cfg.SheetHeight)
	}
	if cfg.Kerf != model.DefaultKerf {
		t.Fatalf("expected default kerf %v, got %v", model.DefaultKerf, cfg.Kerf)
	}
	if cfg.Port != defaultPort {
		t.Fatalf("expected default port %s, got %s", defaultPort, cfg.Port)
	}
	if cfg.ShutdownGracePeriod != 10*time.Second {
		t.Fatalf("unexpected shutdown grace period: %s", cfg.ShutdownGracePeriod)
	}
	if !cfg.EnableRequestLogging {
		t.Fatal("expected request logging on by default")
	}
	if want := filepath.Join(home, ".cutyield", "history.db"); cfg.HistoryDB != want {
		t.Fatalf("expected history db %s, got %s", want, cfg.HistoryDB)
	}
	if !cfg.HistoryEnabled() {
		t.Fatal("expected history enabled by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("CUTYIELD_SHEET_WIDTH", "2440")
	t.Setenv("CUTYIELD_KERF", " 3.2 ")
	t.Setenv("CUTYIELD_REQUEST_LOGGING", "false")
	t.Setenv("CUTYIELD_HISTORY_DB", HistoryDisabled)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.SheetWidth != 2440 || cfg.SheetHeight != 2500 {
		t.Fatalf("unexpected sheet %vx%v", cfg.SheetWidth, cfg.SheetHeight)
	}
	if cfg.Kerf != 3.2 {
		t.Fatalf("expected kerf 3.2, got %v", cfg.Kerf)
	}
	if cfg.EnableRequestLogging {
		t.Fatal("expected request logging off")
	}
	if cfg.HistoryEnabled() {
		t.Fatal("expected history disabled")
	}
}

func TestLoadInvalidEnv(t *testing.T) {
	isolate(t)
	t.Setenv("CUTYIELD_KERF", "thin")

	if _, err := Load(nil); err == nil {
		t.Fatal("expected error for invalid kerf")
	}
}

func TestLoadPrecedence(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "cutyield.yaml")
	writeConfig(t, path, `
sheet:
  width: 3000
  height: 2000
kerf: 0
log_level: debug
server:
  port: "9090"
  write_timeout: 45s
  enable_request_logging: false
  rate_limit:
    rps: 0
    burst: 5
`)
	t.Setenv("CUTYIELD_SHEET_WIDTH", "2440")
	t.Setenv("CUTYIELD_PORT", "7000")

	height := 1220.0
	port := "9999"
	cfg, err := Load(&CLIOverrides{ConfigFile: path, SheetHeight: &height, Port: &port})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	// YAML beats the environment.
	if cfg.SheetWidth != 3000 {
		t.Errorf("expected YAML width 3000, got %v", cfg.SheetWidth)
	}
	// CLI beats YAML.
	if cfg.SheetHeight != 1220 {
		t.Errorf("expected CLI height 1220, got %v", cfg.SheetHeight)
	}
	if cfg.Port != "9999" {
		t.Errorf("expected CLI port, got %s", cfg.Port)
	}
	// Explicit zeros in YAML are kept.
	if cfg.Kerf != 0 {
		t.Errorf("expected kerf 0, got %v", cfg.Kerf)
	}
	if cfg.RateLimitRPS != 0 || cfg.RateLimitBurst != 5 {
		t.Errorf("unexpected rate limit %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.EnableRequestLogging {
		t.Error("expected request logging off")
	}
	if cfg.WriteTimeout != 45*time.Second {
		t.Errorf("expected write timeout 45s, got %s", cfg.WriteTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected debug level, got %s", cfg.LogLevel)
	}
	// Untouched fields keep their defaults.
	if cfg.IdleTimeout != 60*time.Second {
		t.Errorf("expected default idle timeout, got %s", cfg.IdleTimeout)
	}
}

func TestLoadDefaultFile(t *testing.T) {
	home := isolate(t)
	writeConfig(t, filepath.Join(home, ".cutyield", "config.yaml"), "kerf: 2.5\n")

	cfg, err := Load(&CLIOverrides{})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Kerf != 2.5 {
		t.Fatalf("expected kerf from default file, got %v", cfg.Kerf)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)

	_, err := Load(&CLIOverrides{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	if err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

func TestLoadBadYAML(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")

	writeConfig(t, path, "sheet: [1, 2\n")
	if _, err := Load(&CLIOverrides{ConfigFile: path}); err == nil {
		t.Fatal("expected parse error")
	}

	writeConfig(t, path, "server:\n  idle_timeout: soon\n")
	if _, err := Load(&CLIOverrides{ConfigFile: path}); err == nil {
		t.Fatal("expected duration error")
	}
}

func TestValidateConfig(t *testing.T) {
	t.Run("non-positive sheet", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.SheetHeight = 0
		if err := validateConfig(cfg); !errors.Is(err, model.ErrInvalidSheet) {
			t.Fatalf("expected ErrInvalidSheet, got %v", err)
		}
	})

	t.Run("negative kerf", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Kerf = -1
		if err := validateConfig(cfg); !errors.Is(err, model.ErrInvalidKerf) {
			t.Fatalf("expected ErrInvalidKerf, got %v", err)
		}
	})

	t.Run("negative rate limit", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.RateLimitBurst = -1
		if err := validateConfig(cfg); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.LogLevel = "loud"
		if err := validateConfig(cfg); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestConfigHelpers(t *testing.T) {
	cfg := defaultConfig()
	cfg.Kerf = 3

	if s := cfg.Sheet(); s.Width != cfg.SheetWidth || s.Height != cfg.SheetHeight {
		t.Errorf("unexpected sheet %+v", s)
	}
	if cfg.Settings().Kerf != 3 {
		t.Errorf("unexpected settings %+v", cfg.Settings())
	}
}
