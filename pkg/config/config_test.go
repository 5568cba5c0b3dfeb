package config

import (
	"os"
	"path/filepath"
	"testing"

	"revenue-forecast/pkg/models"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "forecast.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Table != "sales" || cfg.Addr != ":8080" {
		t.Fatalf("got table=%q addr=%q", cfg.Table, cfg.Addr)
	}
	if cfg.Forecast.KPIs != models.DefaultKPIs() || cfg.Forecast.Horizon != models.DefaultHorizon {
		t.Fatalf("unexpected forecast defaults: %+v", cfg.Forecast)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
database:
  dsn: mysql://u:p@db:3306/sales
  table: verkopen
redis:
  url: redis://cache:6379/0
seasonality:
  storage_preset: true
forecast:
  mode: trend
  kpis:
    churn: 2.5
  customers:
    mode: absolute
    new_customers_per_month: 4
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseDSN != "mysql://u:p@db:3306/sales" || cfg.Table != "verkopen" {
		t.Fatalf("database section: got %q %q", cfg.DatabaseDSN, cfg.Table)
	}
	if cfg.RedisURL != "redis://cache:6379/0" || cfg.RedisPrefix != "forecast:snapshots" {
		t.Fatalf("redis section: got %q %q", cfg.RedisURL, cfg.RedisPrefix)
	}
	if !cfg.StoragePreset {
		t.Fatal("storage preset should be enabled")
	}
	f := cfg.Forecast
	if f.Mode != models.ModeTrend || f.KPIs.Churn != 2.5 {
		t.Fatalf("got mode=%q churn=%v", f.Mode, f.KPIs.Churn)
	}
	// les champs non renseignés gardent les défauts
	if f.KPIs.NewBiz != 5 || f.Customers.OnboardingCurve != 1 || f.Horizon != models.DefaultHorizon {
		t.Fatalf("defaults lost: %+v", f)
	}
	if f.Customers.Mode != models.CustomersAbsolute || f.Customers.NewCustomersPerMonth != 4 {
		t.Fatalf("customers: %+v", f.Customers)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FORECAST_DSN", "postgres://u:p@pg/sales")
	t.Setenv("FORECAST_HORIZON", "36")
	t.Setenv("FORECAST_ADDR", ":9999")
	cfg, err := Load(writeFile(t, "database:\n  dsn: mysql://ignored@db/x\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DatabaseDSN != "postgres://u:p@pg/sales" || cfg.Forecast.Horizon != 36 || cfg.Addr != ":9999" {
		t.Fatalf("got dsn=%q horizon=%d addr=%q", cfg.DatabaseDSN, cfg.Forecast.Horizon, cfg.Addr)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeFile(t, "forecast: [unterminated")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvInt_InvalidFallsBack(t *testing.T) {
	t.Setenv("FORECAST_HORIZON", "abc")
	if got := envInt("FORECAST_HORIZON", 18); got != 18 {
		t.Fatalf("got %d, want 18", got)
	}
}
