package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"revenue-forecast/pkg/models"
)

// DefaultPath est le fichier lu quand aucun chemin n'est donné.
const DefaultPath = "forecast.yaml"

// Config est la configuration résolue : défauts → fichier YAML → variables d'env.
type Config struct {
	DatabaseDSN string
	Table       string

	Addr string

	RedisURL    string
	RedisPrefix string

	// StoragePreset applique le profil saisonnier "opslag" comme overrides.
	StoragePreset bool

	Forecast models.ForecastConfiguration
}

// configFile reflète le schéma YAML.
type configFile struct {
	Database struct {
		DSN   string `yaml:"dsn"`
		Table string `yaml:"table"`
	} `yaml:"database"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Redis struct {
		URL    string `yaml:"url"`
		Prefix string `yaml:"prefix"`
	} `yaml:"redis"`
	Seasonality struct {
		StoragePreset bool `yaml:"storage_preset"`
	} `yaml:"seasonality"`
	Forecast models.ForecastConfiguration `yaml:"forecast"`
}

func defaults() Config {
	return Config{
		Table:       "sales",
		Addr:        ":8080",
		RedisPrefix: "forecast:snapshots",
		Forecast:    models.DefaultForecastConfiguration(),
	}
}

// LoadEnv charge un fichier .env s'il existe. Un fichier absent n'est pas une erreur.
func LoadEnv(paths ...string) {
	if err := godotenv.Load(paths...); err != nil {
		log.Printf("[WARN] .env non chargé (%v), variables d'environnement système utilisées", err)
	}
}

// Load résout la configuration. Un fichier absent donne les valeurs par défaut.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path == "" {
		path = DefaultPath
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		// les sections absentes du fichier gardent les défauts
		f := configFile{Forecast: cfg.Forecast}
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
		if f.Database.DSN != "" {
			cfg.DatabaseDSN = f.Database.DSN
		}
		if f.Database.Table != "" {
			cfg.Table = f.Database.Table
		}
		if f.Server.Addr != "" {
			cfg.Addr = f.Server.Addr
		}
		if f.Redis.URL != "" {
			cfg.RedisURL = f.Redis.URL
		}
		if f.Redis.Prefix != "" {
			cfg.RedisPrefix = f.Redis.Prefix
		}
		cfg.StoragePreset = f.Seasonality.StoragePreset
		cfg.Forecast = f.Forecast
	case errors.Is(err, fs.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg.DatabaseDSN = envOrDefault("FORECAST_DSN", cfg.DatabaseDSN)
	cfg.Table = envOrDefault("FORECAST_TABLE", cfg.Table)
	cfg.Addr = envOrDefault("FORECAST_ADDR", cfg.Addr)
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.Forecast.Horizon = envInt("FORECAST_HORIZON", cfg.Forecast.Horizon)
	if cfg.Forecast.Customers.ManualPlan == nil {
		cfg.Forecast.Customers.ManualPlan = map[string]float64{}
	}
	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt retombe sur fallback si la valeur est vide ou invalide.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
