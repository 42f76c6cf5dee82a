package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultSecret        = "dev_secret"
	defaultAdminPassword = "admin123"
)

// Config holds application configuration values.
type Config struct {
	AppEnv   string
	LogLevel string
	HTTPPort string
	Secret   string

	DBDriver    string
	DatabaseDSN string

	AdminUsername     string
	AdminPassword     string
	AdminPasswordHash string
	SessionTTL        time.Duration

	StaticDir           string
	SeedCSV             string
	CORSOrigins         []string
	BillNodeID          int64
	EnforceCatalogPrice bool
	LowStockThreshold   int64
}

// Load reads configuration from the environment, after merging an optional .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppEnv:            env("APP_ENV", "development"),
		LogLevel:          env("LOG_LEVEL", "info"),
		HTTPPort:          env("HTTP_PORT", "3000"),
		Secret:            env("SECRET", defaultSecret),
		DBDriver:          strings.ToLower(env("DB_DRIVER", "sqlite")),
		AdminUsername:     env("ADMIN_USERNAME", "admin"),
		AdminPassword:     env("ADMIN_PASSWORD", defaultAdminPassword),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		StaticDir:         env("STATIC_DIR", "public"),
		SeedCSV:           env("SEED_CSV", "assets/tiles.csv"),
		CORSOrigins:       splitList(os.Getenv("CORS_ORIGINS")),
	}

	// Validate that port is numeric.
	if _, err := strconv.Atoi(cfg.HTTPPort); err != nil {
		log.Printf("invalid HTTP_PORT value %q, defaulting to 3000", cfg.HTTPPort)
		cfg.HTTPPort = "3000"
	}

	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "postgres" {
		log.Printf("unknown DB_DRIVER %q, defaulting to sqlite", cfg.DBDriver)
		cfg.DBDriver = "sqlite"
	}

	cfg.DatabaseDSN = os.Getenv("DATABASE_DSN")
	if cfg.DatabaseDSN == "" {
		if cfg.DBDriver == "postgres" {
			cfg.DatabaseDSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
				env("DB_USER", "postgres"), os.Getenv("DB_PASSWORD"), env("DB_HOST", "localhost"),
				env("DB_PORT", "5432"), env("DB_NAME", "durga_traders"))
		} else {
			cfg.DatabaseDSN = "durga_traders.db"
		}
	}

	cfg.SessionTTL = 12 * time.Hour
	if raw := os.Getenv("SESSION_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			log.Printf("invalid SESSION_TTL value %q, defaulting to %s", raw, cfg.SessionTTL)
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if raw := os.Getenv("BILL_NODE_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 0 || id > 1023 {
			log.Printf("invalid BILL_NODE_ID value %q, defaulting to 0", raw)
		} else {
			cfg.BillNodeID = id
		}
	}

	if raw := os.Getenv("ENFORCE_CATALOG_PRICE"); raw != "" {
		enforce, err := strconv.ParseBool(raw)
		if err != nil {
			log.Printf("invalid ENFORCE_CATALOG_PRICE value %q, defaulting to false", raw)
		}
		cfg.EnforceCatalogPrice = enforce
	}

	cfg.LowStockThreshold = 10
	if raw := os.Getenv("LOW_STOCK_THRESHOLD"); raw != "" {
		threshold, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || threshold < 0 {
			log.Printf("invalid LOW_STOCK_THRESHOLD value %q, defaulting to %d", raw, cfg.LowStockThreshold)
		} else {
			cfg.LowStockThreshold = threshold
		}
	}

	if cfg.AppEnv != "production" {
		for _, weak := range cfg.insecureDefaults() {
			log.Printf("warning: %s is still the built-in default", weak)
		}
	}

	return cfg
}

// Validate rejects a production configuration that still uses the built-in credentials.
func (c Config) Validate() error {
	if c.AppEnv != "production" {
		return nil
	}
	if weak := c.insecureDefaults(); len(weak) > 0 {
		return fmt.Errorf("production requires %s to be set", strings.Join(weak, " and "))
	}
	return nil
}

func (c Config) insecureDefaults() []string {
	var weak []string
	if c.Secret == defaultSecret {
		weak = append(weak, "SECRET")
	}
	if c.AdminPasswordHash == "" && c.AdminPassword == defaultAdminPassword {
		weak = append(weak, "ADMIN_PASSWORD")
	}
	return weak
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
