package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultDatabaseDSN = "estoque.db"
	defaultCORSOrigins = "http://localhost:5173"
)

type Config struct {
	HTTPPort    string
	DatabaseDSN string // postgres DSN or sqlite file path
	JWTSecret   string
	CORSOrigins string
	LogLevel    string

	// Upstream warehouse (SQL Server)
	StockDSN             string
	StockQuery           string // empty means warehouse.DefaultQuery
	StockQueryTimeout    time.Duration
	StockRefreshSchedule string // cron spec
	StockCacheTTL        time.Duration

	// Lookup spreadsheets
	NamesPath          string
	ClassificationPath string
	LookupEncoding     string // "" (utf-8) or "windows-1252"
	RequireNames       bool

	SubtractDamaged bool

	YieldStorePath    string
	ReportAttribution string

	RedisAddr     string
	RedisPassword string
}

// Load reads the server configuration and exits when a required setting is
// missing.
func Load() *Config {
	cfg := LoadLocal()

	if cfg.JWTSecret == "" {
		log.Fatal("[FATAL] JWT_SECRET is not set")
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatal("[FATAL] JWT_SECRET must be at least 32 characters")
	}
	if cfg.CORSOrigins == defaultCORSOrigins {
		log.Println("[WARN] CORS_ALLOWED_ORIGINS uses the default value, set your own domain for production.")
	}
	if cfg.StockDSN == "" {
		log.Println("[WARN] STOCK_DSN is empty, dashboard endpoints will report no data.")
	}

	return cfg
}

// LoadLocal reads the same settings without the server checks. Used by the
// command line tool, which never signs tokens.
func LoadLocal() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseDSN: getEnv("DATABASE_DSN", defaultDatabaseDSN),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		CORSOrigins: getEnv("CORS_ALLOWED_ORIGINS", defaultCORSOrigins),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		StockDSN:             getEnv("STOCK_DSN", ""),
		StockQuery:           getEnv("STOCK_QUERY", ""),
		StockQueryTimeout:    getDuration("STOCK_QUERY_TIMEOUT", 30*time.Second),
		StockRefreshSchedule: getEnv("STOCK_REFRESH_SCHEDULE", "@every 10m"),
		StockCacheTTL:        getDuration("STOCK_CACHE_TTL", 10*time.Minute),

		NamesPath:          getEnv("NAMES_PATH", "data/descricoes.xlsx"),
		ClassificationPath: getEnv("CLASSIFICATION_PATH", ""),
		LookupEncoding:     strings.ToLower(getEnv("LOOKUP_ENCODING", "")),
		RequireNames:       getBool("REQUIRE_NAMES", true),

		SubtractDamaged: getBool("SUBTRACT_DAMAGED", false),

		YieldStorePath:    getEnv("YIELD_STORE_PATH", "data/desossa.csv"),
		ReportAttribution: getEnv("REPORT_ATTRIBUTION", "Setor Fiscal - Controle de Estoque"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[WARN] %s=%q is not a bool, using %v", key, v, def)
		return def
	}
	return b
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[WARN] %s=%q is not a positive duration, using %s", key, v, def)
		return def
	}
	return d
}
