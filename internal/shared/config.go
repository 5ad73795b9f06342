package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	AdminKey    string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	RepliersBase    string
	RepliersKey     string
	RepliersRegion  string
	RepliersRPM     int
	RepliersTimeout time.Duration

	ProbeWorkers int
}

func Load() Config {
	_ = godotenv.Load() // a missing .env file is fine; real env always wins

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		AdminKey:    env("ADMIN_API_KEY", ""),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/agentradar?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisDB:     atoi("REDIS_DB", 0),
		RedisPass:   env("REDIS_PASSWORD", ""),

		RepliersBase:    env("REPLIERS_BASE_URL", "https://api.repliers.io"),
		RepliersKey:     env("REPLIERS_API_KEY", ""),
		RepliersRegion:  env("REPLIERS_REGION", "GTA"),
		RepliersRPM:     atoi("REPLIERS_RPM", 100),
		RepliersTimeout: time.Duration(atoi("REPLIERS_TIMEOUT_MS", 30000)) * time.Millisecond,

		ProbeWorkers: atoi("PROBE_WORKERS", 8),
	}
	if c.RepliersKey == "" {
		log.Warn().Msg("REPLIERS_API_KEY is empty")
	}
	if c.AdminKey == "" {
		log.Warn().Msg("ADMIN_API_KEY is empty, provider admin routes are unprotected")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
