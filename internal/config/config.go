package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port              string
	APIBaseURL        string
	ShopID            int64
	RefreshInterval   time.Duration // zero disables auto-refresh
	AllowReadyPartial bool
	StatePath         string
	AllowedOrigins    []string
	LogLevel          string
	NotifyTTL         time.Duration
}

func Load() *Config {
	return &Config{
		Port:              getEnv("PORT", "8082"),
		APIBaseURL:        getEnv("API_BASE_URL", "http://localhost:3000"),
		ShopID:            getInt("SHOP_ID", 1),
		RefreshInterval:   getMillis("REFRESH_MS", 0),
		AllowReadyPartial: getFlag("ALLOW_READY_PARTIAL"),
		StatePath:         getEnv("STATE_PATH", ".picknpack/state.db"),
		AllowedOrigins:    getList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		NotifyTTL:         getMillis("NOTIFY_TTL_MS", 4*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(os.Getenv(key)), 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// getMillis reads an integer millisecond count. Negative or malformed values
// fall back; an explicit 0 is kept.
func getMillis(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return fallback
	}
	return time.Duration(n) * time.Millisecond
}

func getFlag(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func getList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
