package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BackendBaseURL   string
	AccessToken      string
	HTTPTimeout      time.Duration
	ScanQuietPeriod  time.Duration
	PartyDebounce    time.Duration
	DevServerPort    string
	DevAuthSecret    string
	DevTokenTTL      time.Duration
	DevSeedAdminPass string
}

// Load reads configuration from the environment, picking up a local .env
// file first when one exists.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		BackendBaseURL:   getEnv("BACKEND_BASE_URL", "http://127.0.0.1:8990"),
		AccessToken:      strings.TrimSpace(os.Getenv("ACCESS_TOKEN")),
		HTTPTimeout:      durationEnv("HTTP_TIMEOUT_SECONDS", 15*time.Second, time.Second),
		ScanQuietPeriod:  durationEnv("SCAN_QUIET_MS", 300*time.Millisecond, time.Millisecond),
		PartyDebounce:    durationEnv("PARTY_DEBOUNCE_MS", 350*time.Millisecond, time.Millisecond),
		DevServerPort:    getEnv("DEV_SERVER_PORT", "8990"),
		DevAuthSecret:    strings.TrimSpace(os.Getenv("DEV_AUTH_SECRET")),
		DevTokenTTL:      durationEnv("DEV_TOKEN_TTL_MINUTES", 8*time.Hour, time.Minute),
		DevSeedAdminPass: strings.TrimSpace(os.Getenv("DEV_SEED_ADMIN_PASSWORD")),
	}
}

func (c Config) DevServerAddress() string {
	return fmt.Sprintf(":%s", c.DevServerPort)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func durationEnv(key string, fallback time.Duration, unit time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 1 {
		return fallback
	}
	return time.Duration(parsed) * unit
}
