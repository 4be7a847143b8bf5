package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int

	// Default snippet length for new rooms, in seconds.
	SnippetSeconds int

	// Path of the file-backed device/credential store.
	DeviceFile string

	// Playback control surface
	SpotifyAPIURL       string
	SpotifyTokenURL     string
	SpotifyClientID     string
	SpotifyClientSecret string

	MetricsEnabled bool
}

// Load reads a .env file when present, then environment variables, applies
// defaults, and validates the result.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Environment:    getEnv("TUNEBINGO_ENV", "development"),
		HTTPBind:       getEnv("TUNEBINGO_HTTP_BIND", "0.0.0.0"),
		HTTPPort:       getEnvInt("TUNEBINGO_HTTP_PORT", 8080),
		SnippetSeconds: getEnvInt("TUNEBINGO_SNIPPET_SECONDS", 30),
		DeviceFile:     getEnv("TUNEBINGO_DEVICE_FILE", "./data/device.json"),

		SpotifyAPIURL:       getEnv("TUNEBINGO_SPOTIFY_API_URL", "https://api.spotify.com/v1"),
		SpotifyTokenURL:     getEnv("TUNEBINGO_SPOTIFY_TOKEN_URL", "https://accounts.spotify.com/api/token"),
		SpotifyClientID:     getEnv("TUNEBINGO_SPOTIFY_CLIENT_ID", ""),
		SpotifyClientSecret: getEnv("TUNEBINGO_SPOTIFY_CLIENT_SECRET", ""),

		MetricsEnabled: getEnvBool("TUNEBINGO_METRICS_ENABLED", true),
	}

	if cfg.SnippetSeconds <= 0 {
		return nil, fmt.Errorf("TUNEBINGO_SNIPPET_SECONDS must be positive, got %d", cfg.SnippetSeconds)
	}

	if strings.EqualFold(cfg.Environment, "production") {
		if cfg.SpotifyClientID == "" || cfg.SpotifyClientSecret == "" {
			return nil, fmt.Errorf("TUNEBINGO_SPOTIFY_CLIENT_ID and TUNEBINGO_SPOTIFY_CLIENT_SECRET must be set in production")
		}
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return def
}
