package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read once at startup from the
// environment with an optional .env overlay.
type Config struct {
	Port           int
	DatabaseURL    string
	ThemesDir      string
	RoomTTL        time.Duration
	AllowedOrigins string
}

// Load reads .env if present, then the environment. A missing DatabaseURL is
// allowed; the server falls back to the in-memory store.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[Load] no .env file found, using environment")
	}

	cfg := Config{
		Port:           8080,
		ThemesDir:      "./themes",
		RoomTTL:        2 * time.Hour,
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("THEMES_DIR"); v != "" {
		cfg.ThemesDir = v
	}
	if v := os.Getenv("ROOM_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ROOM_TTL %q: %w", v, err)
		}
		cfg.RoomTTL = ttl
	}
	if cfg.AllowedOrigins == "" {
		cfg.AllowedOrigins = "*"
	}
	return cfg, nil
}
