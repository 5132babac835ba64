package parley

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// loadDotEnv loads the variables of .env, or of the file named by PARLEY_ENV_FILE,
// into the environment. Variables already set are not overridden. A missing
// file is not an error.
func loadDotEnv() error {
	file := os.Getenv("PARLEY_ENV_FILE")
	if file == "" {
		file = ".env"
	}
	if err := godotenv.Load(file); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", file, err)
	}
	return nil
}

// TestConfig returns a valid configuration for tests with an in-memory database.
func TestConfig(migrations string) *Config {
	config := &Config{
		Port:           8080,
		Hostname:       "127.0.0.1",
		Mode:           DevMode,
		AllowedOrigins: []string{"*"},
		LogLevel:       "error",
	}
	config.Auth.Secret = []byte("test-secret-test-secret-test-sec")
	config.Auth.TokenTTL = time.Hour
	config.SQLite.File = ":memory:"
	config.SQLite.Migrations = migrations
	config.WS.SendBuffer = 256
	config.WS.MaxMessageSize = 64 * 1024
	config.WS.EventsPerSecond = 1000
	config.WS.EventBurst = 1000
	config.RateLimit.RPS = 1000
	config.RateLimit.Burst = 1000
	return config
}
