package configutil

import (
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ApplyEnv loads a .env file from the cwd (if there is one) and then overrides the fields
// of `out` that carry an `env` struct tag with the values present in the environment.
// fields whose variables are unset keep the values read from configuration files.
func ApplyEnv[T any](out *T) error {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if err == nil {
		slog.Debug("loaded environment from .env")
	}
	return env.Parse(out)
}
