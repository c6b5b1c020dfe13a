package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/target/mmk-console/config"
)

// InitLogger installs a JSON slog logger on stderr as the default; stdout carries
// command output.
func InitLogger(level config.LogLevel) *slog.Logger {
	return initLogger(os.Stderr, level)
}

func initLogger(w io.Writer, level config.LogLevel) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level.SlogLevel()}))
	slog.SetDefault(logger)
	return logger
}

// envFiles lists the dotenv files consulted, most specific first. godotenv never
// overrides a variable that is already set, so the first file to define a key wins.
func envFiles() []string {
	files := []string{".env"}
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		files = append(files, filepath.Join(dir, "mmk-console", "env"))
	}
	return files
}

// LoadConfig reads the environment (plus any dotenv files) into an AppConfig.
func LoadConfig() (config.AppConfig, error) {
	return loadConfig(envFiles()...)
}

func loadConfig(files ...string) (config.AppConfig, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config.AppConfig{}, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}
