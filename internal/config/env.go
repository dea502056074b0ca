package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override the file.
const (
	EnvToken        = "BOT_TOKEN"
	EnvAdminID      = "ADMIN_ID"
	EnvFreeImageKey = "FREEIMAGE_API_KEY"
	EnvDatabasePath = "IMGBOT_DB_PATH"
)

// loadDotEnv reads KEY=VALUE pairs from path into the process environment.
// Variables already set win. A missing file is not an error.
func loadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// applyEnv overlays the supported environment variables onto cfg.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvToken); ok && strings.TrimSpace(v) != "" {
		cfg.Telegram.Token = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvAdminID); ok && strings.TrimSpace(v) != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAdminID, err)
		}
		cfg.Telegram.AdminID = id
	}
	if v, ok := lookup(EnvFreeImageKey); ok && strings.TrimSpace(v) != "" {
		cfg.Upload.FreeImage.APIKey = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvDatabasePath); ok && strings.TrimSpace(v) != "" {
		cfg.Storage.Path = strings.TrimSpace(v)
	}
	return nil
}
