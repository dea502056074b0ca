package app

import (
	"strings"
	"time"

	"imgbot/internal/broadcast"
	"imgbot/internal/config"
	"imgbot/internal/registry"
	"imgbot/internal/stats"
	"imgbot/internal/upload"
	logx "imgbot/pkg/logx"
)

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func registryConfig(cfg *config.Config) (registry.Config, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return registry.Config{}, err
	}
	return registry.Config{
		Path:          strings.TrimSpace(cfg.Storage.Path),
		BusyTimeout:   busy,
		DefaultLocale: cfg.Locale.Default,
	}, nil
}

func broadcastConfig(cfg *config.Config) (broadcast.Config, error) {
	delay, err := config.ParseDurationField("broadcast.send_delay", cfg.Broadcast.SendDelay)
	if err != nil {
		return broadcast.Config{}, err
	}
	return broadcast.Config{
		SendDelay:     delay,
		ProgressEvery: cfg.Broadcast.ProgressEvery,
		Localize:      config.BoolOr(cfg.Broadcast.Localize, true),
		SingleFlight:  config.BoolOr(cfg.Broadcast.SingleFlight, true),
	}, nil
}

func digestConfig(cfg *config.Config) stats.DigestConfig {
	return stats.DigestConfig{
		Enabled:  cfg.Stats.Digest.Enabled,
		Schedule: cfg.Stats.Digest.Schedule,
		Timezone: cfg.Stats.Digest.Timezone,
	}
}

func uploadConfig(cfg *config.Config) (upload.Config, error) {
	timeout, err := config.ParseDurationOrDefault("upload.timeout", cfg.Upload.Timeout, 30*time.Second)
	if err != nil {
		return upload.Config{}, err
	}
	u := cfg.Upload
	return upload.Config{
		Provider: u.Provider,
		Timeout:  timeout,
		FreeImage: upload.FreeImageConfig{
			Endpoint: u.FreeImage.Endpoint,
			APIKey:   u.FreeImage.APIKey,
		},
		S3: upload.S3Config{
			Bucket:        u.S3.Bucket,
			Region:        u.S3.Region,
			Endpoint:      u.S3.Endpoint,
			AccessKey:     u.S3.AccessKey,
			SecretKey:     u.S3.SecretKey,
			PublicBaseURL: u.S3.PublicBaseURL,
		},
	}, nil
}
