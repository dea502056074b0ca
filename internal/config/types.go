package config

// Config is the on-disk configuration (JSON or YAML).
//
// Durations are Go duration strings ("100ms", "30s"). Secrets may be left
// empty in the file and supplied through the environment instead; see
// applyEnv.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Locale    LocaleConfig    `json:"locale"`
	Upload    UploadConfig    `json:"upload"`
	Broadcast BroadcastConfig `json:"broadcast"`
	Stats     StatsConfig     `json:"stats"`
}

type TelegramConfig struct {
	Token       string `json:"token" validate:"required"`
	AdminID     int64  `json:"admin_id" validate:"gt=0"`
	PollTimeout string `json:"poll_timeout,omitempty" validate:"omitempty,duration"`
}

type LoggingConfig struct {
	Level    string          `json:"level" validate:"omitempty,oneof=trace debug info warn warning error TRACE DEBUG INFO WARN WARNING ERROR"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// LoggingTelegram forwards log lines at MinLevel and above to the
// administrator chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty" validate:"gte=0"`
}

type StorageConfig struct {
	Path        string `json:"path" validate:"required"`
	BusyTimeout string `json:"busy_timeout,omitempty" validate:"omitempty,duration"`
}

type LocaleConfig struct {
	Default string `json:"default" validate:"required"`
}

type UploadConfig struct {
	Provider  string          `json:"provider" validate:"oneof=freeimage s3"`
	Timeout   string          `json:"timeout,omitempty" validate:"omitempty,duration"`
	FreeImage FreeImageConfig `json:"freeimage"`
	S3        S3Config        `json:"s3"`
}

type FreeImageConfig struct {
	Endpoint string `json:"endpoint,omitempty" validate:"omitempty,url"`
	APIKey   string `json:"api_key"`
}

type S3Config struct {
	Bucket        string `json:"bucket"`
	Region        string `json:"region"`
	Endpoint      string `json:"endpoint,omitempty" validate:"omitempty,url"`
	AccessKey     string `json:"access_key,omitempty"`
	SecretKey     string `json:"secret_key,omitempty"`
	PublicBaseURL string `json:"public_base_url" validate:"omitempty,url"`
}

type BroadcastConfig struct {
	SendDelay     string `json:"send_delay,omitempty" validate:"omitempty,duration"`
	ProgressEvery int    `json:"progress_every,omitempty" validate:"gte=0"`
	// Localize renders the broadcast header in each recipient's locale.
	Localize     *bool `json:"localize,omitempty"`
	SingleFlight *bool `json:"single_flight,omitempty"`
}

type StatsConfig struct {
	Digest DigestConfig `json:"digest"`
}

type DigestConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"`
	Timezone string `json:"timezone,omitempty" validate:"omitempty,timezone"`
}

// Defaults returns the values used for every omitted field.
func Defaults() Config {
	return Config{
		Telegram: TelegramConfig{PollTimeout: "10s"},
		Logging:  LoggingConfig{Level: "info", Console: true},
		Storage:  StorageConfig{Path: "./bot.db", BusyTimeout: "5s"},
		Locale:   LocaleConfig{Default: "ru"},
		Upload:   UploadConfig{Provider: "freeimage", Timeout: "30s"},
		Broadcast: BroadcastConfig{
			SendDelay:     "100ms",
			ProgressEvery: 25,
		},
		Stats: StatsConfig{Digest: DigestConfig{Schedule: "0 9 * * *"}},
	}
}

// BoolOr dereferences an optional flag.
func BoolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
