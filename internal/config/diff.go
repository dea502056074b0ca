package config

import (
	"reflect"

	logx "imgbot/pkg/logx"
)

// RestartRequired lists the changed fields that a running process does not
// pick up. Secrets are named, never shown.
func RestartRequired(oldCfg, newCfg *Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var out []string
	if oldCfg.Telegram.Token != newCfg.Telegram.Token {
		out = append(out, "telegram.token")
	}
	if oldCfg.Telegram.AdminID != newCfg.Telegram.AdminID {
		out = append(out, "telegram.admin_id")
	}
	if oldCfg.Telegram.PollTimeout != newCfg.Telegram.PollTimeout {
		out = append(out, "telegram.poll_timeout")
	}
	if oldCfg.Storage != newCfg.Storage {
		out = append(out, "storage")
	}
	if oldCfg.Locale != newCfg.Locale {
		out = append(out, "locale")
	}
	if oldCfg.Upload != newCfg.Upload {
		out = append(out, "upload")
	}
	return out
}

// Summarize returns the hot-reloadable sections that differ and log fields
// describing their new values.
func Summarize(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		fields  []logx.Field
	)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Broadcast, newCfg.Broadcast) {
		changed = append(changed, "broadcast")
		fields = append(fields,
			logx.String("broadcast.send_delay", newCfg.Broadcast.SendDelay),
			logx.Int("broadcast.progress_every", newCfg.Broadcast.ProgressEvery),
			logx.Bool("broadcast.localize", BoolOr(newCfg.Broadcast.Localize, true)),
			logx.Bool("broadcast.single_flight", BoolOr(newCfg.Broadcast.SingleFlight, true)),
		)
	}
	if oldCfg.Stats != newCfg.Stats {
		changed = append(changed, "stats")
		fields = append(fields,
			logx.Bool("stats.digest.enabled", newCfg.Stats.Digest.Enabled),
			logx.String("stats.digest.schedule", newCfg.Stats.Digest.Schedule),
		)
	}
	return changed, fields
}
