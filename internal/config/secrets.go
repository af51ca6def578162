package config

import "slices"

const redacted = "***"

// RedactedConfig returns a copy of cfg safe to log: every credential that is
// set reads "***" and slices are cloned so the copy can be mutated freely.
func RedactedConfig(cfg *Config) Config {
	out := *cfg
	for _, secret := range []*string{
		&out.Postgres.DSN,
		&out.Postgres.Password,
		&out.Redis.Password,
		&out.S3.AccessKey,
		&out.S3.SecretKey,
		&out.Server.AdminAPIKey,
		&out.Notify.TelegramToken,
		&out.Notify.DiscordWebhookURL,
	} {
		if *secret != "" {
			*secret = redacted
		}
	}
	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)
	out.Notify.Events = slices.Clone(cfg.Notify.Events)
	return out
}
