package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func Load() (*Config, error) {
	profilePath := os.Getenv("CAPTURE_PROFILE")
	if profilePath == "" {
		profilePath = "capture.yml"
	}

	profile, err := LoadProfile(profilePath)
	if err != nil {
		return nil, err
	}

	ledgerConfig, err := loadLedgerConfig()
	if err != nil {
		return nil, err
	}

	notifyConfig, err := loadNotifyConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		ProfilePath: profilePath,
		Profile:     profile,
		Storage:     loadStorageConfig(),
		Ledger:      ledgerConfig,
		Notify:      notifyConfig,
		Assembly:    loadAssemblyConfig(),
		Publish:     loadPublishConfig(),
	}, nil
}

func loadStorageConfig() StorageConfig {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "minio:9000"
	}

	bucket := os.Getenv("STORAGE_BUCKET")
	if bucket == "" {
		bucket = "tourcam-panoramas"
	}

	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")

	return StorageConfig{
		Enabled:   accessKey != "" && secretKey != "",
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		UseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
		Bucket:    bucket,
		PublicURL: os.Getenv("STORAGE_PUBLIC_URL"),
	}
}

func loadLedgerConfig() (LedgerConfig, error) {
	path := os.Getenv("LEDGER_PATH")
	if path == "" {
		path = "tourcam.db"
	}

	retention := 30 // days
	if days, err := strconv.Atoi(os.Getenv("LEDGER_RETENTION_DAYS")); err == nil && days > 0 {
		retention = days
	}

	schedule := os.Getenv("LEDGER_PRUNE_SCHEDULE")
	if schedule == "" {
		schedule = "0 3 * * *"
	}

	if _, err := scheduleParser.Parse(schedule); err != nil {
		return LedgerConfig{}, fmt.Errorf("invalid LEDGER_PRUNE_SCHEDULE: %w", err)
	}

	return LedgerConfig{
		Path:          path,
		RetentionDays: retention,
		PruneSchedule: schedule,
	}, nil
}

func loadNotifyConfig() (NotifyConfig, error) {
	telegramToken := os.Getenv("TELEGRAM_TOKEN")
	discordToken := os.Getenv("DISCORD_TOKEN")

	var chatID int64
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return NotifyConfig{}, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		chatID = id
	}

	channelID := os.Getenv("DISCORD_CHANNEL_ID")

	cooldown := time.Hour
	if d, err := time.ParseDuration(os.Getenv("ALERT_COOLDOWN")); err == nil && d > 0 {
		cooldown = d
	}

	return NotifyConfig{
		Telegram: TelegramConfig{
			Enabled: telegramToken != "" && chatID != 0,
			Token:   telegramToken,
			ChatID:  chatID,
		},
		Discord: DiscordConfig{
			Enabled:   discordToken != "" && channelID != "",
			Token:     discordToken,
			ChannelID: channelID,
		},
		AlertCooldown: cooldown,
	}, nil
}

func loadAssemblyConfig() AssemblyConfig {
	var minFree uint64
	if mb, err := strconv.ParseUint(os.Getenv("ASSEMBLY_MIN_FREE_MB"), 10, 64); err == nil {
		minFree = mb
	}

	return AssemblyConfig{MinFreeMB: minFree}
}

func loadPublishConfig() PublishConfig {
	return PublishConfig{
		ReuseKey: os.Getenv("PUBLISH_REUSE_KEY") == "true",
	}
}
