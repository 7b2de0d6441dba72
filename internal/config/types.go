package config

import "time"

type Config struct {
	ProfilePath string
	Profile     Profile
	Storage     StorageConfig
	Ledger      LedgerConfig
	Notify      NotifyConfig
	Assembly    AssemblyConfig
	Publish     PublishConfig
}

// Profile holds the capture tuning constants, loaded from YAML
type Profile struct {
	StepDegrees        float64         `yaml:"step_degrees"`
	AlignmentEpsilon   float64         `yaml:"alignment_epsilon"`
	Cooldown           time.Duration   `yaml:"cooldown"`
	SampleInterval     time.Duration   `yaml:"sample_interval"`
	ExpectedShots      int             `yaml:"expected_shots"`
	MaxRetries         int             `yaml:"max_retries"`
	SharpnessThreshold float64         `yaml:"sharpness_threshold"`
	StallTimeout       time.Duration   `yaml:"stall_timeout"`
	Stitcher           StitcherProfile `yaml:"stitcher"`
	HDR                HDRProfile      `yaml:"hdr"`
}

type StitcherProfile struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	BlendStrength       float64 `yaml:"blend_strength"`
	WaveCorrection      bool    `yaml:"wave_correction"`
	JPEGQuality         int     `yaml:"jpeg_quality"`
}

type HDRProfile struct {
	Enabled bool `yaml:"enabled"`
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	PublicURL string
}

type LedgerConfig struct {
	Path          string
	RetentionDays int
	PruneSchedule string
}

type NotifyConfig struct {
	Telegram      TelegramConfig
	Discord       DiscordConfig
	AlertCooldown time.Duration
}

type TelegramConfig struct {
	Enabled bool
	Token   string
	ChatID  int64
}

type DiscordConfig struct {
	Enabled   bool
	Token     string
	ChannelID string
}

type AssemblyConfig struct {
	MinFreeMB uint64
}

type PublishConfig struct {
	ReuseKey bool
}
