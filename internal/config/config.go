package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string             `yaml:"discord_token"`
	OwnerID       string             `yaml:"owner_id"`
	DatabasePath  string             `yaml:"database_path"`
	LogLevel      string             `yaml:"log_level"`
	RetentionDays int                `yaml:"retention_days"`
	Ingest        IngestConfig       `yaml:"ingest"`
	LinkTokens    LinkTokenConfig    `yaml:"link_tokens"`
	GeoIP         GeoIPConfig        `yaml:"geoip"`
	Verification  VerificationConfig `yaml:"verification"`
	Invites       InviteConfig       `yaml:"invites"`
	Backups       BackupConfig       `yaml:"backups"`
	Notifications NotifyConfig       `yaml:"notifications"`
}

type IngestConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Addr              string `yaml:"addr"`
	RatePerMinute     int    `yaml:"rate_per_minute"`
	Burst             int    `yaml:"burst"`
	TrustForwardedFor bool   `yaml:"trust_forwarded_for"`
}

type LinkTokenConfig struct {
	Secret     string `yaml:"secret"`
	TTLMinutes int    `yaml:"ttl_minutes"`
}

type GeoIPConfig struct {
	CountryDBPath string `yaml:"country_db_path"`
	ASNDBPath     string `yaml:"asn_db_path"`
}

type VerificationConfig struct {
	WebsiteURL       string  `yaml:"website_url"`
	MaxAttempts      int     `yaml:"max_attempts"`
	VPNThreshold     float64 `yaml:"vpn_threshold"`
	AutoBlacklist    bool    `yaml:"auto_blacklist"`
	VPNDetection     bool    `yaml:"vpn_detection"`
	AutoBlacklistVPN bool    `yaml:"auto_blacklist_vpn"`
	AutoUnverified   bool    `yaml:"auto_unverified"`
}

type InviteConfig struct {
	TrackingEnabled bool `yaml:"tracking_enabled"`
	PollMinutes     int  `yaml:"poll_minutes"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	IntervalHours int    `yaml:"interval_hours"`
	Keep          int    `yaml:"keep"`
}

type NotifyConfig struct {
	DMOnSuccess bool        `yaml:"dm_on_success"`
	EmbedColors EmbedColors `yaml:"embed_colors"`
}

type EmbedColors struct {
	Success int `yaml:"success"`
	Warning int `yaml:"warning"`
	Error   int `yaml:"error"`
	Info    int `yaml:"info"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:  "/data/gatewarden.db",
		LogLevel:      "info",
		RetentionDays: 90,
		Ingest: IngestConfig{
			Enabled:           false,
			Addr:              ":8473",
			RatePerMinute:     30,
			Burst:             10,
			TrustForwardedFor: false,
		},
		LinkTokens: LinkTokenConfig{TTLMinutes: 15},
		Verification: VerificationConfig{
			MaxAttempts:      3,
			VPNThreshold:     75,
			AutoBlacklist:    true,
			VPNDetection:     false,
			AutoBlacklistVPN: false,
			AutoUnverified:   true,
		},
		Invites: InviteConfig{TrackingEnabled: false, PollMinutes: 10},
		Backups: BackupConfig{
			Enabled:       false,
			Dir:           "/data/backups",
			IntervalHours: 24,
			Keep:          7,
		},
		Notifications: NotifyConfig{
			DMOnSuccess: true,
			EmbedColors: EmbedColors{
				Success: 0x2ECC71,
				Warning: 0xE67E22,
				Error:   0xE74C3C,
				Info:    0x3498DB,
			},
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.Ingest.Enabled && cfg.LinkTokens.Secret == "" {
		return Config{}, errors.New("LINK_TOKEN_SECRET is required when ingest is enabled")
	}
	if cfg.Verification.MaxAttempts <= 0 {
		cfg.Verification.MaxAttempts = 3
	}
	if cfg.LinkTokens.TTLMinutes <= 0 {
		cfg.LinkTokens.TTLMinutes = 15
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.OwnerID = envString("OWNER_ID", cfg.OwnerID)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.Ingest.Enabled = envBool("INGEST_ENABLED", cfg.Ingest.Enabled)
	cfg.Ingest.Addr = envString("INGEST_ADDR", cfg.Ingest.Addr)
	cfg.Ingest.RatePerMinute = envInt("INGEST_RATE_PER_MINUTE", cfg.Ingest.RatePerMinute)
	cfg.Ingest.Burst = envInt("INGEST_BURST", cfg.Ingest.Burst)
	cfg.Ingest.TrustForwardedFor = envBool("INGEST_TRUST_FORWARDED_FOR", cfg.Ingest.TrustForwardedFor)
	cfg.LinkTokens.Secret = envString("LINK_TOKEN_SECRET", cfg.LinkTokens.Secret)
	cfg.LinkTokens.TTLMinutes = envInt("LINK_TOKEN_TTL_MINUTES", cfg.LinkTokens.TTLMinutes)
	cfg.GeoIP.CountryDBPath = envString("GEOIP_COUNTRY_DB", cfg.GeoIP.CountryDBPath)
	cfg.GeoIP.ASNDBPath = envString("GEOIP_ASN_DB", cfg.GeoIP.ASNDBPath)
	cfg.Verification.WebsiteURL = envString("VERIFICATION_WEBSITE_URL", cfg.Verification.WebsiteURL)
	cfg.Verification.MaxAttempts = envInt("VERIFICATION_MAX_ATTEMPTS", cfg.Verification.MaxAttempts)
	cfg.Verification.VPNThreshold = envFloat("VERIFICATION_VPN_THRESHOLD", cfg.Verification.VPNThreshold)
	cfg.Verification.AutoBlacklist = envBool("VERIFICATION_AUTO_BLACKLIST", cfg.Verification.AutoBlacklist)
	cfg.Verification.VPNDetection = envBool("VERIFICATION_VPN_DETECTION", cfg.Verification.VPNDetection)
	cfg.Verification.AutoBlacklistVPN = envBool("VERIFICATION_AUTO_BLACKLIST_VPN", cfg.Verification.AutoBlacklistVPN)
	cfg.Verification.AutoUnverified = envBool("VERIFICATION_AUTO_UNVERIFIED", cfg.Verification.AutoUnverified)
	cfg.Invites.TrackingEnabled = envBool("INVITE_TRACKING_ENABLED", cfg.Invites.TrackingEnabled)
	cfg.Invites.PollMinutes = envInt("INVITE_POLL_MINUTES", cfg.Invites.PollMinutes)
	cfg.Backups.Enabled = envBool("BACKUP_ENABLED", cfg.Backups.Enabled)
	cfg.Backups.Dir = envString("BACKUP_DIR", cfg.Backups.Dir)
	cfg.Backups.IntervalHours = envInt("BACKUP_INTERVAL_HOURS", cfg.Backups.IntervalHours)
	cfg.Backups.Keep = envInt("BACKUP_KEEP", cfg.Backups.Keep)
	cfg.Notifications.DMOnSuccess = envBool("DM_ON_SUCCESS", cfg.Notifications.DMOnSuccess)
	cfg.Notifications.EmbedColors.Success = envInt("EMBED_COLOR_SUCCESS", cfg.Notifications.EmbedColors.Success)
	cfg.Notifications.EmbedColors.Warning = envInt("EMBED_COLOR_WARNING", cfg.Notifications.EmbedColors.Warning)
	cfg.Notifications.EmbedColors.Error = envInt("EMBED_COLOR_ERROR", cfg.Notifications.EmbedColors.Error)
	cfg.Notifications.EmbedColors.Info = envInt("EMBED_COLOR_INFO", cfg.Notifications.EmbedColors.Info)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
