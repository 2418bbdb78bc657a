package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"racebot/internal/util"
)

type Config struct {
	ChatPlatform string

	DiscordToken   string
	DiscordGuildID int64

	TelegramToken  string
	TelegramChatID int64

	CommandPrefix    string
	AdminRoles       []string
	AdminIDs         map[int64]bool
	OperatorUserID   int64
	ResultsChannelID int64

	StoreBackend   string
	RedisURL       string
	RedisRacesKey  string
	RedisBoardsKey string
	BoltPath       string

	SchedulerSpec string

	HTTPAddr      string
	ExportSecret  string
	BasePublicURL string

	BoardsFile string

	LogLevel  string
	LogPretty bool

	SpreadsheetID            string
	GoogleServiceAccountJSON string

	ArchiveS3Bucket          string
	ArchiveS3Endpoint        string
	ArchiveS3Region          string
	ArchiveS3AccessKeyID     string
	ArchiveS3SecretAccessKey string
	ArchiveS3Prefix          string
}

func FromEnv() (Config, error) {
	var c Config
	var err error

	c.ChatPlatform = strings.ToLower(env("CHAT_PLATFORM", "discord"))
	c.DiscordToken = env("DISCORD_TOKEN", "")
	if c.DiscordGuildID, err = envInt("DISCORD_GUILD_ID"); err != nil {
		return c, err
	}
	c.TelegramToken = env("TELEGRAM_BOT_TOKEN", "")
	if c.TelegramChatID, err = envInt("TELEGRAM_CHAT_ID"); err != nil {
		return c, err
	}

	c.CommandPrefix = env("COMMAND_PREFIX", "?")
	c.AdminRoles = splitList(env("ADMIN_ROLES", "admin,dev admin,arbiter"))
	c.AdminIDs = parseAdminIDs(os.Getenv("ADMIN_IDS"))
	if c.OperatorUserID, err = envInt("OPERATOR_USER_ID"); err != nil {
		return c, err
	}
	if c.ResultsChannelID, err = envInt("RESULTS_CHANNEL_ID"); err != nil {
		return c, err
	}

	c.StoreBackend = strings.ToLower(env("STORE_BACKEND", "redis"))
	c.RedisURL = env("REDIS_URL", "")
	if c.RedisURL == "" {
		host := env("REDIS_HOST", "localhost")
		port := env("REDIS_PORT", "6379")
		c.RedisURL = "redis://" + net.JoinHostPort(host, port) + "/0"
	}
	c.RedisRacesKey = env("REDIS_RACES_KEY", "races")
	c.RedisBoardsKey = env("REDIS_BOARDS_KEY", "boards")
	c.BoltPath = env("BOLT_PATH", "data/racebot.db")

	c.SchedulerSpec = env("SCHEDULER_SPEC", "@every 30s")

	c.HTTPAddr = env("HTTP_ADDR", ":8080")
	c.ExportSecret = env("EXPORT_SECRET", "change-me")
	c.BasePublicURL = strings.TrimRight(env("BASE_PUBLIC_URL", ""), "/")

	c.BoardsFile = env("BOARDS_FILE", "")

	c.LogLevel = strings.ToLower(env("LOG_LEVEL", "info"))
	c.LogPretty = util.NormalizeBool(os.Getenv("LOG_PRETTY"))

	c.SpreadsheetID = env("GOOGLE_SHEETS_SPREADSHEET_ID", "")
	c.GoogleServiceAccountJSON = env("GOOGLE_SERVICE_ACCOUNT_JSON", "")

	c.ArchiveS3Bucket = env("ARCHIVE_S3_BUCKET", "")
	c.ArchiveS3Endpoint = env("ARCHIVE_S3_ENDPOINT", "")
	c.ArchiveS3Region = env("ARCHIVE_S3_REGION", "auto")
	c.ArchiveS3AccessKeyID = env("ARCHIVE_S3_ACCESS_KEY_ID", "")
	c.ArchiveS3SecretAccessKey = env("ARCHIVE_S3_SECRET_ACCESS_KEY", "")
	c.ArchiveS3Prefix = strings.Trim(env("ARCHIVE_S3_PREFIX", "races"), "/")

	return c, c.validate()
}

func (c Config) validate() error {
	switch c.ChatPlatform {
	case "discord":
		if c.DiscordToken == "" {
			return fmt.Errorf("DISCORD_TOKEN is empty")
		}
		if c.DiscordGuildID == 0 {
			return fmt.Errorf("DISCORD_GUILD_ID is empty")
		}
	case "telegram":
		if c.TelegramToken == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN is empty")
		}
		if c.TelegramChatID == 0 {
			return fmt.Errorf("TELEGRAM_CHAT_ID is empty")
		}
	case "stub":
	default:
		return fmt.Errorf("unknown CHAT_PLATFORM: %s", c.ChatPlatform)
	}

	switch c.StoreBackend {
	case "redis", "bolt", "memory":
	default:
		return fmt.Errorf("unknown STORE_BACKEND: %s", c.StoreBackend)
	}

	if c.CommandPrefix == "" {
		return fmt.Errorf("COMMAND_PREFIX is empty")
	}
	if (c.SpreadsheetID == "") != (c.GoogleServiceAccountJSON == "") {
		return fmt.Errorf("GOOGLE_SHEETS_SPREADSHEET_ID and GOOGLE_SERVICE_ACCOUNT_JSON must be set together")
	}
	return nil
}

// SheetsEnabled reports whether final results go to a spreadsheet.
func (c Config) SheetsEnabled() bool { return c.SpreadsheetID != "" }

// S3Enabled reports whether final CSV exports are archived to a bucket.
func (c Config) S3Enabled() bool { return c.ArchiveS3Bucket != "" }

func env(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseAdminIDs(raw string) map[int64]bool {
	m := map[int64]bool{}
	for _, p := range splitList(raw) {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		m[v] = true
	}
	return m
}
