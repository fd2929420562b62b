package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	Timezone  string

	Database     DatabaseConfig
	Redis        RedisConfig
	CORS         CORSConfig
	Log          LogConfig
	Substitution SubstitutionConfig
	NameMatch    NameMatchConfig
	Telegram     TelegramConfig
	Jobs         JobsConfig
	Export       ExportConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SubstitutionConfig tunes scoring and reconciliation.
type SubstitutionConfig struct {
	RosterFile        string
	LastResortIDs     []string
	ExpireAfter       time.Duration
	AIAcceptThreshold float64
	FuzzyThreshold    float64
	HonorificPrefixes []string
}

// NameMatchConfig configures the model-assisted name matcher.
type NameMatchConfig struct {
	Enabled       bool
	BaseURL       string
	APIKey        string
	Model         string
	Timeout       time.Duration
	MinConfidence float64
	CacheTTL      time.Duration
}

// TelegramConfig configures admin notifications and the chat bot.
type TelegramConfig struct {
	Enabled     bool
	Token       string
	AdminChatID int64
	AdminIDs    []int64
}

// JobsConfig configures cron schedules and the notification worker pool.
type JobsConfig struct {
	ExpireCron       string
	DailyProcessCron string
	JobTimeout       time.Duration
	NotifyWorkers    int
	NotifyRetries    int
}

// ExportConfig configures workload file rendering.
type ExportConfig struct {
	PDFFontPath string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Timezone = v.GetString("TIMEZONE")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Substitution = SubstitutionConfig{
		RosterFile:        v.GetString("ROSTER_FILE"),
		LastResortIDs:     splitAndTrim(v.GetString("LAST_RESORT_TEACHERS")),
		ExpireAfter:       parseDuration(v.GetString("PENDING_EXPIRE_AFTER"), 7*24*time.Hour),
		AIAcceptThreshold: parseFloat(v.GetString("AI_ACCEPT_THRESHOLD"), 0.85),
		FuzzyThreshold:    parseFloat(v.GetString("FUZZY_MATCH_THRESHOLD"), 0.85),
		HonorificPrefixes: splitAndTrim(v.GetString("HONORIFIC_PREFIXES")),
	}

	cfg.NameMatch = NameMatchConfig{
		Enabled:       v.GetBool("NAME_MATCH_ENABLED"),
		BaseURL:       v.GetString("NAME_MATCH_BASE_URL"),
		APIKey:        v.GetString("NAME_MATCH_API_KEY"),
		Model:         v.GetString("NAME_MATCH_MODEL"),
		Timeout:       parseDuration(v.GetString("NAME_MATCH_TIMEOUT"), 10*time.Second),
		MinConfidence: parseFloat(v.GetString("NAME_MATCH_MIN_CONFIDENCE"), 0.60),
		CacheTTL:      parseDuration(v.GetString("NAME_MATCH_CACHE_TTL"), 24*time.Hour),
	}

	cfg.Telegram = TelegramConfig{
		Enabled:     v.GetBool("TELEGRAM_BOT_ENABLED"),
		Token:       v.GetString("TELEGRAM_BOT_TOKEN"),
		AdminChatID: v.GetInt64("TELEGRAM_ADMIN_CHAT_ID"),
		AdminIDs:    parseIDs(v.GetString("TELEGRAM_ADMIN_IDS")),
	}

	cfg.Jobs = JobsConfig{
		ExpireCron:       v.GetString("EXPIRE_CRON"),
		DailyProcessCron: v.GetString("DAILY_PROCESS_CRON"),
		JobTimeout:       parseDuration(v.GetString("JOB_TIMEOUT"), 2*time.Minute),
		NotifyWorkers:    v.GetInt("NOTIFY_WORKERS"),
		NotifyRetries:    v.GetInt("NOTIFY_RETRIES"),
	}

	cfg.Export = ExportConfig{PDFFontPath: v.GetString("EXPORT_PDF_FONT")}

	return cfg, nil
}

// Location resolves the configured timezone, falling back to a fixed UTC+7 zone.
func (c *Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil && c.Timezone != "" {
		return loc
	}
	return time.FixedZone("ICT", 7*60*60)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("TIMEZONE", "Asia/Bangkok")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "substitutions")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ROSTER_FILE", "./data/roster.yaml")
	v.SetDefault("LAST_RESORT_TEACHERS", "")
	v.SetDefault("PENDING_EXPIRE_AFTER", "168h")
	v.SetDefault("AI_ACCEPT_THRESHOLD", "0.85")
	v.SetDefault("FUZZY_MATCH_THRESHOLD", "0.85")
	v.SetDefault("HONORIFIC_PREFIXES", "ครู,อาจารย์,อ.,คุณ")

	v.SetDefault("NAME_MATCH_ENABLED", false)
	v.SetDefault("NAME_MATCH_BASE_URL", "https://openrouter.ai/api/v1")
	v.SetDefault("NAME_MATCH_API_KEY", "")
	v.SetDefault("NAME_MATCH_MODEL", "openai/gpt-4o-mini")
	v.SetDefault("NAME_MATCH_TIMEOUT", "10s")
	v.SetDefault("NAME_MATCH_MIN_CONFIDENCE", "0.60")
	v.SetDefault("NAME_MATCH_CACHE_TTL", "24h")

	v.SetDefault("TELEGRAM_BOT_ENABLED", false)
	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("TELEGRAM_ADMIN_CHAT_ID", 0)
	v.SetDefault("TELEGRAM_ADMIN_IDS", "")

	v.SetDefault("EXPIRE_CRON", "0 23 * * *")
	v.SetDefault("DAILY_PROCESS_CRON", "")
	v.SetDefault("JOB_TIMEOUT", "2m")
	v.SetDefault("NOTIFY_WORKERS", 1)
	v.SetDefault("NOTIFY_RETRIES", 3)

	v.SetDefault("EXPORT_PDF_FONT", "")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func parseFloat(raw string, fallback float64) float64 {
	if raw == "" {
		return fallback
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || f < 0 || f > 1 {
		return fallback
	}

	return f
}

func parseIDs(raw string) []int64 {
	parts := splitAndTrim(raw)
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
