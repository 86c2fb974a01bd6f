package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"roomshare/internal/domain"
)

const (
	BackendSheets = "sheets"
	BackendMySQL  = "mysql"
	BackendMemory = "memory"
)

type Tabs struct {
	Users       string
	Properties  string
	Favorites   string
	Chat        string
	Ratings     string
	Supermarket string
	Convenience string
	Bank        string
	Cafe        string
}

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	Backend         string
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsPath string
	SheetsBase      string
	SheetsRPS       int
	RemoteTimeout   time.Duration
	MySQLDSN        string

	RedisAddr string
	RedisDB   int
	RedisPass string
	CacheTTL  time.Duration

	NotifyURL   string
	NotifyToken string

	MapsKey  string
	MapsBase string

	JWTSecret  string
	SessionTTL time.Duration

	Tabs Tabs
}

// Load reads .env (if any) and the process environment. Missing required
// settings come back as *domain.ConfigError.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using process environment")
	}
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),

		Backend:         strings.ToLower(env("STORE_BACKEND", BackendSheets)),
		SpreadsheetID:   env("SPREADSHEET_DB_ID", ""),
		CredentialsJSON: env("GOOGLE_CREDENTIALS_JSON", ""),
		CredentialsPath: env("PRIVATE_KEY_PATH", ""),
		SheetsBase:      env("SHEETS_BASE_URL", "https://sheets.googleapis.com/v4"),
		SheetsRPS:       atoi("SHEETS_RPS", 5),
		RemoteTimeout:   time.Duration(atoi("REMOTE_TIMEOUT_SECONDS", 20)) * time.Second,
		MySQLDSN:        env("MYSQL_DSN", "root:root@tcp(localhost:3306)/roomshare?parseTime=true&charset=utf8mb4&loc=UTC"),

		RedisAddr: env("REDIS_ADDR", ""),
		RedisPass: env("REDIS_PASSWORD", ""),
		RedisDB:   atoi("REDIS_DB", 0),
		CacheTTL:  time.Duration(atoi("CACHE_TTL_SECONDS", 600)) * time.Second,

		NotifyURL:   env("NOTIFY_URL", "https://notify-api.line.me/api/notify"),
		NotifyToken: env("LINE_NOTIFY_TOKEN", ""),

		MapsKey:  env("MAPS_API_KEY", ""),
		MapsBase: env("MAPS_BASE_URL", "https://maps.googleapis.com/maps/api"),

		JWTSecret:  env("JWT_SECRET", ""),
		SessionTTL: time.Duration(atoi("SESSION_TTL_HOURS", 24)) * time.Hour,

		Tabs: Tabs{
			Users:       env("TAB_USERS", "ユーザーDB"),
			Properties:  env("TAB_PROPERTIES", "物件DB"),
			Favorites:   env("TAB_FAVORITES", "お気に入りDB"),
			Chat:        env("TAB_CHAT", "チャットデータDB"),
			Ratings:     env("TAB_RATINGS", "評価DB"),
			Supermarket: env("TAB_SUPERMARKETS", "スーパーDB"),
			Convenience: env("TAB_CONVENIENCE", "コンビニDB"),
			Bank:        env("TAB_BANKS", "銀行DB"),
			Cafe:        env("TAB_CAFES", "カフェDB"),
		},
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	if c.MapsKey == "" {
		log.Info().Msg("MAPS_API_KEY is empty; distance lookups disabled")
	}
	return c, nil
}

// Validate checks the settings that have no usable default.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendSheets:
		if c.SpreadsheetID == "" {
			return &domain.ConfigError{Field: "SPREADSHEET_DB_ID"}
		}
		if c.CredentialsJSON == "" && c.CredentialsPath == "" {
			return &domain.ConfigError{Field: "GOOGLE_CREDENTIALS_JSON or PRIVATE_KEY_PATH"}
		}
	case BackendMySQL:
		if c.MySQLDSN == "" {
			return &domain.ConfigError{Field: "MYSQL_DSN"}
		}
	case BackendMemory:
	default:
		return &domain.ConfigError{Field: "STORE_BACKEND", Err: errUnknownBackend(c.Backend)}
	}
	if c.NotifyToken == "" {
		return &domain.ConfigError{Field: "LINE_NOTIFY_TOKEN"}
	}
	if c.SheetsRPS <= 0 {
		return &domain.ConfigError{Field: "SHEETS_RPS", Err: errMustBePositive}
	}
	if c.RemoteTimeout <= 0 {
		return &domain.ConfigError{Field: "REMOTE_TIMEOUT_SECONDS", Err: errMustBePositive}
	}
	return nil
}

func env(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
