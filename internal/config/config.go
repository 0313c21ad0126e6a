package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"tarpaulin/backend/internal/money"
)

type Config struct {
	Port                     string
	AllowedOrigin            string
	DatabaseURL              string
	RedisAddr                string
	RedisPassword            string
	RedisDB                  int
	AuthSecret               string
	AccessTokenTTLMinutes    int
	BusinessTimezone         string
	WeekStart                string
	AdminRoleName            string
	DashboardCacheTTLSeconds int
	SyncLockTTLSeconds       int
	LogLevel                 string
	AssistEndpoint           string
	AssistAPIKey             string
	AssistModel              string
	BillPhotoDir             string
	GCSBucket                string
	GCSCredentialsJSON       string
	BootstrapAdminEmail      string
	BootstrapAdminPassword   string
}

// Load reads the environment, after filling it from a .env file in the
// working directory when one exists. Variables already set win over .env.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := Config{
		Port:                     getEnv("PORT", "8080"),
		AllowedOrigin:            getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  redisDB,
		AuthSecret:               strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:    positiveInt("ACCESS_TOKEN_TTL_MINUTES", 480),
		BusinessTimezone:         getEnv("BUSINESS_TIMEZONE", "Asia/Kolkata"),
		WeekStart:                getEnv("WEEK_START", "sunday"),
		AdminRoleName:            getEnv("ADMIN_ROLE_NAME", "Admin"),
		DashboardCacheTTLSeconds: positiveInt("DASHBOARD_CACHE_TTL_SECONDS", 30),
		SyncLockTTLSeconds:       positiveInt("SYNC_LOCK_TTL_SECONDS", 120),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		AssistEndpoint:           strings.TrimSpace(os.Getenv("ASSIST_ENDPOINT")),
		AssistAPIKey:             strings.TrimSpace(os.Getenv("ASSIST_API_KEY")),
		AssistModel:              os.Getenv("ASSIST_MODEL"),
		BillPhotoDir:             getEnv("BILL_PHOTO_DIR", "./data"),
		GCSBucket:                strings.TrimSpace(os.Getenv("GCS_BUCKET")),
		GCSCredentialsJSON:       os.Getenv("GCS_CREDENTIALS_JSON"),
		BootstrapAdminEmail:      strings.TrimSpace(os.Getenv("BOOTSTRAP_ADMIN_EMAIL")),
		BootstrapAdminPassword:   os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return nil, fmt.Errorf("BUSINESS_TIMEZONE %q: %w", c.BusinessTimezone, err)
	}
	return loc, nil
}

func (c Config) FirstWeekday() (time.Weekday, error) {
	day, err := money.ParseWeekday(c.WeekStart)
	if err != nil {
		return time.Sunday, fmt.Errorf("WEEK_START: %w", err)
	}
	return day, nil
}

func (c Config) DashboardTTL() time.Duration {
	return time.Duration(c.DashboardCacheTTLSeconds) * time.Second
}

func (c Config) SyncLockTTL() time.Duration {
	return time.Duration(c.SyncLockTTLSeconds) * time.Second
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func positiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
