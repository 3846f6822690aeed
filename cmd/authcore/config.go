package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/joho/godotenv"
)

type serviceConfig struct {
	HTTPAddr    string
	LogLevel    string
	LogDev      bool
	DatabaseURL string
	AutoMigrate bool
	NodeID      int64

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	UserServiceURL string
	HostServiceURL string
	KakaoUserInfo  string
	BiznoEndpoint  string
	BiznoAPIKey    string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPTimeout  time.Duration

	OTelMetrics bool

	Engine authcore.Config
}

func loadConfig() (serviceConfig, error) {
	_ = godotenv.Load()

	cfg := serviceConfig{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogDev:      getBool("LOG_DEV", false),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		AutoMigrate: getBool("DB_AUTO_MIGRATE", false),
		NodeID:      int64(getInt("SNOWFLAKE_NODE", 1)),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),

		UserServiceURL: getEnv("USER_SERVICE_URL", "http://user-service"),
		HostServiceURL: getEnv("HOST_SERVICE_URL", "http://host-service"),
		KakaoUserInfo:  os.Getenv("KAKAO_USER_INFO_URI"),
		BiznoEndpoint:  os.Getenv("BIZNO_ENDPOINT"),
		BiznoAPIKey:    os.Getenv("BIZNO_API_KEY"),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     getEnv("SMTP_FROM", "no-reply@parkmate.local"),
		SMTPTimeout:  getDuration("SMTP_TIMEOUT", 10*time.Second),

		OTelMetrics: getBool("METRICS_OTEL", false),
	}

	if cfg.DatabaseURL == "" {
		return serviceConfig{}, fmt.Errorf("DATABASE_URL is required")
	}

	engine := authcore.DefaultConfig()
	engine.JWT.SigningKey = []byte(os.Getenv("JWT_SIGNING_KEY"))
	engine.JWT.KeyID = os.Getenv("JWT_KEY_ID")
	engine.JWT.Issuer = getEnv("JWT_ISSUER", "parkmate-auth")
	engine.JWT.Audience = os.Getenv("JWT_AUDIENCE")
	engine.JWT.AccessTTL = getDuration("ACCESS_TOKEN_TTL", engine.JWT.AccessTTL)
	engine.JWT.RefreshTTL = getDuration("REFRESH_TOKEN_TTL", engine.JWT.RefreshTTL)
	engine.Login.MaxFailures = getInt("LOGIN_MAX_FAILURES", engine.Login.MaxFailures)
	engine.Verification.CodeTTL = getDuration("VERIFICATION_CODE_TTL", engine.Verification.CodeTTL)
	engine.Password.AcceptLegacyBcrypt = getBool("ACCEPT_LEGACY_BCRYPT", engine.Password.AcceptLegacyBcrypt)
	engine.Audit.Enabled = getBool("AUDIT_ENABLED", false)
	engine.Metrics.Enabled = getBool("METRICS_ENABLED", true)
	engine.Metrics.EnableLatencyHistograms = getBool("METRICS_LATENCY", false)

	if err := engine.Validate(); err != nil {
		return serviceConfig{}, fmt.Errorf("engine config: %w", err)
	}
	cfg.Engine = engine
	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}
