package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`
	APIKey   string `mapstructure:"API_KEY"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RedisURL    string `mapstructure:"REDIS_URL"`
	SessionTTL  string `mapstructure:"SESSION_TTL"`

	RecaptchaV3Secret       string  `mapstructure:"RECAPTCHA_V3_SECRET"`
	RecaptchaV2Secret       string  `mapstructure:"RECAPTCHA_V2_SECRET"`
	RecaptchaVerifyURL      string  `mapstructure:"RECAPTCHA_VERIFY_URL"`
	RecaptchaScoreThreshold float64 `mapstructure:"RECAPTCHA_SCORE_THRESHOLD"`
	RecaptchaFallbackScore  float64 `mapstructure:"RECAPTCHA_FALLBACK_SCORE"`

	OTPAPIURL         string `mapstructure:"OTP_API_URL"`
	OTPAPIKey         string `mapstructure:"OTP_API_KEY"`
	OTPResendCooldown string `mapstructure:"OTP_RESEND_COOLDOWN"`
	OTPExpiry         string `mapstructure:"OTP_EXPIRY"`
	OTPBackendEnabled bool   `mapstructure:"OTP_BACKEND_ENABLED"`
	// OTPNotifier is one of log, whatsapp, sms
	OTPNotifier       string `mapstructure:"OTP_NOTIFIER"`
	WhatsAppStorePath string `mapstructure:"WHATSAPP_STORE_PATH"`
	SMSLocalAPIKey    string `mapstructure:"SMS_LOCAL_API_KEY"`
	SMSLocalBaseURL   string `mapstructure:"SMS_LOCAL_BASE_URL"`
	SMSLocalSender    string `mapstructure:"SMS_LOCAL_SENDER"`

	PartnersFile string `mapstructure:"PARTNERS_FILE"`
	SentryDSN    string `mapstructure:"SENTRY_DSN"`
}

// Load reads .env if present, then the environment. Env vars win over .env.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("API_KEY", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SESSION_TTL", "30m")
	v.SetDefault("RECAPTCHA_V3_SECRET", "")
	v.SetDefault("RECAPTCHA_V2_SECRET", "")
	v.SetDefault("RECAPTCHA_VERIFY_URL", "https://www.google.com/recaptcha/api/siteverify")
	v.SetDefault("RECAPTCHA_SCORE_THRESHOLD", 0.5)
	v.SetDefault("RECAPTCHA_FALLBACK_SCORE", 0.1)
	v.SetDefault("OTP_API_URL", "http://localhost:8080/otp-backend")
	v.SetDefault("OTP_API_KEY", "")
	v.SetDefault("OTP_RESEND_COOLDOWN", "30s")
	v.SetDefault("OTP_EXPIRY", "5m")
	v.SetDefault("OTP_BACKEND_ENABLED", true)
	v.SetDefault("OTP_NOTIFIER", "log")
	v.SetDefault("WHATSAPP_STORE_PATH", "whatsmeow.db")
	v.SetDefault("SMS_LOCAL_API_KEY", "")
	v.SetDefault("SMS_LOCAL_BASE_URL", "")
	v.SetDefault("SMS_LOCAL_SENDER", "")
	v.SetDefault("PARTNERS_FILE", "partners.yaml")
	v.SetDefault("SENTRY_DSN", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.RecaptchaScoreThreshold < 0 || c.RecaptchaScoreThreshold > 1 {
		return errors.New("config: RECAPTCHA_SCORE_THRESHOLD must be between 0 and 1")
	}
	if c.RecaptchaFallbackScore < 0 || c.RecaptchaFallbackScore > 1 {
		return errors.New("config: RECAPTCHA_FALLBACK_SCORE must be between 0 and 1")
	}
	c.OTPNotifier = strings.ToLower(strings.TrimSpace(c.OTPNotifier))
	switch c.OTPNotifier {
	case "log", "whatsapp":
	case "sms":
		if c.SMSLocalAPIKey == "" {
			return errors.New("config: SMS_LOCAL_API_KEY is required when OTP_NOTIFIER=sms")
		}
	default:
		return fmt.Errorf("config: unknown OTP_NOTIFIER %q", c.OTPNotifier)
	}
	if c.OTPNotifier == "log" && c.Env == "production" {
		return errors.New("config: OTP_NOTIFIER=log must not be used when APP_ENV=production")
	}
	return nil
}

func (c *Config) GetAPIKey() string {
	return c.APIKey
}

func (c *Config) GetHTTPAddr() string {
	return c.HTTPAddr
}

// SessionTTLDuration returns 30m if unset or invalid.
func (c *Config) SessionTTLDuration() time.Duration {
	return parseDuration(c.SessionTTL, 30*time.Minute)
}

// ResendCooldown returns 30s if unset or invalid.
func (c *Config) ResendCooldown() time.Duration {
	return parseDuration(c.OTPResendCooldown, 30*time.Second)
}

// OTPExpiryDuration returns 5m if unset or invalid.
func (c *Config) OTPExpiryDuration() time.Duration {
	return parseDuration(c.OTPExpiry, 5*time.Minute)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
