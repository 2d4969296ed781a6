package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/pricing"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Environment   string
	LogLevel      string
	DBDSN         string
	HTTPAddr      string
	TelegramToken string

	PaymentSecret      string
	PaymentGatewayURL  string
	PaymentCallbackURL string
	PaymentResultURL   string

	Pricing pricing.Config

	RescheduleDeadline      time.Duration
	MaxReschedulePerLesson  int
	PackageGraceDays        int
	ReleaseSlotOnReschedule bool

	NotifyTimeout          time.Duration
	ReconciliationInterval time.Duration
}

const defaultCommissionTiers = "0-49:0.25,50-199:0.20,200-:0.15"

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	return FromEnv(os.Getenv)
}

// FromEnv собирает конфиг из функции чтения переменных окружения
func FromEnv(getenv func(string) string) (*Config, error) {
	env := envReader{getenv: getenv}

	cfg := &Config{
		Environment:        env.getString("ENV", "development"),
		LogLevel:           env.getString("LOG_LEVEL", ""),
		DBDSN:              env.getString("DB_DSN", ""),
		HTTPAddr:           env.getString("HTTP_ADDR", ":8080"),
		TelegramToken:      env.getString("TELEGRAM_TOKEN", ""),
		PaymentSecret:      env.getString("PAYMENT_SECRET", ""),
		PaymentGatewayURL:  env.getString("PAYMENT_GATEWAY_URL", "https://pay.example.com/checkout"),
		PaymentCallbackURL: env.getString("PAYMENT_CALLBACK_URL", "http://localhost:8080/payments/package/callback"),
		PaymentResultURL:   env.getString("PAYMENT_RESULT_URL", "/payment/result"),

		RescheduleDeadline:      time.Duration(env.getInt("RESCHEDULE_DEADLINE_HOURS", 24)) * time.Hour,
		MaxReschedulePerLesson:  env.getInt("MAX_RESCHEDULE_PER_LESSON", 2),
		PackageGraceDays:        env.getInt("PACKAGE_GRACE_DAYS", 30),
		ReleaseSlotOnReschedule: env.getBool("RELEASE_SLOT_ON_RESCHEDULE", true),

		NotifyTimeout:          env.getDuration("NOTIFY_TIMEOUT", 10*time.Second),
		ReconciliationInterval: env.getDuration("RECONCILIATION_INTERVAL", 5*time.Minute),
	}

	tiers, err := ParseTiers(env.getString("COMMISSION_TIERS", defaultCommissionTiers))
	if err != nil {
		env.errs = append(env.errs, fmt.Errorf("COMMISSION_TIERS: %w", err))
	}
	cfg.Pricing = pricing.Config{
		CommissionTiers:   tiers,
		StopajRate:        env.getDecimal("STOPAJ_RATE", "0.20"),
		VATRate:           env.getDecimal("VAT_RATE", "0.20"),
		RoundingIncrement: env.getDecimal("PRICE_ROUNDING", "50"),
	}

	if len(env.errs) > 0 {
		return nil, env.errs[0]
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет обязательные поля и границы значений
func (c *Config) Validate() error {
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is required but not set")
	}
	if c.PaymentSecret == "" {
		return fmt.Errorf("PAYMENT_SECRET is required but not set")
	}
	if c.RescheduleDeadline < 0 {
		return fmt.Errorf("RESCHEDULE_DEADLINE_HOURS must not be negative")
	}
	if c.MaxReschedulePerLesson < 0 {
		return fmt.Errorf("MAX_RESCHEDULE_PER_LESSON must not be negative")
	}
	if c.PackageGraceDays < 0 {
		return fmt.Errorf("PACKAGE_GRACE_DAYS must not be negative")
	}
	if c.NotifyTimeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be positive")
	}
	if c.ReconciliationInterval <= 0 {
		return fmt.Errorf("RECONCILIATION_INTERVAL must be positive")
	}
	if err := c.Pricing.Validate(); err != nil {
		return fmt.Errorf("pricing: %w", err)
	}
	return nil
}

// IsProduction возвращает true для боевого окружения
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ParseTiers разбирает уровни комиссии вида "0-49:0.25,50-199:0.20,200-:0.15".
// Пустая верхняя граница означает "без ограничения".
func ParseTiers(raw string) ([]pricing.Tier, error) {
	var tiers []pricing.Tier

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		bounds, rate, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("tier %q: missing rate", part)
		}
		minRaw, maxRaw, ok := strings.Cut(bounds, "-")
		if !ok {
			return nil, fmt.Errorf("tier %q: missing range", part)
		}

		tier := pricing.Tier{MaxLessons: -1}

		minLessons, err := strconv.Atoi(strings.TrimSpace(minRaw))
		if err != nil {
			return nil, fmt.Errorf("tier %q: bad lower bound: %w", part, err)
		}
		tier.MinLessons = minLessons

		if maxRaw = strings.TrimSpace(maxRaw); maxRaw != "" {
			maxLessons, err := strconv.Atoi(maxRaw)
			if err != nil {
				return nil, fmt.Errorf("tier %q: bad upper bound: %w", part, err)
			}
			tier.MaxLessons = maxLessons
		}

		tier.Rate, err = decimal.NewFromString(strings.TrimSpace(rate))
		if err != nil {
			return nil, fmt.Errorf("tier %q: bad rate: %w", part, err)
		}

		tiers = append(tiers, tier)
	}

	if len(tiers) == 0 {
		return nil, fmt.Errorf("no tiers")
	}

	return tiers, nil
}

type envReader struct {
	getenv func(string) string
	errs   []error
}

func (e *envReader) getString(key, fallback string) string {
	if v := strings.TrimSpace(e.getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (e *envReader) getInt(key string, fallback int) int {
	raw := e.getString(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func (e *envReader) getBool(key string, fallback bool) bool {
	raw := e.getString(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func (e *envReader) getDuration(key string, fallback time.Duration) time.Duration {
	raw := e.getString(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return v
}

func (e *envReader) getDecimal(key, fallback string) decimal.Decimal {
	raw := e.getString(key, fallback)
	v, err := decimal.NewFromString(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return decimal.Zero
	}
	return v
}
