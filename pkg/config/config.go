package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultPortalBaseURL is the public appointment portal.
const DefaultPortalBaseURL = "https://ais.usvisa-info.com"

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv    string
	LogLevel  string
	LogFormat string

	// Portal
	PortalBaseURL     string
	PortalCountryCode string
	PortalScheduleID  string
	PortalUsername    string
	PortalPassword    string
	StepInterval      time.Duration
	BreakerFailures   int
	BreakerTimeout    time.Duration
	// PortalTimezone is the IANA zone slot times are reported in.
	PortalTimezone string
	// ProbeFirst reuses a restored session instead of signing in at startup.
	ProbeFirst bool

	// Search
	PrimaryFacilityID   string
	SecondaryFacilityID string
	TargetScheduleDate  string
	LeadTimeMonths      int
	WatchDateLimit      int

	// Loop
	RetryInterval      time.Duration
	ExceptionBackoff   time.Duration
	CooldownInterval   time.Duration
	MaxCycleExceptions int

	// Notifications
	SendGridAPIKey  string
	SendGridFrom    string
	NotifyEmailTo   string
	PushoverToken   string
	PushoverUser    string
	PushbulletToken string

	// Infrastructure
	RabbitMQURL string
	RedisURL    string
	// CookieEncryptionKey is a base64 32-byte key sealing cookies stored in Redis.
	CookieEncryptionKey string
	DatabaseURL         string
	DatabaseDriver      string
	SQLitePath          string

	// CalDAV
	CalDAVURL          string
	CalDAVUsername     string
	CalDAVPassword     string
	CalDAVCalendarPath string

	// HealthAddr serves /healthz, /readyz and /metrics. Empty disables the server.
	HealthAddr string
}

// PortalSettings is the portal session configuration.
type PortalSettings struct {
	BaseURL         string
	CountryCode     string
	ScheduleID      string
	Username        string
	Password        string
	StepInterval    time.Duration
	BreakerFailures int
	BreakerTimeout  time.Duration
}

// LoopSettings is the orchestrator loop configuration.
type LoopSettings struct {
	RetryInterval    time.Duration
	ExceptionBackoff time.Duration
	Cooldown         time.Duration
	MaxExceptions    int
}

// Load loads configuration from environment variables and an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	username := getEnv("PORTAL_USERNAME", "")
	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		PortalBaseURL:     strings.TrimRight(getEnv("PORTAL_BASE_URL", DefaultPortalBaseURL), "/"),
		PortalCountryCode: getEnv("PORTAL_COUNTRY_CODE", "en-ca"),
		PortalScheduleID:  getEnv("PORTAL_SCHEDULE_ID", ""),
		PortalUsername:    username,
		PortalPassword:    getEnv("PORTAL_PASSWORD", ""),
		StepInterval:      getDurationEnv("STEP_INTERVAL", 500*time.Millisecond),
		BreakerFailures:   getIntEnv("PORTAL_BREAKER_FAILURES", 5),
		BreakerTimeout:    getDurationEnv("PORTAL_BREAKER_TIMEOUT", time.Minute),
		PortalTimezone:    getEnv("PORTAL_TIMEZONE", "UTC"),
		ProbeFirst:        getBoolEnv("PROBE_FIRST", false),

		PrimaryFacilityID:   getEnv("PRIMARY_FACILITY_ID", ""),
		SecondaryFacilityID: getEnv("SECONDARY_FACILITY_ID", ""),
		TargetScheduleDate:  getEnv("TARGET_SCHEDULE_DATE", ""),
		LeadTimeMonths:      getIntEnv("LEAD_TIME_MONTHS", 1),
		WatchDateLimit:      getIntEnv("WATCH_DATE_LIMIT", 5),

		RetryInterval:      getDurationEnv("RETRY_INTERVAL", 10*time.Minute),
		ExceptionBackoff:   getDurationEnv("EXCEPTION_BACKOFF", 15*time.Minute),
		CooldownInterval:   getDurationEnv("COOLDOWN_INTERVAL", 30*time.Minute),
		MaxCycleExceptions: getIntEnv("MAX_CYCLE_EXCEPTIONS", 6),

		SendGridAPIKey:  getEnv("SENDGRID_API_KEY", ""),
		SendGridFrom:    getEnv("SENDGRID_FROM", ""),
		NotifyEmailTo:   getEnv("NOTIFY_EMAIL_TO", username),
		PushoverToken:   getEnv("PUSHOVER_TOKEN", ""),
		PushoverUser:    getEnv("PUSHOVER_USER", ""),
		PushbulletToken: getEnv("PUSHBULLET_TOKEN", ""),

		RabbitMQURL:         getEnv("RABBITMQ_URL", ""),
		RedisURL:            getEnv("REDIS_URL", ""),
		CookieEncryptionKey: getEnv("COOKIE_ENCRYPTION_KEY", ""),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DatabaseDriver:      getEnv("DATABASE_DRIVER", ""),
		SQLitePath:          getEnv("SQLITE_PATH", getDefaultSQLitePath()),

		CalDAVURL:          getEnv("CALDAV_URL", ""),
		CalDAVUsername:     getEnv("CALDAV_USERNAME", ""),
		CalDAVPassword:     getEnv("CALDAV_PASSWORD", ""),
		CalDAVCalendarPath: getEnv("CALDAV_CALENDAR_PATH", ""),

		HealthAddr: getEnv("HEALTH_ADDR", ""),
	}

	if cfg.SendGridFrom == "" {
		cfg.SendGridFrom = cfg.NotifyEmailTo
	}
	return cfg, nil
}

// Validate reports every missing or malformed required setting.
func (c *Config) Validate() error {
	var errs []error
	required := []struct {
		key   string
		value string
	}{
		{"PORTAL_USERNAME", c.PortalUsername},
		{"PORTAL_PASSWORD", c.PortalPassword},
		{"PORTAL_SCHEDULE_ID", c.PortalScheduleID},
		{"PRIMARY_FACILITY_ID", c.PrimaryFacilityID},
		{"TARGET_SCHEDULE_DATE", c.TargetScheduleDate},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.key))
		}
	}
	if c.TargetScheduleDate != "" {
		if _, err := time.Parse("2006-01-02", c.TargetScheduleDate); err != nil {
			errs = append(errs, fmt.Errorf("TARGET_SCHEDULE_DATE must be YYYY-MM-DD: %q", c.TargetScheduleDate))
		}
	}
	if c.MaxCycleExceptions < 0 {
		errs = append(errs, errors.New("MAX_CYCLE_EXCEPTIONS must not be negative"))
	}
	if _, err := time.LoadLocation(c.PortalTimezone); err != nil {
		errs = append(errs, fmt.Errorf("PORTAL_TIMEZONE is not a known time zone: %q", c.PortalTimezone))
	}
	if c.LeadTimeMonths < 0 {
		errs = append(errs, errors.New("LEAD_TIME_MONTHS must not be negative"))
	}
	return errors.Join(errs...)
}

// PortalSettings projects the portal session configuration.
func (c *Config) PortalSettings() PortalSettings {
	return PortalSettings{
		BaseURL:         c.PortalBaseURL,
		CountryCode:     c.PortalCountryCode,
		ScheduleID:      c.PortalScheduleID,
		Username:        c.PortalUsername,
		Password:        c.PortalPassword,
		StepInterval:    c.StepInterval,
		BreakerFailures: c.BreakerFailures,
		BreakerTimeout:  c.BreakerTimeout,
	}
}

// LoopSettings projects the orchestrator loop configuration.
func (c *Config) LoopSettings() LoopSettings {
	return LoopSettings{
		RetryInterval:    c.RetryInterval,
		ExceptionBackoff: c.ExceptionBackoff,
		Cooldown:         c.CooldownInterval,
		MaxExceptions:    c.MaxCycleExceptions,
	}
}

// EmailEnabled reports whether SendGrid delivery is configured.
func (c *Config) EmailEnabled() bool {
	return c.SendGridAPIKey != "" && c.NotifyEmailTo != ""
}

// PushoverEnabled reports whether Pushover delivery is configured.
func (c *Config) PushoverEnabled() bool {
	return c.PushoverToken != "" && c.PushoverUser != ""
}

// CalDAVEnabled reports whether booked appointments are exported. An empty
// calendar path discovers the first calendar of the account.
func (c *Config) CalDAVEnabled() bool {
	return c.CalDAVURL != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getDefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "slotwatch.db"
	}
	return home + "/.slotwatch/slotwatch.db"
}
