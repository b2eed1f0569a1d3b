package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/bher20/avoidedcost/internal/calc"
	"github.com/bher20/avoidedcost/internal/notification"
)

type Config struct {
	DBDriver           string `yaml:"db_driver"`
	DBDSN              string `yaml:"db_dsn"`
	AutoMigrate        bool   `yaml:"auto_migrate"`
	Listen             string `yaml:"listen"`
	LogLevel           string `yaml:"log_level"`
	LogFormat          string `yaml:"log_format"`
	Concurrency        int    `yaml:"concurrency"`
	ContinueOnError    bool   `yaml:"continue_on_error"`
	JoinOnValueCurve   bool   `yaml:"join_on_value_curve"`
	ThermsProfilesFile string `yaml:"therms_profiles_file"`
	WorkerSchedule     string `yaml:"worker_schedule"`
	AuthEnabled        bool   `yaml:"auth_enabled"`
	AlertWebhookURL    string `yaml:"alert_webhook_url"`
	AlertWebhookType   string `yaml:"alert_webhook_type"`
	AlertMinFailures   int    `yaml:"alert_min_failures"`

	Email notification.Config `yaml:"email"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		DBDriver:         "sqlite",
		DBDSN:            "avoidedcost.db",
		AutoMigrate:      true,
		Listen:           ":8000",
		LogLevel:         "info",
		LogFormat:        "text",
		Concurrency:      1,
		WorkerSchedule:   "@daily",
		AlertMinFailures: 1,
	}
}

// FromEnv builds a Config from environment variables, with sane defaults.
func FromEnv() Config {
	c := Default()
	c.applyEnv()
	return c
}

// Load reads an optional YAML file over the defaults, then applies the
// environment on top.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("config: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &c); err != nil {
			return c, fmt.Errorf("config %s: %w", path, err)
		}
	}
	c.applyEnv()
	return c, nil
}

func (c *Config) applyEnv() {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("config: ignoring invalid boolean", "key", key, "value", v)
			return
		}
		*dst = b
	}

	str("AVOIDEDCOST_DB_DRIVER", &c.DBDriver)
	str("AVOIDEDCOST_DB_DSN", &c.DBDSN)
	boolean("AVOIDEDCOST_AUTO_MIGRATE", &c.AutoMigrate)
	str("AVOIDEDCOST_LISTEN", &c.Listen)
	str("AVOIDEDCOST_LOG_LEVEL", &c.LogLevel)
	str("AVOIDEDCOST_LOG_FORMAT", &c.LogFormat)
	if v := os.Getenv("AVOIDEDCOST_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			slog.Warn("config: ignoring invalid concurrency", "value", v)
		} else {
			c.Concurrency = n
		}
	}
	boolean("AVOIDEDCOST_CONTINUE_ON_ERROR", &c.ContinueOnError)
	boolean("AVOIDEDCOST_JOIN_ON_VALUE_CURVE", &c.JoinOnValueCurve)
	str("AVOIDEDCOST_THERMS_PROFILES_FILE", &c.ThermsProfilesFile)
	str("AVOIDEDCOST_WORKER_SCHEDULE", &c.WorkerSchedule)
	boolean("AVOIDEDCOST_AUTH_ENABLED", &c.AuthEnabled)
	str("AVOIDEDCOST_ALERT_WEBHOOK_URL", &c.AlertWebhookURL)
	str("AVOIDEDCOST_ALERT_WEBHOOK_TYPE", &c.AlertWebhookType)
	if v := os.Getenv("AVOIDEDCOST_ALERT_MIN_FAILURES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			slog.Warn("config: ignoring invalid alert threshold", "value", v)
		} else {
			c.AlertMinFailures = n
		}
	}

	str("AVOIDEDCOST_EMAIL_PROVIDER", &c.Email.Provider)
	str("AVOIDEDCOST_EMAIL_FROM", &c.Email.From)
	if v := os.Getenv("AVOIDEDCOST_EMAIL_TO"); v != "" {
		c.Email.To = nil
		for _, to := range strings.Split(v, ",") {
			if to = strings.TrimSpace(to); to != "" {
				c.Email.To = append(c.Email.To, to)
			}
		}
	}
	str("AVOIDEDCOST_SMTP_HOST", &c.Email.Host)
	if v := os.Getenv("AVOIDEDCOST_SMTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Email.Port = n
		} else {
			slog.Warn("config: ignoring invalid smtp port", "value", v)
		}
	}
	str("AVOIDEDCOST_SMTP_USERNAME", &c.Email.Username)
	str("AVOIDEDCOST_SMTP_PASSWORD", &c.Email.Password)
	str("AVOIDEDCOST_SMTP_ENCRYPTION", &c.Email.Encryption)
	str("AVOIDEDCOST_SENDGRID_API_KEY", &c.Email.APIKey)
}

// ThermsAdjustments returns the registered utility table with the overrides
// from ThermsProfilesFile laid over it.
func (c Config) ThermsAdjustments() (calc.ThermsAdjustments, error) {
	base := calc.DefaultThermsAdjustments()
	if c.ThermsProfilesFile == "" {
		return base, nil
	}
	o, err := LoadThermsProfiles(c.ThermsProfilesFile)
	if err != nil {
		return nil, err
	}
	return base.Merge(o), nil
}

// LoadThermsProfiles reads a YAML map of utility to profile to adjustment:
//
//	PGE:
//	  annual: 0.9427
//	  summer: 0.8293
func LoadThermsProfiles(path string) (calc.ThermsAdjustments, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("therms profiles: %w", err)
	}
	var raw map[string]map[string]float64
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("therms profiles %s: %w", path, err)
	}
	out := make(calc.ThermsAdjustments, len(raw))
	for util, profiles := range raw {
		m := make(map[string]float64, len(profiles))
		for p, v := range profiles {
			p = strings.ToLower(strings.TrimSpace(p))
			switch p {
			case calc.ProfileAnnual, calc.ProfileSummer, calc.ProfileWinter:
			default:
				return nil, fmt.Errorf("therms profiles %s: %w %q for %s", path, calc.ErrUnknownThermsProfile, p, util)
			}
			m[p] = v
		}
		out[calc.NormalizeUtility(util)] = m
	}
	return out, nil
}
