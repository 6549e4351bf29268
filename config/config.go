/*
config.go - Process configuration

PURPOSE:
  Loads settings shared by cmd/server and cmd/adm.

LOAD ORDER (later wins):
  1. Defaults (Default())
  2. YAML file: $HABITVAULT_CONFIG_FILE, else ./config.yaml if present
  3. Environment variables derived from yaml tags, nested with "_":
       server.port               -> SERVER_PORT
       database.path             -> DATABASE_PATH
       auth.jwt_secret           -> AUTH_JWT_SECRET
       checkin.timezone          -> CHECKIN_TIMEZONE
       checkin.streak_today_policy -> CHECKIN_STREAK_TODAY_POLICY
  4. Command-line flags (applied by the caller)

EXAMPLE config.yaml:
  server:
    port: 8080
    cors_origins: ["https://app.example.com"]
  database:
    path: habitvault.db
  auth:
    jwt_secret: change-me
  checkin:
    timezone: Europe/Paris
    streak_today_policy: grace
  reminders:
    enabled: true
    interval_seconds: 60

SEE ALSO:
  - cmd/server/main.go: Flag overrides
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/warp/habit-vault/checkin"
	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable holding the config file path.
const FileEnv = "HABITVAULT_CONFIG_FILE"

const defaultFile = "config.yaml"

type Config struct {
	Server    ServerConfig   `yaml:"server"`
	Database  DatabaseConfig `yaml:"database"`
	Auth      AuthConfig     `yaml:"auth"`
	Checkin   CheckinConfig  `yaml:"checkin"`
	Reminders ReminderConfig `yaml:"reminders"`
	Log       LogConfig      `yaml:"log"`
	Tracing   TracingConfig  `yaml:"tracing"`
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	// Path of the SQLite file; ":memory:" for a throwaway database.
	Path string `yaml:"path"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type CheckinConfig struct {
	// Timezone is an IANA name ("Europe/Paris") or "Local". It decides
	// which calendar day "today" is.
	Timezone          string `yaml:"timezone"`
	StreakTodayPolicy string `yaml:"streak_today_policy"`
}

type ReminderConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Server:    ServerConfig{Port: 8080},
		Database:  DatabaseConfig{Path: "habitvault.db"},
		Auth:      AuthConfig{Issuer: "habit-vault"},
		Checkin:   CheckinConfig{Timezone: "Local", StreakTodayPolicy: string(checkin.TodayGrace)},
		Reminders: ReminderConfig{Enabled: true, IntervalSeconds: 60},
		Log:       LogConfig{Level: "info"},
		Tracing:   TracingConfig{ServiceName: "habit-vault"},
	}
}

// Load reads path (or the FileEnv/default file when path is empty) over the
// defaults, then applies environment overrides. A missing default file is
// not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		if env := os.Getenv(FileEnv); env != "" {
			path, explicit = env, true
		} else {
			path = defaultFile
		}
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// defaults + env only
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	overrideStructFromEnv(&cfg, "")
	return &cfg, nil
}

// Validate checks values the process cannot start without.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Database.Path == "" {
		problems = append(problems, "database.path is required")
	}
	if _, err := c.Location(); err != nil {
		problems = append(problems, err.Error())
	}
	switch checkin.TodayPolicy(c.Checkin.StreakTodayPolicy) {
	case checkin.TodayGrace, checkin.TodayStrict:
	default:
		problems = append(problems, fmt.Sprintf("checkin.streak_today_policy %q must be grace or strict", c.Checkin.StreakTodayPolicy))
	}
	if c.Reminders.Enabled && c.Reminders.IntervalSeconds <= 0 {
		problems = append(problems, "reminders.interval_seconds must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Location resolves the check-in timezone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Checkin.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Checkin.Timezone)
	if err != nil {
		return nil, fmt.Errorf("checkin.timezone %q: %w", c.Checkin.Timezone, err)
	}
	return loc, nil
}

func (c *Config) StreakOptions() checkin.StreakOptions {
	return checkin.StreakOptions{TodayPolicy: checkin.TodayPolicy(c.Checkin.StreakTodayPolicy)}
}

func (c *Config) ReminderInterval() time.Duration {
	return time.Duration(c.Reminders.IntervalSeconds) * time.Second
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// overrideStructFromEnv walks v's yaml-tagged fields and replaces each with
// the matching environment variable when it is set. Unparseable values are
// ignored.
func overrideStructFromEnv(v any, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		if !field.CanSet() {
			continue
		}

		tag, _, _ := strings.Cut(typ.Field(i).Tag.Get("yaml"), ",")
		if tag == "" || tag == "-" {
			continue
		}
		key := strings.ToUpper(strings.ReplaceAll(tag, "-", "_"))
		if prefix != "" {
			key = prefix + "_" + key
		}

		if field.Kind() == reflect.Struct {
			overrideStructFromEnv(field.Addr().Interface(), key)
			continue
		}

		env, ok := os.LookupEnv(key)
		if !ok || env == "" {
			continue
		}
		switch field.Kind() {
		case reflect.String:
			field.SetString(env)
		case reflect.Int, reflect.Int64:
			if n, err := strconv.ParseInt(env, 10, 64); err == nil {
				field.SetInt(n)
			}
		case reflect.Bool:
			if b, err := strconv.ParseBool(env); err == nil {
				field.SetBool(b)
			}
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				parts := strings.Split(env, ",")
				for j := range parts {
					parts[j] = strings.TrimSpace(parts[j])
				}
				field.Set(reflect.ValueOf(parts))
			}
		}
	}
}
