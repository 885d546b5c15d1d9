// Package config exposes process settings. Every getter reads its
// environment variable on each call, so a changed value is picked up by the
// next caller without a restart.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const envPrefix = "GITWATCH_"

// IsDev reports whether the process runs in development mode.
func IsDev() bool {
	return strings.EqualFold(os.Getenv(envPrefix+"ENV"), "dev")
}

// LogLevel is a zap level name, or empty for the mode default.
func LogLevel() string {
	return os.Getenv(envPrefix + "LOG_LEVEL")
}

type server struct{}

// Server holds HTTP bridge settings.
var Server server

func (server) Port() int64 {
	return envInt("PORT", 8080)
}

func (server) CorsAllowedOrigins() []string {
	return envList("CORS_ORIGINS", []string{"*"})
}

type watch struct{}

// Watch holds repository polling settings.
var Watch watch

// PollPeriod is how often repositories are checked for new commits.
// Zero disables polling and fetching.
func (watch) PollPeriod() time.Duration {
	return time.Duration(envInt("POLL_PERIOD", 120)) * time.Second
}

// MaxCommitsAtOnce caps how many commits are shown per repository per burst.
func (watch) MaxCommitsAtOnce() int64 {
	return envInt("MAX_COMMITS_AT_ONCE", 5)
}

// SnarfEnabled turns on replies to commit ids seen in channel chatter.
func (watch) SnarfEnabled() bool {
	return envBool("ENABLE_SNARF", true)
}

func (watch) RepoDir() string {
	return envString("REPO_DIR", "git_repositories")
}

func (watch) ConfigFile() string {
	return envString("CONFIG_FILE", "git.toml")
}

// FetchTimeout bounds a single fetch against a remote.
func (watch) FetchTimeout() time.Duration {
	return time.Duration(envInt("FETCH_TIMEOUT", 300)) * time.Second
}

type database struct{}

// Database holds the optional cursor persistence settings.
var Database database

// Dsn is empty when persistence is disabled.
func (database) Dsn() string {
	return os.Getenv(envPrefix + "DATABASE_DSN")
}

type chat struct{}

// Chat holds outbound delivery settings.
var Chat chat

// WebhookURL receives one POST per outbound line. Empty means lines are
// only logged.
func (chat) WebhookURL() string {
	return os.Getenv(envPrefix + "WEBHOOK_URL")
}

func (chat) Connection() string {
	return envString("CONNECTION", "default")
}

// Channels are joined on startup for the default connection.
func (chat) Channels() []string {
	return envList("CHANNELS", nil)
}

// Settings is a validated snapshot of the numeric settings.
type Settings struct {
	Port             int64  `validate:"gt=0,lte=65535"`
	PollPeriod       int64  `validate:"gte=0"`
	MaxCommitsAtOnce int64  `validate:"gte=0"`
	FetchTimeout     int64  `validate:"gt=0"`
	RepoDir          string `validate:"required"`
	ConfigFile       string `validate:"required"`
	WebhookURL       string `validate:"omitempty,url"`
}

// Validate parses every setting strictly and checks the result. Getters fall
// back to defaults on malformed input; Validate is what reports it.
func Validate() error {
	var s Settings
	var err error

	ints := []struct {
		key string
		dst *int64
		def int64
	}{
		{"PORT", &s.Port, 8080},
		{"POLL_PERIOD", &s.PollPeriod, 120},
		{"MAX_COMMITS_AT_ONCE", &s.MaxCommitsAtOnce, 5},
		{"FETCH_TIMEOUT", &s.FetchTimeout, 300},
	}
	for _, i := range ints {
		*i.dst = i.def
		v, ok := os.LookupEnv(envPrefix + i.key)
		if !ok || v == "" {
			continue
		}
		if *i.dst, err = strconv.ParseInt(strings.TrimSpace(v), 10, 64); err != nil {
			return fmt.Errorf("%s%s has invalid value %q: %w", envPrefix, i.key, v, err)
		}
	}

	if v, ok := os.LookupEnv(envPrefix + "ENABLE_SNARF"); ok && v != "" {
		if _, err := strconv.ParseBool(v); err != nil {
			return fmt.Errorf("%sENABLE_SNARF has invalid value %q: %w", envPrefix, v, err)
		}
	}

	s.RepoDir = Watch.RepoDir()
	s.ConfigFile = Watch.ConfigFile()
	s.WebhookURL = Chat.WebhookURL()

	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int64) int64 {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envList(key string, def []string) []string {
	v := os.Getenv(envPrefix + key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' }) {
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
