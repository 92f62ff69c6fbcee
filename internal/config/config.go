// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config builds the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	curllink "github.com/daishir0/api-curl-link"
	"github.com/daishir0/api-curl-link/storage"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Cache backends
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// ErrMissingAPIKey is returned by Validate when no credential is configured
var ErrMissingAPIKey = errors.New("CURLLINK_API_KEY is required")

// Config is the complete service configuration. It is built once at
// startup and passed to constructors.
type Config struct {
	APIKey         string
	AllowedMethods []string

	CacheDir       string
	CacheBackend   string
	CacheExpiry    time.Duration
	CacheRetention time.Duration

	FetchTimeout     time.Duration
	VerifyTLS        bool
	UserAgent        string
	Headers          http.Header
	MaxBodySize      int
	RespectRobotsTxt bool
	FetchLimits      []*curllink.LimitRule

	MCPEnabled bool
	Host       string
	Port       int

	LogLevel logrus.Level
	LogFile  string
}

// Default returns the configuration used when no variable is set.
func Default() *Config {
	return &Config{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		CacheDir:       "./cache",
		CacheBackend:   BackendJSON,
		CacheExpiry:    60 * time.Minute,
		CacheRetention: 1440 * time.Minute,
		FetchTimeout:   30 * time.Second,
		VerifyTLS:      true,
		UserAgent:      curllink.DefaultUserAgent,
		Headers:        http.Header{},
		MaxBodySize:    10 * 1024 * 1024,
		Host:           "0.0.0.0",
		Port:           8080,
		LogLevel:       logrus.InfoLevel,
	}
}

var envMap = map[string]func(*Config, string) error{
	"CURLLINK_API_KEY": func(c *Config, val string) error {
		c.APIKey = val
		return nil
	},
	"CURLLINK_ALLOWED_METHODS": func(c *Config, val string) error {
		var methods []string
		for _, m := range strings.Split(val, ",") {
			if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
				methods = append(methods, m)
			}
		}
		if len(methods) == 0 {
			return errors.New("no methods listed")
		}
		c.AllowedMethods = methods
		return nil
	},
	"CURLLINK_CACHE_DIR": func(c *Config, val string) error {
		c.CacheDir = val
		return nil
	},
	"CURLLINK_CACHE_BACKEND": func(c *Config, val string) error {
		val = strings.ToLower(val)
		if val != BackendJSON && val != BackendSQLite {
			return fmt.Errorf("unknown backend %q", val)
		}
		c.CacheBackend = val
		return nil
	},
	"CURLLINK_CACHE_EXPIRE_MINUTES": func(c *Config, val string) (err error) {
		c.CacheExpiry, err = parseMinutes(val)
		return err
	},
	"CURLLINK_CACHE_CLEANUP_MINUTES": func(c *Config, val string) (err error) {
		c.CacheRetention, err = parseMinutes(val)
		return err
	},
	"CURLLINK_FETCH_TIMEOUT_SECONDS": func(c *Config, val string) error {
		secs, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		c.FetchTimeout = time.Duration(secs) * time.Second
		return nil
	},
	"CURLLINK_VERIFY_TLS": func(c *Config, val string) (err error) {
		c.VerifyTLS, err = strconv.ParseBool(val)
		return err
	},
	"CURLLINK_USER_AGENT": func(c *Config, val string) error {
		c.UserAgent = val
		return nil
	},
	"CURLLINK_HEADERS": func(c *Config, val string) (err error) {
		c.Headers, err = ParseHeaders(val)
		return err
	},
	"CURLLINK_MAX_BODY_SIZE": func(c *Config, val string) (err error) {
		c.MaxBodySize, err = strconv.Atoi(val)
		return err
	},
	"CURLLINK_RESPECT_ROBOTS_TXT": func(c *Config, val string) (err error) {
		c.RespectRobotsTxt, err = strconv.ParseBool(val)
		return err
	},
	"CURLLINK_FETCH_LIMITS": func(c *Config, val string) (err error) {
		c.FetchLimits, err = curllink.ParseLimitRules(val)
		return err
	},
	"CURLLINK_MCP_ENABLED": func(c *Config, val string) (err error) {
		c.MCPEnabled, err = strconv.ParseBool(val)
		return err
	},
	"CURLLINK_HOST": func(c *Config, val string) error {
		c.Host = val
		return nil
	},
	"CURLLINK_PORT": func(c *Config, val string) (err error) {
		c.Port, err = strconv.Atoi(val)
		return err
	},
	"CURLLINK_LOG_FILE": func(c *Config, val string) error {
		c.LogFile = val
		return nil
	},
}

// LoadEnv loads .env.local and .env from the working directory when they
// exist. .env.local takes precedence over .env, and neither overrides a
// variable already set in the process environment.
func LoadEnv(logger logrus.FieldLogger) {
	loaded := make([]string, 0, 2)
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			logger.WithError(err).Warnf("Failed to load %s", file)
			continue
		}
		loaded = append(loaded, file)
	}
	if len(loaded) == 0 {
		logger.Debug("No local env files loaded; relying on process environment")
		return
	}
	logger.Debugf("Loaded env files: %s", strings.Join(loaded, ", "))
}

// FromEnv builds a Config from Default and the CURLLINK_* variables, then
// validates it.
func FromEnv() (*Config, error) {
	c := Default()
	var errs []error
	for name, apply := range envMap {
		val, ok := os.LookupEnv(name)
		if !ok || strings.TrimSpace(val) == "" {
			continue
		}
		if err := apply(c, strings.TrimSpace(val)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	c.LogLevel = GetLogLevel()
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.APIKey == "":
		return ErrMissingAPIKey
	case c.FetchTimeout <= 0:
		return errors.New("fetch timeout must be positive")
	case c.CacheExpiry < 0 || c.CacheRetention < 0:
		return errors.New("cache durations must not be negative")
	case c.MaxBodySize < 0:
		return errors.New("max body size must not be negative")
	case c.Port < 0 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.CacheDir == "":
		return errors.New("cache directory must be set")
	}
	return nil
}

// Warnings lists settings that are valid but probably unintended.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.CacheRetention < c.CacheExpiry {
		warnings = append(warnings, fmt.Sprintf(
			"cache retention (%s) is shorter than expiry (%s); entries are swept before they go stale",
			c.CacheRetention, c.CacheExpiry))
	}
	if !c.VerifyTLS {
		warnings = append(warnings, "TLS verification of target sites is disabled")
	}
	return warnings
}

// MethodAllowed reports whether method is in the allow-list.
func (c *Config) MethodAllowed(method string) bool {
	for _, m := range c.AllowedMethods {
		if m == method {
			return true
		}
	}
	return false
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// FetchConfig returns the fetcher settings.
func (c *Config) FetchConfig() curllink.FetchConfig {
	return curllink.FetchConfig{
		Timeout:            c.FetchTimeout,
		InsecureSkipVerify: !c.VerifyTLS,
		UserAgent:          c.UserAgent,
		Headers:            c.Headers,
		MaxBodySize:        c.MaxBodySize,
		RespectRobotsTxt:   c.RespectRobotsTxt,
		TraceHTTP:          c.LogLevel >= logrus.DebugLevel,
	}
}

// Policy returns the cache expiry and retention policy.
func (c *Config) Policy() storage.Policy {
	return storage.Policy{Expiry: c.CacheExpiry, Retention: c.CacheRetention}
}

// GetLogLevel gets the log level from LOG_LEVEL; CURLLINK_DEBUG=1 forces debug.
func GetLogLevel() logrus.Level {
	if debug, _ := strconv.ParseBool(os.Getenv("CURLLINK_DEBUG")); debug {
		return logrus.DebugLevel
	}
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// ParseHeaders parses "Name: value" pairs separated by "|".
func ParseHeaders(s string) (http.Header, error) {
	h := http.Header{}
	for _, pair := range strings.Split(s, "|") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("header %q: expected \"Name: value\"", pair)
		}
		h.Add(name, strings.TrimSpace(value))
	}
	return h, nil
}

func parseMinutes(val string) (time.Duration, error) {
	minutes, err := strconv.Atoi(val)
	if err != nil {
		return 0, err
	}
	return time.Duration(minutes) * time.Minute, nil
}
