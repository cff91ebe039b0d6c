package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

const DEFAULT_PORT = "8123"
const DEFAULT_SCRIPT_TIMEOUT = 30 * time.Second
const DEFAULT_MAX_SCRIPT_SIZE int64 = 5 << 20

type Config struct {
	port           string
	dBHost         string
	dBPassword     string
	dBUsername     string
	sentryDSN      string
	scriptManifest string
	scriptTimeout  time.Duration
	maxScriptSize  int64
	env            environment
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) DBHost() string {
	return c.dBHost
}

func (c *Config) DBPassword() string {
	return c.dBPassword
}

func (c *Config) DBUsername() string {
	return c.dBUsername
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

// Path to a YAML manifest of scripts to load at startup. May be empty.
func (c *Config) ScriptManifest() string {
	return c.scriptManifest
}

// Maximum execution time of a single script
func (c *Config) ScriptTimeout() time.Duration {
	return c.scriptTimeout
}

// Largest script source, in bytes, the service will download
func (c *Config) MaxScriptSize() int64 {
	return c.maxScriptSize
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, port: %s, scriptManifest: %s, scriptTimeout: %s, maxScriptSize: %d, ...}",
		string(c.env), c.port, c.scriptManifest, c.scriptTimeout, c.maxScriptSize,
	)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("SCRIPTCACHE_ENVIRONMENT")
	if !ok {
		return missingKey("SCRIPTCACHE_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: SCRIPTCACHE_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = DEFAULT_PORT
	}

	scriptTimeout := DEFAULT_SCRIPT_TIMEOUT
	if rawTimeout := os.Getenv("SCRIPT_TIMEOUT"); rawTimeout != "" {
		parsed, err := time.ParseDuration(rawTimeout)
		if err != nil || parsed <= 0 {
			return Config{}, fmt.Errorf("%w: SCRIPT_TIMEOUT (%s)", ErrInvalidValue, rawTimeout)
		}
		scriptTimeout = parsed
	}

	maxScriptSize := DEFAULT_MAX_SCRIPT_SIZE
	if rawSize := os.Getenv("MAX_SCRIPT_SIZE"); rawSize != "" {
		parsed, err := strconv.ParseInt(rawSize, 10, 64)
		if err != nil || parsed <= 0 {
			return Config{}, fmt.Errorf("%w: MAX_SCRIPT_SIZE (%s)", ErrInvalidValue, rawSize)
		}
		maxScriptSize = parsed
	}

	dbHost := os.Getenv("DB_HOST")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbUsername := os.Getenv("DB_USERNAME")
	sentryDSN := os.Getenv("SENTRY_DSN")
	scriptManifest := os.Getenv("SCRIPT_MANIFEST")

	if env == production || env == staging {
		if dbHost == "" {
			return missingKey("DB_HOST")
		}
		if dbUsername == "" {
			return missingKey("DB_USERNAME")
		}
		if dbPassword == "" {
			return missingKey("DB_PASSWORD")
		}
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
	}

	return Config{
		port:           port,
		dBHost:         dbHost,
		dBPassword:     dbPassword,
		dBUsername:     dbUsername,
		sentryDSN:      sentryDSN,
		scriptManifest: scriptManifest,
		scriptTimeout:  scriptTimeout,
		maxScriptSize:  maxScriptSize,
		env:            env,
	}, nil
}
