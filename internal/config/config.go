package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName       = "Dialkey"
	defaultAppEnv        = "development"
	defaultPort          = "8080"
	defaultLogLevel      = "info"
	defaultShutdownDelay = 10 * time.Second
	defaultAttemptWindow = 5 * time.Minute
	defaultAttemptMax    = 3
	defaultPinTTL        = 5 * time.Minute
	defaultPinDigits     = 6

	attemptWindowSecondsEnvVar = "ATTEMPT_WINDOW_SECONDS"
	attemptWindowDurEnvVar     = "ATTEMPT_WINDOW"
	pinTTLSecondsEnvVar        = "PIN_TTL_SECONDS"
	pinTTLDurEnvVar            = "PIN_TTL"
	shutdownSecondsEnvVar      = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar     = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration

	// Login throttling.
	AttemptWindow time.Duration
	AttemptMax    int

	// PIN challenges.
	PinTTL    time.Duration
	PinDigits int

	// Phone numbers are stored and matched only as keyed digests.
	PhoneHashSecret string

	// Administrative switches.
	DisableSignups bool
	Operators      []string

	// TestPhone substitutes the computed phone digest when AppEnv is "test".
	// Ignored in every other environment.
	TestPhone string
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		AppEnv:          getEnv("APP_ENV", defaultAppEnv),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		ShutdownPeriod:  defaultShutdownDelay,
		AttemptWindow:   defaultAttemptWindow,
		AttemptMax:      defaultAttemptMax,
		PinTTL:          defaultPinTTL,
		PinDigits:       defaultPinDigits,
		PhoneHashSecret: os.Getenv("PHONE_HASH_SECRET"),
		TestPhone:       os.Getenv("TEST_PHONE"),
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.AttemptWindow, err = durationEnv(attemptWindowSecondsEnvVar, attemptWindowDurEnvVar, cfg.AttemptWindow); err != nil {
		return Config{}, err
	}
	if cfg.PinTTL, err = durationEnv(pinTTLSecondsEnvVar, pinTTLDurEnvVar, cfg.PinTTL); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("ATTEMPT_MAX"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid ATTEMPT_MAX: %q", v)
		}
		cfg.AttemptMax = n
	}

	if v := os.Getenv("PIN_DIGITS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 4 || n > 10 {
			return Config{}, fmt.Errorf("invalid PIN_DIGITS: %q", v)
		}
		cfg.PinDigits = n
	}

	if v := os.Getenv("DISABLE_SIGNUPS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DISABLE_SIGNUPS: %q", v)
		}
		cfg.DisableSignups = b
	}

	if v := os.Getenv("OPERATOR_UIDS"); v != "" {
		for _, uid := range strings.Split(v, ",") {
			if uid = strings.TrimSpace(uid); uid != "" {
				cfg.Operators = append(cfg.Operators, uid)
			}
		}
	}

	if cfg.PhoneHashSecret == "" {
		return Config{}, fmt.Errorf("PHONE_HASH_SECRET must be set")
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}

	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}

	if cfg.TestPhone != "" && !cfg.IsTest() {
		return Config{}, fmt.Errorf("TEST_PHONE is only honored when APP_ENV=test")
	}

	return cfg, nil
}

// IsTest reports whether the process runs in the test environment, which
// enables the deterministic phone fixture and the missing-remote-address
// fallback. Production configuration can never reach those paths.
func (c Config) IsTest() bool {
	return strings.EqualFold(c.AppEnv, "test")
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func durationEnv(secondsVar, durationVar string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsVar, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationVar, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
