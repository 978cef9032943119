package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full, immutable configuration surface. It is built once at
// startup by FromEnv with every option enumerated and defaulted here, never
// merged ad hoc per call.
type Config struct {
	Addr          string
	JWTSigningKey string

	// DomainSuffix is appended to the normalized digits to form the
	// account identifier on the messaging network.
	DomainSuffix string

	ProbeTimeout    time.Duration
	PresenceMargin  time.Duration
	ParallelProbes  bool
	PresenceCheck   bool
	RetryEnabled    bool
	MaxRetries      int
	RetryBaseDelay  time.Duration

	CacheEnabled  bool
	CacheTTL      time.Duration
	CacheCapacity int
	RedisURL      string

	RateLimitEnabled bool
	RateLimitMax     int
	RateLimitWindow  time.Duration

	ClassifierEnabled bool

	BatchChunkSize  int
	BatchChunkDelay time.Duration

	KafkaBrokers []string
	KafkaTopic   string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:          getString("REACHCHECK_ADDR", ":8080"),
		JWTSigningKey: getString("REACHCHECK_JWT_SIGNING_KEY", ""),

		DomainSuffix: getString("REACHCHECK_DOMAIN_SUFFIX", "@s.messenger.net"),

		ProbeTimeout:   getDuration("REACHCHECK_PROBE_TIMEOUT", 10*time.Second),
		PresenceMargin: getDuration("REACHCHECK_PRESENCE_MARGIN", 2*time.Second),
		ParallelProbes: getBool("REACHCHECK_PARALLEL_PROBES", true),
		PresenceCheck:  getBool("REACHCHECK_PRESENCE_CHECK", false),
		RetryEnabled:   getBool("REACHCHECK_RETRY_ENABLED", true),
		MaxRetries:     getInt("REACHCHECK_MAX_RETRIES", 2),
		RetryBaseDelay: getDuration("REACHCHECK_RETRY_BASE_DELAY", time.Second),

		CacheEnabled:  getBool("REACHCHECK_CACHE_ENABLED", true),
		CacheTTL:      getDuration("REACHCHECK_CACHE_TTL", time.Hour),
		CacheCapacity: getInt("REACHCHECK_CACHE_CAPACITY", 1000),
		RedisURL:      getString("REACHCHECK_REDIS_URL", ""),

		RateLimitEnabled: getBool("REACHCHECK_RATE_LIMIT_ENABLED", true),
		RateLimitMax:     getInt("REACHCHECK_RATE_LIMIT_MAX", 10),
		RateLimitWindow:  getDuration("REACHCHECK_RATE_LIMIT_WINDOW", time.Minute),

		ClassifierEnabled: getBool("REACHCHECK_CLASSIFIER_ENABLED", true),

		BatchChunkSize:  getInt("REACHCHECK_BATCH_CHUNK_SIZE", 5),
		BatchChunkDelay: getDuration("REACHCHECK_BATCH_CHUNK_DELAY", 2*time.Second),

		KafkaBrokers: getStrings("REACHCHECK_KAFKA_BROKERS"),
		KafkaTopic:   getString("REACHCHECK_KAFKA_TOPIC", "reachcheck.validations"),
	}
}

// Validate rejects misconfiguration at startup. Zero-length windows or
// non-positive capacities are caller contract violations, not runtime error
// kinds (limiter and cache never raise under normal operation).
func (c Config) Validate() error {
	var errs []error
	if c.RateLimitEnabled && c.RateLimitMax <= 0 {
		errs = append(errs, fmt.Errorf("rate limit max must be positive, got %d", c.RateLimitMax))
	}
	if c.RateLimitEnabled && c.RateLimitWindow <= 0 {
		errs = append(errs, fmt.Errorf("rate limit window must be positive, got %s", c.RateLimitWindow))
	}
	if c.CacheEnabled && c.CacheCapacity <= 0 {
		errs = append(errs, fmt.Errorf("cache capacity must be positive, got %d", c.CacheCapacity))
	}
	if c.CacheEnabled && c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache TTL must be positive, got %s", c.CacheTTL))
	}
	if c.ProbeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("probe timeout must be positive, got %s", c.ProbeTimeout))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries))
	}
	if c.BatchChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("batch chunk size must be positive, got %d", c.BatchChunkSize))
	}
	return errors.Join(errs...)
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getStrings(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
