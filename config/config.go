// Package config holds the pool and registry configuration for respool.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/guileen/respool/errors"
)

// Policy selects the order in which pooled buffers are evicted
type Policy string

const (
	PolicyLRU    Policy = "lru"
	PolicyFIFO   Policy = "fifo"
	PolicyLFU    Policy = "lfu"
	PolicyHybrid Policy = "hybrid"
)

// Valid reports whether the policy is one of the supported values
func (p Policy) Valid() bool {
	switch p {
	case PolicyLRU, PolicyFIFO, PolicyLFU, PolicyHybrid:
		return true
	}
	return false
}

// Config holds configuration for the resource manager
type Config struct {
	// Pool sizing
	MaxPoolSizeBytes int64

	// Watermark fractions of MaxPoolSizeBytes; eviction triggers above the
	// high mark and stops at the low mark
	HighWaterMark float64
	LowWaterMark  float64

	// Idle eviction baseline; category timeouts are derived from this
	MaxIdleTime time.Duration

	// Registry cap
	MaxResourceCount int

	EvictionPolicy Policy
}

// Default returns the default configuration (512MiB, 0.9/0.7, LRU, 5min, 10000)
func Default() Config {
	return Config{
		MaxPoolSizeBytes: 512 << 20,
		HighWaterMark:    0.9,
		LowWaterMark:     0.7,
		MaxIdleTime:      5 * time.Minute,
		MaxResourceCount: 10000,
		EvictionPolicy:   PolicyLRU,
	}
}

// Minimal returns a constrained configuration for small deployments and tests
func Minimal() Config {
	return Config{
		MaxPoolSizeBytes: 64 << 20,
		HighWaterMark:    0.95,
		LowWaterMark:     0.8,
		MaxIdleTime:      time.Minute,
		MaxResourceCount: 1000,
		EvictionPolicy:   PolicyLRU,
	}
}

// Production returns the recommended production configuration
func Production() Config {
	return Config{
		MaxPoolSizeBytes: 2 << 30,
		HighWaterMark:    0.85,
		LowWaterMark:     0.6,
		MaxIdleTime:      15 * time.Minute,
		MaxResourceCount: 50000,
		EvictionPolicy:   PolicyHybrid,
	}
}

// Option mutates a Config during construction
type Option func(*Config)

// WithMaxPoolSize sets the hard pool size cap in bytes
func WithMaxPoolSize(bytes int64) Option {
	return func(c *Config) {
		c.MaxPoolSizeBytes = bytes
	}
}

// WithWatermarks sets the high and low eviction watermarks
func WithWatermarks(high, low float64) Option {
	return func(c *Config) {
		c.HighWaterMark = high
		c.LowWaterMark = low
	}
}

// WithMaxIdleTime sets the baseline idle-eviction timeout
func WithMaxIdleTime(d time.Duration) Option {
	return func(c *Config) {
		c.MaxIdleTime = d
	}
}

// WithMaxResourceCount caps the number of tracked resources
func WithMaxResourceCount(n int) Option {
	return func(c *Config) {
		c.MaxResourceCount = n
	}
}

// WithEvictionPolicy selects the eviction ordering
func WithEvictionPolicy(p Policy) Option {
	return func(c *Config) {
		c.EvictionPolicy = p
	}
}

// New builds a validated configuration from the default preset and options
func New(opts ...Option) (Config, error) {
	c := Default()
	for _, opt := range opts {
		opt(&c)
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// Validate checks the configuration for invalid combinations
func (c Config) Validate() error {
	if c.MaxPoolSizeBytes < 0 {
		return errors.NewInvalidArgumentf("config.Validate", "max pool size must be non-negative, got %d", c.MaxPoolSizeBytes)
	}

	if c.HighWaterMark < 0 || c.HighWaterMark > 1 {
		return errors.NewInvalidArgumentf("config.Validate", "high watermark must be in [0.0, 1.0], got %g", c.HighWaterMark)
	}

	if c.LowWaterMark < 0 || c.LowWaterMark > 1 {
		return errors.NewInvalidArgumentf("config.Validate", "low watermark must be in [0.0, 1.0], got %g", c.LowWaterMark)
	}

	if c.LowWaterMark > c.HighWaterMark {
		return errors.NewInvalidArgumentf("config.Validate", "low watermark %g above high watermark %g", c.LowWaterMark, c.HighWaterMark)
	}

	if c.MaxIdleTime < 0 {
		return errors.NewInvalidArgumentf("config.Validate", "max idle time must be non-negative, got %s", c.MaxIdleTime)
	}

	if c.MaxResourceCount <= 0 {
		return errors.NewInvalidArgumentf("config.Validate", "max resource count must be positive, got %d", c.MaxResourceCount)
	}

	if !c.EvictionPolicy.Valid() {
		return errors.NewInvalidArgumentf("config.Validate", "unknown eviction policy %q", c.EvictionPolicy)
	}

	return nil
}

// Load loads configuration from environment variables on top of the default preset
func Load() Config {
	config := Default()

	if sizeStr := os.Getenv("RESPOOL_MAX_POOL_SIZE_BYTES"); sizeStr != "" {
		if size, err := strconv.ParseInt(sizeStr, 10, 64); err == nil && size >= 0 {
			config.MaxPoolSizeBytes = size
		}
	}

	if highStr := os.Getenv("RESPOOL_HIGH_WATERMARK"); highStr != "" {
		if high, err := strconv.ParseFloat(highStr, 64); err == nil && high >= 0 && high <= 1 {
			config.HighWaterMark = high
		}
	}

	if lowStr := os.Getenv("RESPOOL_LOW_WATERMARK"); lowStr != "" {
		if low, err := strconv.ParseFloat(lowStr, 64); err == nil && low >= 0 && low <= 1 {
			config.LowWaterMark = low
		}
	}

	if idleStr := os.Getenv("RESPOOL_MAX_IDLE_TIME_MS"); idleStr != "" {
		if ms, err := strconv.ParseInt(idleStr, 10, 64); err == nil && ms > 0 {
			config.MaxIdleTime = time.Duration(ms) * time.Millisecond
		}
	}

	if countStr := os.Getenv("RESPOOL_MAX_RESOURCE_COUNT"); countStr != "" {
		if count, err := strconv.Atoi(countStr); err == nil && count > 0 {
			config.MaxResourceCount = count
		}
	}

	if policyStr := os.Getenv("RESPOOL_EVICTION_POLICY"); policyStr != "" {
		if policy := Policy(policyStr); policy.Valid() {
			config.EvictionPolicy = policy
		}
	}

	// An inconsistent override combination falls back to the defaults
	if config.LowWaterMark > config.HighWaterMark {
		config.HighWaterMark = Default().HighWaterMark
		config.LowWaterMark = Default().LowWaterMark
	}

	return config
}
