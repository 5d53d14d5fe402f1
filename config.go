package queuez

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Kind selects a dispatch strategy.
type Kind string

const (
	KindSerial   Kind = "serial"
	KindParallel Kind = "parallel"
	KindBounded  Kind = "bounded"
	KindMixed    Kind = "mixed"
)

// ShutdownMode selects how Shutdown treats outstanding deliveries.
type ShutdownMode string

const (
	// ShutdownGraceful drains every outstanding delivery before tearing down.
	ShutdownGraceful ShutdownMode = "graceful"
	// ShutdownImmediate abandons queued deliveries and wakes blocked submitters.
	ShutdownImmediate ShutdownMode = "immediate"
)

const (
	// DefaultWorkers is the pool size used when Workers is 0.
	DefaultWorkers = 4

	// DefaultCapacity is the in-flight bound used by bounded queues when Capacity is 0.
	DefaultCapacity = 256
)

// Config describes a queue for New. It decodes from YAML:
//
//	kind: mixed
//	name: primes
//	workers: 8
//	bounded: true
//	capacity: 128
//	shutdown_mode: graceful
//	submit_timeout: 2s
type Config struct {
	Kind          Kind          `yaml:"kind"`
	Name          string        `yaml:"name"`
	ShutdownMode  ShutdownMode  `yaml:"shutdown_mode"`
	Workers       int           `yaml:"workers"`
	Capacity      int           `yaml:"capacity"`
	SubmitTimeout time.Duration `yaml:"submit_timeout"`
	Bounded       bool          `yaml:"bounded"`
}

// DefaultConfig returns a graceful parallel queue with DefaultWorkers workers.
func DefaultConfig() Config {
	return Config{
		Kind:         KindParallel,
		Workers:      DefaultWorkers,
		ShutdownMode: ShutdownGraceful,
	}
}

// Validate checks the config and fills defaults for zero values.
func (c *Config) Validate() error {
	var errs []error

	switch c.Kind {
	case "":
		c.Kind = KindParallel
	case KindSerial, KindParallel, KindBounded, KindMixed:
	default:
		errs = append(errs, fmt.Errorf("unknown kind %q", c.Kind))
	}

	switch c.ShutdownMode {
	case "":
		c.ShutdownMode = ShutdownGraceful
	case ShutdownGraceful, ShutdownImmediate:
	default:
		errs = append(errs, fmt.Errorf("unknown shutdown_mode %q", c.ShutdownMode))
	}

	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0, got %d", c.Workers))
	} else if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}

	if c.Capacity < 0 {
		errs = append(errs, fmt.Errorf("capacity must be >= 0, got %d", c.Capacity))
	} else if c.Capacity == 0 && c.bounded() {
		c.Capacity = DefaultCapacity
	}

	if c.SubmitTimeout < 0 {
		errs = append(errs, fmt.Errorf("submit_timeout must be >= 0, got %s", c.SubmitTimeout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (c Config) bounded() bool {
	return c.Kind == KindBounded || (c.Kind == KindMixed && c.Bounded)
}

// ParseConfig decodes a YAML document and validates it.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses the YAML file at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read queue config: %w", err)
	}
	return ParseConfig(data)
}

// ApplyEnv overrides fields from environment variables named prefix + field,
// e.g. QUEUEZ_WORKERS. Unset or malformed variables leave the field unchanged.
func (c *Config) ApplyEnv(prefix string) {
	if v := getEnv(prefix+"KIND", ""); v != "" {
		c.Kind = Kind(strings.ToLower(v))
	}
	if v := getEnv(prefix+"NAME", ""); v != "" {
		c.Name = v
	}
	if v := getEnv(prefix+"SHUTDOWN_MODE", ""); v != "" {
		c.ShutdownMode = ShutdownMode(strings.ToLower(v))
	}
	c.Workers = getEnvInt(prefix+"WORKERS", c.Workers)
	c.Capacity = getEnvInt(prefix+"CAPACITY", c.Capacity)
	c.Bounded = getEnvBool(prefix+"BOUNDED", c.Bounded)
	c.SubmitTimeout = getEnvDuration(prefix+"SUBMIT_TIMEOUT", c.SubmitTimeout)
}

// Options converts the config into queue options. Explicit opts win.
func (c Config) Options(opts ...Option) []Option {
	base := []Option{
		WithName(c.Name),
		WithShutdownMode(c.ShutdownMode),
		WithSubmitTimeout(c.SubmitTimeout),
	}
	return append(base, opts...)
}

// New builds the queue described by cfg. It is the entry point for containers
// that wire queues from configuration.
func New[T any](cfg Config, opts ...Option) (Queue[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	all := cfg.Options(opts...)
	switch cfg.Kind {
	case KindSerial:
		return NewSerialQueue[T](all...), nil
	case KindBounded:
		return NewBoundedParallelQueue[T](cfg.Workers, cfg.Capacity, all...), nil
	case KindMixed:
		q, err := NewMixedQueue[T](cfg, opts...)
		if err != nil {
			return nil, err
		}
		return q, nil
	default:
		return NewParallelQueue[T](cfg.Workers, all...), nil
	}
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := getEnv(key, ""); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := getEnv(key, ""); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := getEnv(key, ""); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
