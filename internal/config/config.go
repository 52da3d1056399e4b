// Package config loads hatch settings from hatch.yml, HATCH_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "hatch.yml"

// Config is the complete hatch configuration.
type Config struct {
	Endpoint         string        `mapstructure:"endpoint"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxResponseBytes int64         `mapstructure:"max_response_bytes"`
	Protect          []string      `mapstructure:"protect"`
	Lock             LockConfig    `mapstructure:"lock"`
	Redis            RedisConfig   `mapstructure:"redis"`
	Log              LogConfig     `mapstructure:"log"`
	Metrics          MetricsConfig `mapstructure:"metrics"`
	Stub             StubConfig    `mapstructure:"stub"`
}

// LockConfig selects the workspace lock.
type LockConfig struct {
	Backend string        `mapstructure:"backend"` // "local" or "redis"
	Mode    string        `mapstructure:"mode"`    // "reject" or "wait"
	TTL     time.Duration `mapstructure:"ttl"`
}

// RedisConfig is used when Lock.Backend is "redis".
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// StubConfig configures `hatch stub`.
type StubConfig struct {
	Addr    string `mapstructure:"addr"`
	Fixture string `mapstructure:"fixture"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Endpoint:         "http://localhost:8000",
		Timeout:          2 * time.Minute,
		MaxResponseBytes: 32 << 20,
		Protect:          []string{".git"},
		Lock: LockConfig{
			Backend: "local",
			Mode:    "reject",
			TTL:     10 * time.Minute,
		},
		Redis: RedisConfig{Addr: "localhost:6379", Prefix: "hatch:"},
		Log:   LogConfig{Level: "warn"},
		Stub:  StubConfig{Addr: ":8000"},
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"endpoint": "endpoint",
	"timeout":  "timeout",
	"log-file": "log.file",
	"addr":     "stub.addr",
	"fixture":  "stub.fixture",
}

// Load reads the configuration. An empty path looks for DefaultFile in the
// working directory and tolerates its absence; an explicit path must
// exist. Flags that were set on the command line override file and
// environment values. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readFile(v, path); err != nil {
		return nil, err
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("endpoint", d.Endpoint)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("max_response_bytes", d.MaxResponseBytes)
	v.SetDefault("protect", d.Protect)
	v.SetDefault("lock.backend", d.Lock.Backend)
	v.SetDefault("lock.mode", d.Lock.Mode)
	v.SetDefault("lock.ttl", d.Lock.TTL)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.prefix", d.Redis.Prefix)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
	v.SetDefault("stub.addr", d.Stub.Addr)
	v.SetDefault("stub.fixture", d.Stub.Fixture)
}

func readFile(v *viper.Viper, path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config file %s: %w", path, err)
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// Validate checks values that would otherwise fail later in the run.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint %q must be an http(s) URL", c.Endpoint)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.MaxResponseBytes <= 0 {
		return fmt.Errorf("max_response_bytes must be positive, got %d", c.MaxResponseBytes)
	}
	switch c.Lock.Backend {
	case "local":
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required when lock.backend is redis")
		}
		// The lock must outlive the request or a second run can take it
		// mid-generation.
		if c.Lock.TTL <= c.Timeout {
			return fmt.Errorf("lock.ttl (%s) must be longer than timeout (%s) when lock.backend is redis", c.Lock.TTL, c.Timeout)
		}
	default:
		return fmt.Errorf("lock.backend %q must be local or redis", c.Lock.Backend)
	}
	switch c.Lock.Mode {
	case "reject", "wait":
	default:
		return fmt.Errorf("lock.mode %q must be reject or wait", c.Lock.Mode)
	}
	return nil
}

// fileConfig mirrors Config with durations as strings so hatch.yml stays
// readable.
type fileConfig struct {
	Endpoint         string   `yaml:"endpoint"`
	Timeout          string   `yaml:"timeout"`
	MaxResponseBytes int64    `yaml:"max_response_bytes"`
	Protect          []string `yaml:"protect"`
	Lock             struct {
		Backend string `yaml:"backend"`
		Mode    string `yaml:"mode"`
		TTL     string `yaml:"ttl"`
	} `yaml:"lock"`
	Redis struct {
		Addr   string `yaml:"addr"`
		Prefix string `yaml:"prefix"`
	} `yaml:"redis"`
	Log struct {
		File  string `yaml:"file,omitempty"`
		Level string `yaml:"level"`
	} `yaml:"log"`
	Metrics struct {
		Textfile string `yaml:"textfile,omitempty"`
	} `yaml:"metrics,omitempty"`
}

// Save writes cfg to path as YAML. Redis passwords are never written.
func Save(path string, cfg Config) error {
	var fc fileConfig
	fc.Endpoint = cfg.Endpoint
	fc.Timeout = cfg.Timeout.String()
	fc.MaxResponseBytes = cfg.MaxResponseBytes
	fc.Protect = cfg.Protect
	fc.Lock.Backend = cfg.Lock.Backend
	fc.Lock.Mode = cfg.Lock.Mode
	fc.Lock.TTL = cfg.Lock.TTL.String()
	fc.Redis.Addr = cfg.Redis.Addr
	fc.Redis.Prefix = cfg.Redis.Prefix
	fc.Log.File = cfg.Log.File
	fc.Log.Level = cfg.Log.Level
	fc.Metrics.Textfile = cfg.Metrics.Textfile

	data, err := yaml.Marshal(&fc)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
