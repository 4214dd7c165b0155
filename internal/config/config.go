// Package config loads docreflect.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the project root.
const FileName = "docreflect.yaml"

// Finder identifiers accepted in class_finders.
const (
	FinderComposer = "composer"
	FinderPSR4     = "psr4"
	FinderClassmap = "classmap"
)

// Cache backends.
const (
	CacheNone     = "none"
	CacheSQLite   = "sqlite"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
)

// Record types accepted in tag_class_map.
var RecordTypes = []string{"var", "property", "property-read", "property-write", "method", "return", "generic"}

// DefaultProxyInterfaces are the interfaces marking a generated proxy class.
var DefaultProxyInterfaces = []string{
	`Doctrine\ORM\Proxy\Proxy`,
	`Doctrine\Persistence\Proxy`,
	`Doctrine\Common\Persistence\Proxy`,
}

// Config represents the docreflect configuration
type Config struct {
	// Root is the project root; relative paths below resolve against it.
	Root string `mapstructure:"root"`

	TagClassMap     []TagMapping   `mapstructure:"tag_class_map"`
	ClassFinders    []string       `mapstructure:"class_finders"`
	PSR4            []PSR4Mapping  `mapstructure:"psr4"`
	Classmap        ClassmapConfig `mapstructure:"classmap"`
	ProxyInterfaces []string       `mapstructure:"proxy_interfaces"`

	Cache CacheConfig `mapstructure:"cache"`
	Log   LogConfig   `mapstructure:"log"`
	Scan  ScanConfig  `mapstructure:"scan"`
}

// TagMapping registers a builtin record type for a tag name. Entries are a
// list rather than a map because viper lower-cases map keys and tag names
// are case-sensitive.
type TagMapping struct {
	Tag    string `mapstructure:"tag"`
	Record string `mapstructure:"record"`
}

// PSR4Mapping maps a namespace prefix to its base directories.
type PSR4Mapping struct {
	Prefix string   `mapstructure:"prefix"`
	Paths  []string `mapstructure:"paths"`
}

// ClassmapConfig lists directories (or files) indexed by the classmap finder.
type ClassmapConfig struct {
	Paths   []string `mapstructure:"paths"`
	Exclude []string `mapstructure:"exclude"`
}

// CacheConfig selects the persisted metadata cache.
type CacheConfig struct {
	Backend   string        `mapstructure:"backend"`
	Path      string        `mapstructure:"path"`
	RedisAddr string        `mapstructure:"redis_addr"`
	RedisDB   int           `mapstructure:"redis_db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
	DSN       string        `mapstructure:"dsn"` // postgres connection string
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// ScanConfig holds defaults for the scan command.
type ScanConfig struct {
	Paths        []string `mapstructure:"paths"`
	Exclude      []string `mapstructure:"exclude"`
	ExcludeTests bool     `mapstructure:"exclude_tests"`
	Workers      int      `mapstructure:"workers"`
	Top          int      `mapstructure:"top"`
}

// ConfigError reports configuration that cannot be used. It is fatal for the
// component being constructed.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Err.Error()
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Errorf returns a *ConfigError for field.
func Errorf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("class_finders", []string{FinderComposer})
	v.SetDefault("proxy_interfaces", DefaultProxyInterfaces)
	v.SetDefault("cache.backend", CacheNone)
	v.SetDefault("cache.path", filepath.Join(".docreflect", "cache.db"))
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.key_prefix", "docreflect:")
	v.SetDefault("cache.ttl", time.Duration(0))
	v.SetDefault("cache.dsn", "")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.development", false)
	v.SetDefault("scan.paths", []string{"."})
	v.SetDefault("scan.exclude_tests", false)
	v.SetDefault("scan.workers", 0)
	v.SetDefault("scan.top", 0)
}

// Load reads docreflect.yaml from dir, if present, layered over defaults and
// DOCREFLECT_* environment variables. The returned config is validated and
// has Root set to an absolute path.
func Load(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("DOCREFLECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &ConfigError{Err: fmt.Errorf("failed to read config file: %w", err)}
		}
		// Config file not found - use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("failed to unmarshal config: %w", err)}
	}

	if cfg.Root == "" {
		cfg.Root = dir
	} else if !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(dir, cfg.Root)
	}
	abs, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, &ConfigError{Field: "root", Err: err}
	}
	cfg.Root = abs

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default(root string) *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	cfg.Root = root
	return &cfg
}

// Validate checks the configuration and returns a *ConfigError describing
// the first problem found.
func (c *Config) Validate() error {
	info, err := os.Stat(c.Root)
	if err != nil {
		return &ConfigError{Field: "root", Err: err}
	}
	if !info.IsDir() {
		return Errorf("root", "%s is not a directory", c.Root)
	}

	for i, m := range c.TagClassMap {
		if m.Tag == "" {
			return Errorf(fmt.Sprintf("tag_class_map[%d]", i), "tag name is empty")
		}
		if !validRecordType(m.Record) {
			return Errorf(fmt.Sprintf("tag_class_map[%d]", i),
				"record type %q for tag %q does not exist (want one of %s)",
				m.Record, m.Tag, strings.Join(RecordTypes, ", "))
		}
	}

	if len(c.ClassFinders) == 0 {
		return Errorf("class_finders", "at least one class finder is required")
	}

	for i, m := range c.PSR4 {
		if len(m.Paths) == 0 {
			return Errorf(fmt.Sprintf("psr4[%d]", i), "prefix %q has no paths", m.Prefix)
		}
	}

	switch c.Cache.Backend {
	case "", CacheNone, CacheSQLite, CacheRedis, CachePostgres:
	default:
		return Errorf("cache.backend", "unknown backend %q", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		return Errorf("cache.ttl", "must not be negative")
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return Errorf("log.level", "unknown level %q", c.Log.Level)
	}

	if c.Scan.Workers < 0 {
		return Errorf("scan.workers", "must not be negative")
	}
	return nil
}

// TagMap returns tag_class_map as tag name -> record type.
func (c *Config) TagMap() map[string]string {
	m := make(map[string]string, len(c.TagClassMap))
	for _, t := range c.TagClassMap {
		m[t.Tag] = t.Record
	}
	return m
}

// PSR4Prefixes returns the psr4 mappings with paths made absolute.
func (c *Config) PSR4Prefixes() map[string][]string {
	m := make(map[string][]string, len(c.PSR4))
	for _, p := range c.PSR4 {
		for _, path := range p.Paths {
			m[p.Prefix] = append(m[p.Prefix], c.Abs(path))
		}
	}
	return m
}

// Abs resolves path against Root.
func (c *Config) Abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Root, path)
}

func validRecordType(s string) bool {
	for _, r := range RecordTypes {
		if r == s {
			return true
		}
	}
	return false
}
