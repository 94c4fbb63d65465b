// Package config loads user settings from defaults, a YAML file, MILL_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"runtime"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultFile is where the config file lives unless --config says otherwise.
const DefaultFile = "~/.config/mill/config.yaml"

const (
	maxDefaultCacheBytes = 128 << 20
	minDefaultCacheBytes = 16 << 20
)

// Config is the effective application configuration.
type Config struct {
	UseTrash   bool          `mapstructure:"use_trash" yaml:"use_trash"`
	ShowHidden bool          `mapstructure:"show_hidden" yaml:"show_hidden"`
	Preview    PreviewConfig `mapstructure:"preview" yaml:"preview"`
	Store      StoreConfig   `mapstructure:"store" yaml:"store"`
	Log        LogConfig     `mapstructure:"log" yaml:"log"`
}

type PreviewConfig struct {
	CacheBytes     int64         `mapstructure:"cache_bytes" yaml:"cache_bytes"`
	Workers        int           `mapstructure:"workers" yaml:"workers"`
	PrefetchDelay  time.Duration `mapstructure:"prefetch_delay" yaml:"prefetch_delay"`
	PrefetchRadius int           `mapstructure:"prefetch_radius" yaml:"prefetch_radius"`
	TextBytes      int64         `mapstructure:"text_bytes" yaml:"text_bytes"`
	HighlightStyle string        `mapstructure:"highlight_style" yaml:"highlight_style"`
}

type StoreConfig struct {
	Snapshots int `mapstructure:"snapshots" yaml:"snapshots"`
}

type LogConfig struct {
	Dir   string `mapstructure:"dir" yaml:"dir"`
	Level string `mapstructure:"level" yaml:"level"`
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"trash":     "use_trash",
	"hidden":    "show_hidden",
	"workers":   "preview.workers",
	"log-dir":   "log.dir",
	"log-level": "log.level",
}

// New returns a viper instance carrying defaults and the MILL_ env binding.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("use_trash", true)
	v.SetDefault("show_hidden", false)
	v.SetDefault("preview.cache_bytes", DefaultCacheBytes())
	v.SetDefault("preview.workers", min(4, runtime.NumCPU()))
	v.SetDefault("preview.prefetch_delay", 250*time.Millisecond)
	v.SetDefault("preview.prefetch_radius", 1)
	v.SetDefault("preview.text_bytes", 256<<10)
	v.SetDefault("preview.highlight_style", "monokai")
	v.SetDefault("store.snapshots", 32)
	v.SetDefault("log.dir", "")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("mill")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// RegisterFlags declares the flags that override config keys.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", DefaultFile, "config file")
	flags.Bool("trash", true, "move deleted files to the session trash")
	flags.BoolP("hidden", "a", false, "show hidden files")
	flags.Int("workers", 0, "preview worker count")
	flags.String("log-dir", "", "directory for log files (empty disables logging)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
}

// BindFlags makes explicitly set flags take precedence over file and env.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

// ReadFile merges the YAML file at path into v. A missing file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return fmt.Errorf("expand %s: %w", path, err)
	}
	v.SetConfigFile(expanded)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, iofs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", expanded, err)
	}
	return nil
}

// Load decodes v into a validated Config.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Preview.Workers <= 0 {
		cfg.Preview.Workers = min(4, runtime.NumCPU())
	}
	if cfg.Preview.CacheBytes <= 0 {
		return Config{}, fmt.Errorf("preview.cache_bytes must be positive, got %d", cfg.Preview.CacheBytes)
	}
	if cfg.Preview.TextBytes <= 0 {
		return Config{}, fmt.Errorf("preview.text_bytes must be positive, got %d", cfg.Preview.TextBytes)
	}
	// A radius of 0 turns neighbor prefetch off.
	if cfg.Preview.PrefetchRadius < 0 {
		cfg.Preview.PrefetchRadius = 0
	}
	if cfg.Store.Snapshots <= 0 {
		cfg.Store.Snapshots = 32
	}
	if cfg.Log.Dir != "" {
		dir, err := homedir.Expand(cfg.Log.Dir)
		if err != nil {
			return Config{}, fmt.Errorf("expand log.dir: %w", err)
		}
		cfg.Log.Dir = dir
	}
	return cfg, nil
}

// YAML renders cfg the way it would appear in the config file.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// DefaultCacheBytes is 2% of physical memory clamped to [16 MiB, 128 MiB].
func DefaultCacheBytes() int64 {
	vm, err := mem.VirtualMemory()
	if err != nil || vm.Total == 0 {
		return 64 << 20
	}
	budget := int64(vm.Total / 50)
	return min(max(budget, minDefaultCacheBytes), maxDefaultCacheBytes)
}
