package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/riakmr/internal/logging"
	"github.com/danmuck/riakmr/internal/mapreduce"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Riak    RiakConfig    `toml:"riak" yaml:"riak"`
	Request RequestConfig `toml:"request" yaml:"request"`
	Bridge  BridgeConfig  `toml:"bridge" yaml:"bridge"`
	Log     LogConfig     `toml:"log" yaml:"log"`
}

type RiakConfig struct {
	Addr           string        `toml:"addr" yaml:"addr"`
	ConnectTimeout time.Duration `toml:"connect_timeout" yaml:"connect_timeout"`
	ReadTimeout    time.Duration `toml:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   time.Duration `toml:"write_timeout" yaml:"write_timeout"`
}

// RequestConfig holds defaults for jobs whose fields are not given per call.
type RequestConfig struct {
	Bucket    string `toml:"bucket" yaml:"bucket"`
	Key       string `toml:"key" yaml:"key"`
	Module    string `toml:"module" yaml:"module"`
	Function  string `toml:"function" yaml:"function"`
	TimeoutMS int64  `toml:"timeout_ms" yaml:"timeout_ms"`
}

type BridgeConfig struct {
	ID          string   `toml:"id" yaml:"id"`
	ListenAddr  string   `toml:"listen_addr" yaml:"listen_addr"`
	CorsOrigins []string `toml:"cors_origins" yaml:"cors_origins"`
	// Token, when set, is required as a bearer token on POST /mapreduce.
	Token string `toml:"token" yaml:"token"`
}

type LogConfig struct {
	Level      string `toml:"level" yaml:"level"`
	Timestamp  bool   `toml:"timestamp" yaml:"timestamp"`
	NoColor    bool   `toml:"no_color" yaml:"no_color"`
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days"`
}

func Default() Config {
	return Config{
		Riak: RiakConfig{
			Addr:           "127.0.0.1:8087",
			ConnectTimeout: 5 * time.Second,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
		},
		Request: RequestConfig{
			Module:    "walk",
			Function:  "request",
			TimeoutMS: mapreduce.DefaultTimeoutMS,
		},
		Bridge: BridgeConfig{
			ID:          "riakmr-bridge",
			ListenAddr:  ":9087",
			CorsOrigins: []string{"http://localhost:3000"},
		},
		Log: LogConfig{
			Level:      "info",
			Timestamp:  true,
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load overlays the file at path onto Default. Files ending in .yaml or .yml
// are read as YAML, everything else as TOML.
func Load(path string) (Config, error) {
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := loadYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	default:
		if err := loadToml(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	cfg.normalize()
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func loadToml(path string, out *Config) error {
	meta, err := toml.DecodeFile(path, out)
	if err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("config parse failed (%s): unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func loadYAML(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Riak.Addr = strings.TrimSpace(c.Riak.Addr)
	c.Request.Bucket = strings.TrimSpace(c.Request.Bucket)
	c.Request.Key = strings.TrimSpace(c.Request.Key)
	c.Request.Module = strings.TrimSpace(c.Request.Module)
	c.Request.Function = strings.TrimSpace(c.Request.Function)
	c.Bridge.ID = strings.TrimSpace(c.Bridge.ID)
	c.Bridge.ListenAddr = strings.TrimSpace(c.Bridge.ListenAddr)
	c.Bridge.Token = strings.TrimSpace(c.Bridge.Token)
	c.Log.Level = strings.TrimSpace(c.Log.Level)
	c.Log.File = strings.TrimSpace(c.Log.File)
}

func Validate(cfg Config) error {
	if cfg.Riak.Addr == "" {
		return fmt.Errorf("riak.addr is required")
	}
	if cfg.Riak.ConnectTimeout < 0 || cfg.Riak.ReadTimeout < 0 || cfg.Riak.WriteTimeout < 0 {
		return fmt.Errorf("riak timeouts must not be negative")
	}
	if cfg.Request.TimeoutMS < 0 {
		return fmt.Errorf("request.timeout_ms must not be negative")
	}
	if cfg.Log.Level != "" {
		if _, ok := logging.ParseLevel(cfg.Log.Level); !ok {
			return fmt.Errorf("log.level %q is not a known level", cfg.Log.Level)
		}
	}
	return nil
}

// ValidateBridge checks the settings the HTTP bridge needs on top of Validate.
func ValidateBridge(cfg Config) error {
	if cfg.Bridge.ListenAddr == "" {
		return fmt.Errorf("bridge.listen_addr is required")
	}
	if cfg.Bridge.ID == "" {
		return fmt.Errorf("bridge.id is required")
	}
	return nil
}
