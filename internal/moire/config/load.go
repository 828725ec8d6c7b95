package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const configPathEnv = "MOIRE_CONFIG_PATH"

//go:embed default.yaml
var defaultYAML []byte

func Default() (*Config, error) {
	cfg := &Config{}
	if err := decodeYAML(defaultYAML, cfg); err != nil {
		return nil, fmt.Errorf("embedded default config: %w", err)
	}
	return cfg, nil
}

// Load layers the embedded defaults, the YAML file named by MOIRE_CONFIG_PATH (or
// ./config/moire.yaml when it exists) and environment overrides, then validates.
func Load() (*Config, error) {
	path := strings.TrimSpace(os.Getenv(configPathEnv))
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "moire.yaml")
			if _, err := os.Stat(p); err == nil {
				path = p
			}
		}
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit file path; an empty path skips the file layer.
func LoadFile(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decodeYAML(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseEnv applies environment overrides onto target; unset variables leave fields alone.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func decodeYAML(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// Validate normalizes cfg in place and rejects values the server cannot run with.
func (cfg *Config) Validate() error {
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if cfg.Env == "" {
		cfg.Env = "development"
	}

	cfg.HTTP.Addr = strings.TrimSpace(cfg.HTTP.Addr)
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8501"
	}
	if cfg.HTTP.MaxRequestBytes <= 0 {
		cfg.HTTP.MaxRequestBytes = 64 << 10
	}
	if cfg.HTTP.ShutdownTimeout.Duration <= 0 {
		cfg.HTTP.ShutdownTimeout = Duration{Duration: 15 * time.Second}
	}
	origins := cfg.HTTP.CORSOrigins[:0]
	for _, o := range cfg.HTTP.CORSOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.HTTP.CORSOrigins = origins

	r := &cfg.Render
	if r.Workers <= 0 {
		r.Workers = 1
	}
	if r.Timeout.Duration < 0 {
		return errors.New("render.timeout must not be negative")
	}
	if r.MaxDisplayPx < 64 {
		return fmt.Errorf("render.max_display_px=%d is too small (min 64)", r.MaxDisplayPx)
	}
	if r.TitleBandPx < 0 {
		r.TitleBandPx = 0
	}
	if r.FontSize <= 0 {
		r.FontSize = 16
	}
	r.FontPath = strings.TrimSpace(r.FontPath)
	if r.MaxLatticeCells <= 0 {
		r.MaxLatticeCells = 60
	}
	if math.IsNaN(r.LatticeConstant) || r.LatticeConstant <= 0 {
		return fmt.Errorf("render.lattice_constant must be positive, got %v", r.LatticeConstant)
	}

	c := &cfg.Cache
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	switch c.Backend {
	case "", "none", "off":
		c.Backend = "none"
	case "memory":
		if c.MemoryEntries <= 0 {
			c.MemoryEntries = 128
		}
	case "redis":
		c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
		if c.Redis.Addr == "" {
			return errors.New("cache.redis.addr is required when cache.backend=redis")
		}
		if c.Redis.DialTimeout.Duration <= 0 {
			c.Redis.DialTimeout = Duration{Duration: 5 * time.Second}
		}
		if strings.TrimSpace(c.Redis.KeyPrefix) == "" {
			c.Redis.KeyPrefix = "moire:render:"
		}
	default:
		return fmt.Errorf("invalid cache.backend=%q", c.Backend)
	}
	if c.TTL.Duration < 0 {
		return errors.New("cache.ttl must not be negative")
	}

	t := &cfg.Telemetry
	if strings.TrimSpace(t.ServiceName) == "" {
		t.ServiceName = "moire"
	}
	if t.SampleRatio < 0 {
		t.SampleRatio = 0
	}
	if t.SampleRatio > 1 {
		t.SampleRatio = 1
	}
	return nil
}
