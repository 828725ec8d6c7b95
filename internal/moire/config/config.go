package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts "5s"-style strings in YAML and in environment variables.
type Duration struct {
	Duration time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar, got yaml kind %d", value.Kind)
	}
	return d.UnmarshalText([]byte(value.Value))
}

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" || s == "~" {
		d.Duration = 0
		return nil
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration must look like \"5s\": %w", err)
	}
	d.Duration = dd
	return nil
}

func (d Duration) String() string { return d.Duration.String() }

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
}

type HTTPConfig struct {
	Addr              string   `yaml:"addr" env:"ADDR"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout" env:"READ_HEADER_TIMEOUT"`
	IdleTimeout       Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	WriteTimeout      Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	MaxRequestBytes   int64    `yaml:"max_request_bytes" env:"MAX_REQUEST_BYTES"`
	CORSOrigins       []string `yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
}

type RenderConfig struct {
	// Workers bounds how many row bands of one field are sampled concurrently.
	Workers int      `yaml:"workers" env:"WORKERS"`
	Timeout Duration `yaml:"timeout" env:"TIMEOUT"`

	// MaxDisplayPx caps the width of images sent to the dashboard; downloads are
	// always rendered at full grid resolution.
	MaxDisplayPx int `yaml:"max_display_px" env:"MAX_DISPLAY_PX"`
	TitleBandPx  int `yaml:"title_band_px" env:"TITLE_BAND_PX"`

	// FontPath is an optional TrueType font for plot titles.
	FontPath string  `yaml:"font_path" env:"FONT_PATH"`
	FontSize float64 `yaml:"font_size" env:"FONT_SIZE"`

	MaxLatticeCells int     `yaml:"max_lattice_cells" env:"MAX_LATTICE_CELLS"`
	LatticeConstant float64 `yaml:"lattice_constant" env:"LATTICE_CONSTANT"`
}

type RedisConfig struct {
	Addr        string   `yaml:"addr" env:"ADDR"`
	Password    string   `yaml:"password" env:"PASSWORD"`
	DB          int      `yaml:"db" env:"DB"`
	KeyPrefix   string   `yaml:"key_prefix" env:"KEY_PREFIX"`
	DialTimeout Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT"`
}

type CacheConfig struct {
	// Backend is one of "none", "memory" or "redis".
	Backend       string      `yaml:"backend" env:"BACKEND"`
	MemoryEntries int         `yaml:"memory_entries" env:"MEMORY_ENTRIES"`
	TTL           Duration    `yaml:"ttl" env:"TTL"`
	Redis         RedisConfig `yaml:"redis" envPrefix:"REDIS_"`
}

type TelemetryConfig struct {
	ServiceName    string            `yaml:"service_name" env:"SERVICE_NAME"`
	Version        string            `yaml:"version" env:"VERSION"`
	OTelEnabled    bool              `yaml:"otel_enabled" env:"OTEL_ENABLED"`
	OTLPEndpoint   string            `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	OTLPInsecure   bool              `yaml:"otlp_insecure" env:"OTLP_INSECURE"`
	OTLPHeaders    map[string]string `yaml:"otlp_headers" env:"OTLP_HEADERS"`
	SampleRatio    float64           `yaml:"sample_ratio" env:"SAMPLE_RATIO"`
	MetricsEnabled bool              `yaml:"metrics_enabled" env:"METRICS_ENABLED"`
}

type Config struct {
	Env       string          `yaml:"env" env:"LOG_MODE"`
	Log       LogConfig       `yaml:"log" envPrefix:"MOIRE_LOG_"`
	HTTP      HTTPConfig      `yaml:"http" envPrefix:"MOIRE_HTTP_"`
	Render    RenderConfig    `yaml:"render" envPrefix:"MOIRE_RENDER_"`
	Cache     CacheConfig     `yaml:"cache" envPrefix:"MOIRE_CACHE_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"MOIRE_TELEMETRY_"`
}
