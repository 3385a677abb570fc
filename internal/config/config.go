package config

import "time"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	CORS      CORSConfig      `yaml:"cors"`
	Auth      AuthConfig      `yaml:"auth"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

type CORSConfig struct {
	AllowOrigins []string `yaml:"allow_origins"`
}

// AuthConfig carries the shared secret trusted frontends present on each
// request. An empty secret disables authentication entirely (open mode).
type AuthConfig struct {
	SharedSecret string `yaml:"shared_secret"`
}

type UpstreamConfig struct {
	// BaseURL, when set, wins over the region table.
	BaseURL string `yaml:"base_url"`
	// Region selects an entry from Regions when BaseURL is empty.
	Region            string            `yaml:"region"`
	Regions           map[string]string `yaml:"regions"`
	APIKey            string            `yaml:"api_key"`
	ChatPath          string            `yaml:"chat_path"`
	AllowedPathPrefix string            `yaml:"allowed_path_prefix"`
	Timeout           time.Duration     `yaml:"timeout"`
}

// ResolveBaseURL returns the upstream base URL: explicit BaseURL first,
// then the configured region, then the default region entry.
func (u UpstreamConfig) ResolveBaseURL() string {
	if u.BaseURL != "" {
		return u.BaseURL
	}
	if url, ok := u.Regions[u.Region]; ok {
		return url
	}
	return u.Regions[DefaultRegion]
}

type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`
	MetricsPort int    `yaml:"metrics_port"`
}

// DefaultRegion is used when no region is configured or the configured
// region is not in the table.
const DefaultRegion = "global"

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			ReadTimeout: 30 * time.Second,
			// Streams stay open for the whole upstream answer.
			WriteTimeout:     300 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		CORS: CORSConfig{},
		Upstream: UpstreamConfig{
			Region: DefaultRegion,
			Regions: map[string]string{
				"global": "https://api.coze.com",
				"cn":     "https://api.coze.cn",
			},
			ChatPath:          "/v3/chat",
			AllowedPathPrefix: "/v3/",
			Timeout:           300 * time.Second,
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			MetricsPort: 9090,
		},
	}
}
