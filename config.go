package rangefile

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of a Manager, as read from a YAML file.
type Config struct {
	ChunkSize        int64             `yaml:"chunk_size"`
	Timeout          time.Duration     `yaml:"timeout"`
	KeepAliveTimeout time.Duration     `yaml:"keepalive_timeout"`
	UserAgent        string            `yaml:"user_agent"`
	Headers          map[string]string `yaml:"headers"`
	ProxyURL         string            `yaml:"proxy_url"`
	ProxyUsername    string            `yaml:"proxy_username"`
	ProxyPassword    string            `yaml:"proxy_password"`
	RateLimit        float64           `yaml:"rate_limit"` // requests per second, 0 is unlimited
	Burst            int               `yaml:"burst"`
	S3               S3Config          `yaml:"s3"`
	Debug            bool              `yaml:"debug"`
}

func DefaultConfig() *Config {
	return &Config{
		ChunkSize:        DefaultChunkSize,
		Timeout:          60 * time.Second,
		KeepAliveTimeout: 60 * time.Second,
		UserAgent:        "rangefile",
		Burst:            1,
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return errors.New("chunk_size must be positive")
	}
	if c.RateLimit < 0 {
		return errors.New("rate_limit cannot be negative")
	}
	if c.Timeout < 0 || c.KeepAliveTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}
	return nil
}

// NewHTTPClient builds the client used for range requests. Compression is
// disabled since byte offsets refer to the stored representation.
func (c *Config) NewHTTPClient() (*http.Client, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		IdleConnTimeout:     c.KeepAliveTimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		DisableCompression:  true,
	}
	if c.ProxyURL != "" {
		proxyURL, err := url.Parse(c.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy_url: %w", err)
		}
		if c.ProxyUsername != "" {
			if c.ProxyPassword != "" {
				proxyURL.User = url.UserPassword(c.ProxyUsername, c.ProxyPassword)
			} else {
				proxyURL.User = url.User(c.ProxyUsername)
			}
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return &http.Client{
		Timeout:   c.Timeout,
		Transport: transport,
	}, nil
}

// NewManager returns a Manager using these settings.
func (c *Config) NewManager() (*Manager, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	client, err := c.NewHTTPClient()
	if err != nil {
		return nil, err
	}

	m := NewManager()
	m.Client = client
	m.ChunkSize = c.ChunkSize
	m.UserAgent = c.UserAgent
	m.Headers = c.Headers
	m.S3Config = c.S3
	if c.RateLimit > 0 {
		burst := c.Burst
		if burst <= 0 {
			burst = 1
		}
		m.Limiter = rate.NewLimiter(rate.Limit(c.RateLimit), burst)
	}
	return m, nil
}
