// Package config describes the settings of a flist hub.
//
// A single Config is built at startup (see Load) and handed over by pointer to
// every component constructor.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	units "github.com/docker/go-units"
	"github.com/spf13/viper"
)

const (
	// ToolNative builds, merges and inspects archives in-process
	ToolNative = "native"

	// ToolZflist delegates archive operations to the external zflist binary
	ToolZflist = "zflist"

	// DefaultZflistBinary is the location of the zflist binary on a standard hub deployment
	DefaultZflistBinary = "/opt/0-flist/zflist/zflist"
)

// Backend describes how to reach a content-addressable backend.
type Backend struct {
	Host              string `mapstructure:"host" json:"host,omitempty" yaml:"host,omitempty"`
	Port              int    `mapstructure:"port" json:"port,omitempty" yaml:"port,omitempty"`
	Password          string `mapstructure:"password" json:"password,omitempty" yaml:"password,omitempty"`
	Namespace         string `mapstructure:"namespace" json:"namespace,omitempty" yaml:"namespace,omitempty"`
	NamespacePassword string `mapstructure:"namespace-password" json:"namespace-password,omitempty" yaml:"namespace-password,omitempty"`
	TLS               bool   `mapstructure:"tls" json:"tls,omitempty" yaml:"tls,omitempty"`
	// Path selects a local filesystem backend instead of a network one
	Path string `mapstructure:"path" json:"path,omitempty" yaml:"path,omitempty"`
}

// Address yields the backend address as understood by archive tools
func (b Backend) Address() string {
	if b.Path != "" {
		return "file://" + b.Path
	}
	addr := net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
	if b.Namespace != "" {
		return addr + "/" + b.Namespace
	}
	return addr
}

// Display yields the public rendering of a backend address
func (b Backend) Display() string {
	return "zdb://" + net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
}

// Tool selects the implementation of archive operations
type Tool struct {
	Kind   string `mapstructure:"kind" json:"kind,omitempty" yaml:"kind,omitempty"`
	Binary string `mapstructure:"binary" json:"binary,omitempty" yaml:"binary,omitempty"`
}

// Metrics settings. Metrics are collected in-process and only exported when an influxdb address is set.
type Metrics struct {
	InfluxDB string        `mapstructure:"influxdb" json:"influxdb,omitempty" yaml:"influxdb,omitempty"`
	Database string        `mapstructure:"database" json:"database,omitempty" yaml:"database,omitempty"`
	Period   time.Duration `mapstructure:"period" json:"period,omitempty" yaml:"period,omitempty"`
}

// Config for a flist hub
type Config struct {
	PublicDirectory      string        `mapstructure:"public-directory" json:"public-directory,omitempty" yaml:"public-directory,omitempty"`
	WorkDirectory        string        `mapstructure:"work-directory" json:"work-directory,omitempty" yaml:"work-directory,omitempty"`
	UploadDirectory      string        `mapstructure:"upload-directory" json:"upload-directory,omitempty" yaml:"upload-directory,omitempty"`
	AllowedExtensions    []string      `mapstructure:"allowed-extensions" json:"allowed-extensions,omitempty" yaml:"allowed-extensions,omitempty"`
	OfficialRepositories []string      `mapstructure:"official-repositories" json:"official-repositories,omitempty" yaml:"official-repositories,omitempty"`
	PublicWebsite        string        `mapstructure:"public-website" json:"public-website,omitempty" yaml:"public-website,omitempty"`
	Backend              Backend       `mapstructure:"backend" json:"backend,omitempty" yaml:"backend,omitempty"`
	PublicBackend        Backend       `mapstructure:"public-backend" json:"public-backend,omitempty" yaml:"public-backend,omitempty"`
	Tool                 Tool          `mapstructure:"tool" json:"tool,omitempty" yaml:"tool,omitempty"`
	Workers              int           `mapstructure:"workers" json:"workers,omitempty" yaml:"workers,omitempty"`
	BuildTimeout         time.Duration `mapstructure:"build-timeout" json:"build-timeout,omitempty" yaml:"build-timeout,omitempty"`
	LockTimeout          time.Duration `mapstructure:"lock-timeout" json:"lock-timeout,omitempty" yaml:"lock-timeout,omitempty"`
	ValidateBatchSize    int           `mapstructure:"validate-batch-size" json:"validate-batch-size,omitempty" yaml:"validate-batch-size,omitempty"`
	BlockSize            int64         `mapstructure:"block-size" json:"block-size,omitempty" yaml:"block-size,omitempty"`
	Metrics              Metrics       `mapstructure:"metrics" json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Debug                bool          `mapstructure:"debug" json:"debug,omitempty" yaml:"debug,omitempty"`
}

// Default settings for a hub rooted at some base directory
func Default(base string) *Config {
	return &Config{
		PublicDirectory:   base + "/public/users",
		WorkDirectory:     base + "/workdir/temp",
		UploadDirectory:   base + "/workdir/distfiles",
		AllowedExtensions: []string{".tar.gz", ".tar.zst", ".tar"},
		PublicWebsite:     "https://hub.grid.tf",
		Backend: Backend{
			Host: "127.0.0.1",
			Port: 9900,
		},
		PublicBackend: Backend{
			Host: "hub.grid.tf",
			Port: 9900,
		},
		Tool: Tool{
			Kind:   ToolNative,
			Binary: DefaultZflistBinary,
		},
		Workers:           4,
		BuildTimeout:      30 * time.Minute,
		LockTimeout:       30 * time.Second,
		ValidateBatchSize: 4096,
		BlockSize:         units.MiB,
		Metrics: Metrics{
			Database: "flisthub",
			Period:   10 * time.Second,
		},
	}
}

// SetDefaults registers default values into a viper instance
func SetDefaults(v *viper.Viper, base string) {
	d := Default(base)
	v.SetDefault("public-directory", d.PublicDirectory)
	v.SetDefault("work-directory", d.WorkDirectory)
	v.SetDefault("upload-directory", d.UploadDirectory)
	v.SetDefault("allowed-extensions", d.AllowedExtensions)
	v.SetDefault("public-website", d.PublicWebsite)
	v.SetDefault("backend.host", d.Backend.Host)
	v.SetDefault("backend.port", d.Backend.Port)
	v.SetDefault("public-backend.host", d.PublicBackend.Host)
	v.SetDefault("public-backend.port", d.PublicBackend.Port)
	v.SetDefault("tool.kind", d.Tool.Kind)
	v.SetDefault("tool.binary", d.Tool.Binary)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("build-timeout", d.BuildTimeout)
	v.SetDefault("lock-timeout", d.LockTimeout)
	v.SetDefault("validate-batch-size", d.ValidateBatchSize)
	v.SetDefault("block-size", d.BlockSize)
	v.SetDefault("metrics.database", d.Metrics.Database)
	v.SetDefault("metrics.period", d.Metrics.Period)
}

// Load a configuration from viper settings
func Load(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate the settings
func (c *Config) Validate() error {
	switch {
	case c.PublicDirectory == "":
		return fmt.Errorf("invalid configuration: public-directory is required")
	case c.WorkDirectory == "":
		return fmt.Errorf("invalid configuration: work-directory is required")
	case c.UploadDirectory == "":
		return fmt.Errorf("invalid configuration: upload-directory is required")
	case len(c.AllowedExtensions) == 0:
		return fmt.Errorf("invalid configuration: at least one allowed extension is required")
	case c.Workers < 1:
		return fmt.Errorf("invalid configuration: workers must be at least 1, got %d", c.Workers)
	case c.BlockSize < 1:
		return fmt.Errorf("invalid configuration: block-size must be positive, got %d", c.BlockSize)
	}

	switch c.Tool.Kind {
	case ToolNative:
	case ToolZflist:
		if c.Tool.Binary == "" {
			return fmt.Errorf("invalid configuration: the zflist tool requires tool.binary")
		}
	default:
		return fmt.Errorf("invalid configuration: unknown tool kind %q", c.Tool.Kind)
	}
	return nil
}

// IsOfficial tells if a namespace is flagged as an official repository
func (c *Config) IsOfficial(namespace string) bool {
	for _, official := range c.OfficialRepositories {
		if official == namespace {
			return true
		}
	}
	return false
}
