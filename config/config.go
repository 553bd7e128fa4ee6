package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML either as a
// Go duration string ("30m") or as a plain number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}

	var seconds int64
	if err := value.Decode(&seconds); err != nil {
		return err
	}
	*d = Duration(time.Duration(seconds) * time.Second)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	LogLevel int `yaml:"log_level"`

	Server    ServerConfig    `yaml:"server"`
	Downloads DownloadsConfig `yaml:"downloads"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// DownloadsConfig controls the task scheduler and the streaming pipeline.
type DownloadsConfig struct {
	// Maximum number of tasks allowed in downloading/uploading at once.
	MaxConcurrent int `yaml:"max_concurrent"`

	// Per-provider and per-upload wall-clock timeouts.
	ProviderTimeout Duration `yaml:"provider_timeout"`
	UploadTimeout   Duration `yaml:"upload_timeout"`

	// How long terminal tasks stay in the in-memory view, and how often
	// the eviction sweep runs.
	Retention       Duration `yaml:"retention"`
	CleanupInterval Duration `yaml:"cleanup_interval"`

	// Artifacts smaller than this are rejected as likely error pages.
	MinArtifactBytes int64 `yaml:"min_artifact_bytes"`

	// Root for per-task working directories. Defaults to os.TempDir().
	WorkDir string `yaml:"work_dir"`
}

type StorageConfig struct {
	Endpoint  string   `yaml:"endpoint"`
	Bucket    string   `yaml:"bucket"`
	AccessKey string   `yaml:"access_key"`
	SecretKey string   `yaml:"secret_key"`
	Secure    bool     `yaml:"secure"`
	URLExpiry Duration `yaml:"url_expiry"`
}

type DatabaseConfig struct {
	// Path to the SQLite database file. Empty disables the durable store;
	// tasks then live only in the in-memory view.
	Path string `yaml:"path"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	config.applyDefaults()
	config.applyEnvOverrides()

	return config, nil
}

// Default returns a configuration with all defaults applied, for runs
// without a config file.
func Default() *Config {
	config := &Config{}
	config.applyDefaults()
	config.applyEnvOverrides()
	return config
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}

	if c.Downloads.MaxConcurrent <= 0 {
		c.Downloads.MaxConcurrent = 3
	}
	if c.Downloads.ProviderTimeout <= 0 {
		c.Downloads.ProviderTimeout = Duration(30 * time.Minute)
	}
	if c.Downloads.UploadTimeout <= 0 {
		c.Downloads.UploadTimeout = Duration(15 * time.Minute)
	}
	if c.Downloads.Retention <= 0 {
		c.Downloads.Retention = Duration(24 * time.Hour)
	}
	if c.Downloads.CleanupInterval <= 0 {
		c.Downloads.CleanupInterval = Duration(time.Hour)
	}
	if c.Downloads.MinArtifactBytes <= 0 {
		c.Downloads.MinArtifactBytes = 100_000
	}
	if c.Downloads.WorkDir == "" {
		c.Downloads.WorkDir = os.TempDir()
	}

	if c.Storage.Bucket == "" {
		c.Storage.Bucket = "video-downloads"
	}
	if c.Storage.URLExpiry <= 0 {
		c.Storage.URLExpiry = Duration(12 * time.Hour)
	}
}

// applyEnvOverrides lets endpoints and credentials come from the environment
// so they never need to live in the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		c.Storage.Endpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		c.Storage.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.Storage.SecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		c.Storage.Bucket = v
	}
	if v := os.Getenv("MINIO_SECURE"); v != "" {
		if secure, err := strconv.ParseBool(v); err == nil {
			c.Storage.Secure = secure
		}
	}
}
