// Package config reads the CLI settings from viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aweris/rfile/internal/remote"
)

const (
	DriverFS    = "fs"
	DriverS3    = "s3"
	DriverMinio = "minio"
	DriverOCI   = "oci"
)

// EnvPrefix is prepended to every key when read from the environment,
// with dots turned into underscores: store.s3.region -> RFILE_STORE_S3_REGION.
const EnvPrefix = "RFILE"

type Config struct {
	Bucket       string        `mapstructure:"bucket"`
	TempDir      string        `mapstructure:"temp_dir"`
	StorageClass string        `mapstructure:"storage_class"`
	Encryption   string        `mapstructure:"encryption"`
	LogLevel     string        `mapstructure:"log_level"`
	NameAttempts int           `mapstructure:"name_attempts"`
	URLTTL       time.Duration `mapstructure:"url_ttl"`
	Cache        CacheConfig   `mapstructure:"cache"`
	Store        StoreConfig   `mapstructure:"store"`
}

type CacheConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	StallTimeout time.Duration `mapstructure:"stall_timeout"`
}

type StoreConfig struct {
	Driver string      `mapstructure:"driver"`
	FS     FSConfig    `mapstructure:"fs"`
	S3     S3Config    `mapstructure:"s3"`
	Minio  MinioConfig `mapstructure:"minio"`
	OCI    OCIConfig   `mapstructure:"oci"`
}

type FSConfig struct {
	Root    string `mapstructure:"root"`
	BaseURL string `mapstructure:"base_url"`
	Secret  string `mapstructure:"secret"`
}

type S3Config struct {
	Region     string `mapstructure:"region"`
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	PathStyle  bool   `mapstructure:"path_style"`
	DisableSSL bool   `mapstructure:"disable_ssl"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type OCIConfig struct {
	Registry    string `mapstructure:"registry"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	Concurrency int    `mapstructure:"concurrency"`
}

// SetDefaults registers every key so that environment overrides work
// without a config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("bucket", "")
	v.SetDefault("temp_dir", "")
	v.SetDefault("storage_class", string(remote.ClassStandard))
	v.SetDefault("encryption", string(remote.EncryptionAES256))
	v.SetDefault("log_level", "info")
	v.SetDefault("name_attempts", 50)
	v.SetDefault("url_ttl", 2000*time.Second)

	v.SetDefault("cache.poll_interval", 250*time.Millisecond)
	v.SetDefault("cache.stall_timeout", 30*time.Second)

	v.SetDefault("store.driver", DriverFS)
	v.SetDefault("store.fs.root", defaultStoreRoot())
	v.SetDefault("store.fs.base_url", "")
	v.SetDefault("store.fs.secret", "")

	v.SetDefault("store.s3.region", "us-east-1")
	v.SetDefault("store.s3.endpoint", "")
	v.SetDefault("store.s3.access_key", "")
	v.SetDefault("store.s3.secret_key", "")
	v.SetDefault("store.s3.path_style", false)
	v.SetDefault("store.s3.disable_ssl", false)

	v.SetDefault("store.minio.endpoint", "localhost:9000")
	v.SetDefault("store.minio.access_key", "")
	v.SetDefault("store.minio.secret_key", "")
	v.SetDefault("store.minio.region", "")
	v.SetDefault("store.minio.use_ssl", false)

	v.SetDefault("store.oci.registry", "")
	v.SetDefault("store.oci.username", "")
	v.SetDefault("store.oci.password", "")
	v.SetDefault("store.oci.concurrency", remote.DefaultConcurrency)
}

// BindEnv makes every key readable from RFILE_* variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load applies defaults and environment bindings to v, then decodes and
// validates it.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	BindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if !remote.StorageClass(c.StorageClass).Valid() {
		errs = append(errs, fmt.Errorf("unknown storage_class %q", c.StorageClass))
	}
	if !remote.Encryption(c.Encryption).Valid() {
		errs = append(errs, fmt.Errorf("unknown encryption %q", c.Encryption))
	}
	if c.NameAttempts <= 0 {
		errs = append(errs, fmt.Errorf("name_attempts must be positive"))
	}
	if c.Cache.PollInterval <= 0 || c.Cache.StallTimeout < c.Cache.PollInterval {
		errs = append(errs, fmt.Errorf("cache.stall_timeout must be at least cache.poll_interval"))
	}

	switch c.Store.Driver {
	case DriverFS:
		if c.Store.FS.Root == "" {
			errs = append(errs, fmt.Errorf("store.fs.root is required"))
		}
	case DriverS3:
		if c.Store.S3.Region == "" {
			errs = append(errs, fmt.Errorf("store.s3.region is required"))
		}
	case DriverMinio:
		if c.Store.Minio.Endpoint == "" {
			errs = append(errs, fmt.Errorf("store.minio.endpoint is required"))
		}
	case DriverOCI:
		if c.Store.OCI.Registry == "" {
			errs = append(errs, fmt.Errorf("store.oci.registry is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	return errors.Join(errs...)
}

func defaultStoreRoot() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "rfile")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "rfile")
	}
	return ".rfile"
}
