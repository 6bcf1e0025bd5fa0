package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")

	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.StorageClass != "STANDARD" || cfg.Encryption != "AES256" {
		t.Errorf("class/encryption = %s/%s", cfg.StorageClass, cfg.Encryption)
	}
	if cfg.NameAttempts != 50 {
		t.Errorf("name_attempts = %d", cfg.NameAttempts)
	}
	if cfg.URLTTL != 2000*time.Second {
		t.Errorf("url_ttl = %s", cfg.URLTTL)
	}
	if cfg.Cache.PollInterval != 250*time.Millisecond || cfg.Cache.StallTimeout != 30*time.Second {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Store.Driver != DriverFS || cfg.Store.FS.Root != "/data/rfile" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Store.OCI.Concurrency != 4 {
		t.Errorf("oci concurrency = %d", cfg.Store.OCI.Concurrency)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RFILE_BUCKET", "media")
	t.Setenv("RFILE_STORE_DRIVER", "s3")
	t.Setenv("RFILE_STORE_S3_REGION", "eu-west-1")
	t.Setenv("RFILE_STORE_S3_PATH_STYLE", "true")
	t.Setenv("RFILE_CACHE_POLL_INTERVAL", "50ms")

	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bucket != "media" {
		t.Errorf("bucket = %q", cfg.Bucket)
	}
	if cfg.Store.Driver != DriverS3 || cfg.Store.S3.Region != "eu-west-1" || !cfg.Store.S3.PathStyle {
		t.Errorf("s3 = %+v", cfg.Store.S3)
	}
	if cfg.Cache.PollInterval != 50*time.Millisecond {
		t.Errorf("poll interval = %s", cfg.Cache.PollInterval)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	err := v.ReadConfig(strings.NewReader(`
bucket: photos
storage_class: STANDARD_IA
encryption: ""
store:
  driver: minio
  minio:
    endpoint: minio.local:9000
    use_ssl: true
`))
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bucket != "photos" || cfg.StorageClass != "STANDARD_IA" || cfg.Encryption != "" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Store.Minio.Endpoint != "minio.local:9000" || !cfg.Store.Minio.UseSSL {
		t.Errorf("minio = %+v", cfg.Store.Minio)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		set     map[string]any
		wantErr string
	}{
		{"bad class", map[string]any{"storage_class": "COLD"}, "storage_class"},
		{"bad encryption", map[string]any{"encryption": "KMS"}, "encryption"},
		{"bad driver", map[string]any{"store.driver": "ftp"}, "store.driver"},
		{"oci needs registry", map[string]any{"store.driver": "oci"}, "store.oci.registry"},
		{"timeout below interval", map[string]any{"cache.stall_timeout": "1ms"}, "stall_timeout"},
		{"attempts", map[string]any{"name_attempts": 0}, "name_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := Load(v)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
