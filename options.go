package rfile

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/aweris/rfile/internal/imaging"
	"github.com/aweris/rfile/internal/localcache"
	"github.com/aweris/rfile/internal/naming"
)

// EnvBucket names the variable the default bucket is read from.
const EnvBucket = "RFILE_BUCKET"

// DefaultURLTTL is used by URL when no positive ttl is given.
const DefaultURLTTL = 2000 * time.Second

// Options configures an Object.
type Options struct {
	Bucket       string
	TempDir      string
	Logger       zerolog.Logger
	Now          func() time.Time
	StorageClass StorageClass
	Encryption   Encryption
	PollInterval time.Duration
	StallTimeout time.Duration
	NameAttempts int
	Engine       *imaging.Engine
	HTTPClient   *http.Client
}

// Option is a functional option for configuring an Object.
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Bucket:       os.Getenv(EnvBucket),
		Logger:       zerolog.Nop(),
		Now:          time.Now,
		StorageClass: ClassStandard,
		Encryption:   EncryptionAES256,
		PollInterval: localcache.DefaultPollInterval,
		StallTimeout: localcache.DefaultStallTimeout,
		NameAttempts: naming.DefaultAttempts,
		HTTPClient:   http.DefaultClient,
	}
}

// WithBucket overrides the bucket taken from RFILE_BUCKET.
func WithBucket(bucket string) Option {
	return func(o *Options) { o.Bucket = bucket }
}

// WithTempDir sets where local copies are kept.
func WithTempDir(dir string) Option {
	return func(o *Options) { o.TempDir = dir }
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *Options) { o.Logger = log }
}

// WithClock sets the time source for key directories and URL expiry.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		if now != nil {
			o.Now = now
		}
	}
}

func WithStorageClass(class StorageClass) Option {
	return func(o *Options) { o.StorageClass = class }
}

func WithEncryption(enc Encryption) Option {
	return func(o *Options) { o.Encryption = enc }
}

// WithPolling configures the stability wait after a download.
func WithPolling(interval, timeout time.Duration) Option {
	return func(o *Options) {
		if interval > 0 {
			o.PollInterval = interval
		}
		if timeout > 0 {
			o.StallTimeout = timeout
		}
	}
}

// WithNameAttempts caps the candidates tried when allocating a key.
func WithNameAttempts(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.NameAttempts = n
		}
	}
}

// WithEngine replaces the image engine (kernel, background, quality).
func WithEngine(e *imaging.Engine) Option {
	return func(o *Options) { o.Engine = e }
}

// WithHTTPClient sets the client FromURL downloads with.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) {
		if c != nil {
			o.HTTPClient = c
		}
	}
}
