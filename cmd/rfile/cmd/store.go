package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aweris/rfile"
	"github.com/aweris/rfile/internal/config"
)

// openStore builds the configured backend. The returned func releases it.
func openStore() (rfile.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store.Driver {
	case config.DriverFS:
		s, err := rfile.NewFSStore(rfile.FSConfig{
			Root:    cfg.Store.FS.Root,
			BaseURL: cfg.Store.FS.BaseURL,
			Secret:  cfg.Store.FS.Secret,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.DriverS3:
		s, err := rfile.NewS3Store(rfile.S3Config{
			Region:     cfg.Store.S3.Region,
			Endpoint:   cfg.Store.S3.Endpoint,
			AccessKey:  cfg.Store.S3.AccessKey,
			SecretKey:  cfg.Store.S3.SecretKey,
			PathStyle:  cfg.Store.S3.PathStyle,
			DisableSSL: cfg.Store.S3.DisableSSL,
		})
		return s, noop, err

	case config.DriverMinio:
		s, err := rfile.NewMinioStore(rfile.MinioConfig{
			Endpoint:  cfg.Store.Minio.Endpoint,
			AccessKey: cfg.Store.Minio.AccessKey,
			SecretKey: cfg.Store.Minio.SecretKey,
			Region:    cfg.Store.Minio.Region,
			UseSSL:    cfg.Store.Minio.UseSSL,
		})
		return s, noop, err

	case config.DriverOCI:
		oc := rfile.OCIConfig{
			Registry:    cfg.Store.OCI.Registry,
			Concurrency: cfg.Store.OCI.Concurrency,
			Auth:        rfile.KeychainAuthenticator{},
		}
		if cfg.Store.OCI.Username != "" {
			oc.Auth = rfile.StaticAuthenticator{Username: cfg.Store.OCI.Username, Password: cfg.Store.OCI.Password}
		}
		s, err := rfile.NewOCIStore(oc)
		return s, noop, err
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func objectOptions() []rfile.Option {
	return []rfile.Option{
		rfile.WithBucket(cfg.Bucket),
		rfile.WithTempDir(cfg.TempDir),
		rfile.WithLogger(log),
		rfile.WithStorageClass(rfile.StorageClass(cfg.StorageClass)),
		rfile.WithEncryption(rfile.Encryption(cfg.Encryption)),
		rfile.WithPolling(cfg.Cache.PollInterval, cfg.Cache.StallTimeout),
		rfile.WithNameAttempts(cfg.NameAttempts),
	}
}

// withObject opens key, runs fn and closes the object, which pushes any
// change fn made.
func withObject(cmd *cobra.Command, key string, fn func(context.Context, *rfile.Object) error) (err error) {
	store, release, err := openStore()
	if err != nil {
		return err
	}
	defer release()

	obj, err := rfile.FromKey(store, key, objectOptions()...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := obj.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(cmd.Context(), obj)
}

// withUpload is withObject for objects created from local bytes.
func withUpload(cmd *cobra.Command, create func(context.Context, rfile.Store, []rfile.Option) (*rfile.Object, error)) (err error) {
	store, release, err := openStore()
	if err != nil {
		return err
	}
	defer release()

	obj, err := create(cmd.Context(), store, objectOptions())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := obj.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := obj.Push(cmd.Context()); err != nil {
		return err
	}
	log.Info().Str("key", obj.Key()).Str("content_type", obj.ContentType()).Msg("stored")
	fmt.Fprintln(cmd.OutOrStdout(), obj.Key())
	return nil
}
