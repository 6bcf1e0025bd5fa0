package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/encrypt"
)

// MinioConfig encapsulates the connection info for MinIO and other
// S3-compatible services.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// Minio implements Store with minio-go.
type Minio struct {
	client *minio.Client
}

func NewMinio(cfg MinioConfig) (*Minio, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio credentials must be provided")
	}

	endpoint := cfg.Endpoint
	secure := cfg.UseSSL
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		secure = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Minio{client: client}, nil
}

func (m *Minio) Upload(ctx context.Context, bucket, key, srcPath string, opts PutOptions) error {
	_, err := m.client.FPutObject(ctx, bucket, key, srcPath, minio.PutObjectOptions{
		ContentType:          opts.ContentType,
		StorageClass:         string(opts.StorageClass),
		ServerSideEncryption: minioSSE(opts.Encryption),
	})
	if err != nil {
		return minioErr("put", bucket, key, err)
	}
	return nil
}

func (m *Minio) Download(ctx context.Context, bucket, key, destPath string) error {
	if err := m.client.FGetObject(ctx, bucket, key, destPath, minio.GetObjectOptions{}); err != nil {
		return minioErr("get", bucket, key, err)
	}
	return nil
}

func (m *Minio) Delete(ctx context.Context, bucket, key string) error {
	if err := m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return minioErr("delete", bucket, key, err)
	}
	return nil
}

func (m *Minio) Exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	err = minioErr("stat", bucket, key, err)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Copy replaces the destination metadata so the storage class applies;
// the content type is carried over from the source explicitly.
func (m *Minio) Copy(ctx context.Context, bucket, srcKey, dstKey string, opts CopyOptions) error {
	info, err := m.client.StatObject(ctx, bucket, srcKey, minio.StatObjectOptions{})
	if err != nil {
		return minioErr("stat", bucket, srcKey, err)
	}

	meta := map[string]string{}
	if info.ContentType != "" {
		meta["Content-Type"] = info.ContentType
	}
	if opts.StorageClass != "" {
		meta["X-Amz-Storage-Class"] = string(opts.StorageClass)
	}

	_, err = m.client.CopyObject(ctx,
		minio.CopyDestOptions{
			Bucket:          bucket,
			Object:          dstKey,
			Encryption:      minioSSE(opts.Encryption),
			UserMetadata:    meta,
			ReplaceMetadata: true,
		},
		minio.CopySrcOptions{Bucket: bucket, Object: srcKey},
	)
	if err != nil {
		return minioErr("copy", bucket, srcKey, err)
	}
	return nil
}

func (m *Minio) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	results := make([]ObjectInfo, 0)
	for obj := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, minioErr("list", bucket, prefix, obj.Err)
		}
		results = append(results, ObjectInfo{Key: obj.Key, Size: obj.Size})
	}
	return results, nil
}

// SignedURL presigns with minio-go, which always signs at the current time;
// only the expiry is stable across calls.
func (m *Minio) SignedURL(ctx context.Context, bucket, key string, expires time.Time, options map[string]string) (string, error) {
	params := url.Values{}
	for k, v := range options {
		if k != OptionSecure {
			params.Set(k, v)
		}
	}
	link, err := m.client.PresignedGetObject(ctx, bucket, key, time.Until(expires), params)
	if err != nil {
		return "", minioErr("presign", bucket, key, err)
	}
	return secureLink(link.String(), options)
}

func minioSSE(e Encryption) encrypt.ServerSide {
	if e == EncryptionAES256 {
		return encrypt.NewSSE()
	}
	return nil
}

func minioErr(op, bucket, key string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("minio %s %s/%s: %w", op, bucket, key, ErrNotFound)
	case resp.Code == "AccessDenied" || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("minio %s %s/%s: %w: %v", op, bucket, key, ErrAccessDenied, err)
	}
	return fmt.Errorf("minio %s %s/%s: %w: %v", op, bucket, key, ErrUnavailable, err)
}

var _ Store = (*Minio)(nil)
