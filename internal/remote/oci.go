package remote

import (
	"bytes"
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/sourcegraph/conc/pool"

	"github.com/aweris/rfile/internal/compression"
)

const DefaultConcurrency = 4

const (
	labelKey          = "dev.rfile.key"
	labelSize         = "dev.rfile.size"
	labelContentType  = "dev.rfile.content-type"
	labelStorageClass = "dev.rfile.storage-class"
	labelEncryption   = "dev.rfile.encryption"

	maxTagLen = 128
)

// tagEncoding keeps tags inside the OCI charset and reversible for List.
var tagEncoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// OCIConfig configures the registry-backed store.
type OCIConfig struct {
	Registry         string // e.g. "ghcr.io/acme"; buckets become repositories below it
	Auth             Authenticator
	Concurrency      int
	CompressionLevel int
	Insecure         bool
}

// OCI stores every object as a single-layer image in <registry>/<bucket>,
// tagged with the encoded key. The layer is zstd-compressed and the config
// labels carry size and write options.
type OCI struct {
	registry    string
	auth        Authenticator
	concurrency int
	insecure    bool
	codec       *compression.Codec
}

func NewOCI(cfg OCIConfig) (*OCI, error) {
	if cfg.Registry == "" {
		return nil, fmt.Errorf("oci registry must be provided")
	}
	codec, err := compression.New(cfg.CompressionLevel)
	if err != nil {
		return nil, err
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &OCI{
		registry:    strings.TrimSuffix(cfg.Registry, "/"),
		auth:        cfg.Auth,
		concurrency: concurrency,
		insecure:    cfg.Insecure,
		codec:       codec,
	}, nil
}

// EncodeTag maps an object key to an image tag.
func EncodeTag(key string) string {
	return tagEncoding.EncodeToString([]byte(key))
}

// DecodeTag reverses EncodeTag.
func DecodeTag(tag string) (string, error) {
	b, err := tagEncoding.DecodeString(tag)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *OCI) Upload(ctx context.Context, bucket, key, srcPath string, opts PutOptions) error {
	tag, err := r.tag(bucket, key)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	img, err := r.buildImage(key, data, opts.ContentType, opts.StorageClass, opts.Encryption)
	if err != nil {
		return fmt.Errorf("build image: %w", err)
	}

	err = r.retry(ctx, func() error {
		return remote.Write(tag, img, r.remoteOptions(ctx)...)
	})
	if err != nil {
		return ociErr("push", tag, err)
	}
	return nil
}

func (r *OCI) Download(ctx context.Context, bucket, key, destPath string) error {
	tag, err := r.tag(bucket, key)
	if err != nil {
		return err
	}

	var img v1.Image
	err = r.retry(ctx, func() error {
		var err error
		img, err = remote.Image(tag, r.remoteOptions(ctx)...)
		return err
	})
	if err != nil {
		return ociErr("pull", tag, err)
	}

	layers, err := img.Layers()
	if err != nil {
		return ociErr("layers", tag, err)
	}
	if len(layers) != 1 {
		return fmt.Errorf("oci %s: expected 1 layer, got %d", tag, len(layers))
	}

	rc, err := layers[0].Compressed()
	if err != nil {
		return ociErr("read layer", tag, err)
	}
	compressed, err := io.ReadAll(rc)
	if cerr := rc.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return ociErr("read layer", tag, err)
	}

	data, err := r.codec.Decode(compressed)
	if err != nil {
		return fmt.Errorf("oci %s: %w", tag, err)
	}
	return os.WriteFile(destPath, data, 0644)
}

func (r *OCI) Delete(ctx context.Context, bucket, key string) error {
	tag, err := r.tag(bucket, key)
	if err != nil {
		return err
	}
	desc, err := remote.Head(tag, r.remoteOptions(ctx)...)
	if err != nil {
		err = ociErr("head", tag, err)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	digest := tag.Context().Digest(desc.Digest.String())

	// Some registries only drop the tag, others refuse tag deletes.
	tagErr := remote.Delete(tag, r.remoteOptions(ctx)...)
	if err := remote.Delete(digest, r.remoteOptions(ctx)...); err != nil {
		err = ociErr("delete", tag, err)
		if tagErr != nil || !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

func (r *OCI) Exists(ctx context.Context, bucket, key string) (bool, error) {
	tag, err := r.tag(bucket, key)
	if err != nil {
		return false, err
	}
	if _, err := remote.Head(tag, r.remoteOptions(ctx)...); err != nil {
		err = ociErr("head", tag, err)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Copy writes a new manifest for dstKey that reuses the source layer. The
// labels are rewritten so the two keys never share a digest.
func (r *OCI) Copy(ctx context.Context, bucket, srcKey, dstKey string, opts CopyOptions) error {
	src, err := r.tag(bucket, srcKey)
	if err != nil {
		return err
	}
	dst, err := r.tag(bucket, dstKey)
	if err != nil {
		return err
	}

	var img v1.Image
	err = r.retry(ctx, func() error {
		var err error
		img, err = remote.Image(src, r.remoteOptions(ctx)...)
		return err
	})
	if err != nil {
		return ociErr("pull", src, err)
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return ociErr("config", src, err)
	}
	cfg = cfg.DeepCopy()
	labels := maps.Clone(cfg.Config.Labels)
	if labels == nil {
		labels = map[string]string{}
	}
	labels[labelKey] = dstKey
	labels[labelStorageClass] = string(opts.StorageClass)
	labels[labelEncryption] = string(opts.Encryption)
	cfg.Config.Labels = labels

	copied, err := mutate.ConfigFile(img, cfg)
	if err != nil {
		return fmt.Errorf("oci %s: %w", dst, err)
	}
	err = r.retry(ctx, func() error {
		return remote.Write(dst, copied, r.remoteOptions(ctx)...)
	})
	if err != nil {
		return ociErr("push", dst, err)
	}
	return nil
}

func (r *OCI) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	repo, err := r.repository(bucket)
	if err != nil {
		return nil, err
	}

	tags, err := remote.List(repo, r.remoteOptions(ctx)...)
	if err != nil {
		err = ociErr("list", repo, err)
		if errors.Is(err, ErrNotFound) {
			return []ObjectInfo{}, nil
		}
		return nil, err
	}

	p := pool.NewWithResults[ObjectInfo]().
		WithMaxGoroutines(r.concurrency).
		WithContext(ctx).
		WithCancelOnError()

	for _, t := range tags {
		key, err := DecodeTag(t)
		if err != nil || !strings.HasPrefix(key, prefix) {
			continue
		}
		tag := repo.Tag(t)
		p.Go(func(ctx context.Context) (ObjectInfo, error) {
			img, err := remote.Image(tag, r.remoteOptions(ctx)...)
			if err != nil {
				return ObjectInfo{}, ociErr("pull", tag, err)
			}
			cfg, err := img.ConfigFile()
			if err != nil {
				return ObjectInfo{}, ociErr("config", tag, err)
			}
			size, err := strconv.ParseInt(cfg.Config.Labels[labelSize], 10, 64)
			if err != nil {
				return ObjectInfo{}, fmt.Errorf("oci %s: bad size label: %w", tag, err)
			}
			return ObjectInfo{Key: key, Size: size}, nil
		})
	}

	results, err := p.Wait()
	if err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results, nil
}

func (r *OCI) SignedURL(ctx context.Context, bucket, key string, expires time.Time, options map[string]string) (string, error) {
	return "", fmt.Errorf("oci signed urls: %w", ErrNotSupported)
}

func (r *OCI) repository(bucket string) (name.Repository, error) {
	var opts []name.Option
	if r.insecure {
		opts = append(opts, name.Insecure)
	}
	repo, err := name.NewRepository(r.registry+"/"+bucket, opts...)
	if err != nil {
		return name.Repository{}, fmt.Errorf("invalid repository for bucket %q: %w", bucket, err)
	}
	return repo, nil
}

func (r *OCI) tag(bucket, key string) (name.Tag, error) {
	repo, err := r.repository(bucket)
	if err != nil {
		return name.Tag{}, err
	}
	t := EncodeTag(key)
	if t == "" || len(t) > maxTagLen {
		return name.Tag{}, fmt.Errorf("key %q does not fit an image tag", key)
	}
	return repo.Tag(t), nil
}

// blobLayer implements v1.Layer with zstd compression for remote transfer
type blobLayer struct {
	compressed   []byte
	uncompressed []byte
}

func (l *blobLayer) Digest() (v1.Hash, error) {
	h, _, err := v1.SHA256(bytes.NewReader(l.compressed))
	return h, err
}

func (l *blobLayer) DiffID() (v1.Hash, error) {
	h, _, err := v1.SHA256(bytes.NewReader(l.uncompressed))
	return h, err
}

func (l *blobLayer) Compressed() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(l.compressed)), nil
}
func (l *blobLayer) Uncompressed() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(l.uncompressed)), nil
}
func (l *blobLayer) Size() (int64, error)                { return int64(len(l.compressed)), nil }
func (l *blobLayer) MediaType() (types.MediaType, error) { return types.OCILayerZStd, nil }

func (r *OCI) buildImage(key string, data []byte, contentType string, class StorageClass, enc Encryption) (v1.Image, error) {
	layer := &blobLayer{compressed: r.codec.Encode(data), uncompressed: data}

	img, err := mutate.AppendLayers(empty.Image, layer)
	if err != nil {
		return nil, err
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return nil, err
	}
	cfg.Config.Labels = map[string]string{
		labelKey:          key,
		labelSize:         strconv.Itoa(len(data)),
		labelContentType:  contentType,
		labelStorageClass: string(class),
		labelEncryption:   string(enc),
	}
	return mutate.ConfigFile(img, cfg)
}

func (r *OCI) remoteOptions(ctx context.Context) []remote.Option {
	options := []remote.Option{remote.WithContext(ctx), remote.WithJobs(r.concurrency)}
	if basic := resolveAuth(r.auth, r.registry); basic != nil {
		return append(options, remote.WithAuth(basic))
	}
	return append(options, remote.WithAuthFromKeychain(authn.DefaultKeychain))
}

// retry retries transient registry failures: 500ms, 1s, 2s.
func (r *OCI) retry(ctx context.Context, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var terr *transport.Error
			if errors.As(err, &terr) {
				return terr.StatusCode >= http.StatusInternalServerError || terr.StatusCode == http.StatusTooManyRequests
			}
			return true
		}),
	)
}

func ociErr(op string, ref fmt.Stringer, err error) error {
	var terr *transport.Error
	if errors.As(err, &terr) {
		switch terr.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("oci %s %s: %w", op, ref, ErrNotFound)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("oci %s %s: %w: %v", op, ref, ErrAccessDenied, err)
		}
		for _, d := range terr.Errors {
			switch d.Code {
			case transport.ManifestUnknownErrorCode, transport.NameUnknownErrorCode, transport.BlobUnknownErrorCode:
				return fmt.Errorf("oci %s %s: %w", op, ref, ErrNotFound)
			case transport.UnauthorizedErrorCode, transport.DeniedErrorCode:
				return fmt.Errorf("oci %s %s: %w: %v", op, ref, ErrAccessDenied, err)
			}
		}
	}
	return fmt.Errorf("oci %s %s: %w: %v", op, ref, ErrUnavailable, err)
}

var _ Store = (*OCI)(nil)
