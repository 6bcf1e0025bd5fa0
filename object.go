package rfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/aweris/rfile/internal/imaging"
	"github.com/aweris/rfile/internal/localcache"
	"github.com/aweris/rfile/internal/naming"
)

// ImageInfo is what Dimensions reports.
type ImageInfo = imaging.Info

// Object is a file that lives in a Store and is copied to local disk on
// demand. Local changes are pushed back on Push, CopyTo or Close.
//
// An Object is not safe for concurrent use.
type Object struct {
	store  Store
	names  *naming.Generator
	cache  *localcache.Cache
	engine *imaging.Engine
	log    zerolog.Logger
	now    func() time.Time

	bucket      string
	key         string
	dir         string
	contentType string
	class       StorageClass
	enc         Encryption
	size        int64
	deleted     bool
}

func newObject(store Store, opts []Option) *Object {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.Engine == nil {
		options.Engine = imaging.NewEngine()
	}

	return &Object{
		store: store,
		names: naming.New(store,
			naming.WithClock(options.Now),
			naming.WithAttempts(options.NameAttempts),
		),
		cache: localcache.New(options.TempDir,
			localcache.WithPolling(options.PollInterval, options.StallTimeout),
			localcache.WithLogger(options.Logger),
		),
		engine: options.Engine,
		log:    options.Logger,
		now:    options.Now,
		bucket: options.Bucket,
		class:  options.StorageClass,
		enc:    options.Encryption,
		size:   -1,
	}
}

// FromUpload copies r into a new local file and allocates a fresh key for
// it. The object starts dirty: nothing is written to the store until Push
// or Close.
func FromUpload(ctx context.Context, store Store, r io.Reader, filename string, opts ...Option) (*Object, error) {
	o := newObject(store, opts)
	if o.bucket == "" {
		return nil, ErrNoBucket
	}

	p, err := o.cache.Adopt(r, naming.Extension(naming.Sanitize(filename)))
	if err != nil {
		return nil, err
	}
	o.contentType = detectContentType(p)

	dir, file, err := o.names.Generate(ctx, filename, o.bucket)
	if err != nil {
		return nil, errors.Join(err, o.cache.Discard())
	}
	o.dir = dir
	o.key = path.Join(dir, file)

	o.log.Debug().Str("bucket", o.bucket).Str("key", o.key).Str("content_type", o.contentType).Msg("created object from upload")
	return o, nil
}

// FromFile is FromUpload reading from a local path.
func FromFile(ctx context.Context, store Store, p string, opts ...Option) (*Object, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer f.Close()
	return FromUpload(ctx, store, f, filepath.Base(p), opts...)
}

// FromURL downloads rawURL over HTTP and wraps the body like FromUpload.
// ext, when set, replaces the extension taken from the URL path.
func FromURL(ctx context.Context, store Store, rawURL, ext string, opts ...Option) (*Object, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	name := path.Base(u.Path)
	if ext != "" {
		name = "download." + ext
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	var resp *http.Response
	err = retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			r, err := options.HTTPClient.Do(req)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
			}
			if r.StatusCode != http.StatusOK {
				r.Body.Close()
				return httpErr(rawURL, r)
			}
			resp = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.RetryIf(func(err error) bool { return errors.Is(err, ErrStoreUnavailable) }),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return FromUpload(ctx, store, resp.Body, name, opts...)
}

func httpErr(rawURL string, r *http.Response) error {
	switch {
	case r.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: GET %s: %s", ErrNotFound, rawURL, r.Status)
	case r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: GET %s: %s", ErrAccessDenied, rawURL, r.Status)
	case r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: GET %s: %s", ErrStoreUnavailable, rawURL, r.Status)
	}
	return fmt.Errorf("%w: GET %s: unexpected %s", ErrIO, rawURL, r.Status)
}

// FromKey wraps an object that already exists in the store. Nothing is
// fetched until the bytes are needed.
func FromKey(store Store, key string, opts ...Option) (*Object, error) {
	if key == "" {
		return nil, ErrNoKey
	}
	o := newObject(store, opts)
	if o.bucket == "" {
		return nil, ErrNoBucket
	}
	o.key = key
	o.dir = dirOf(key)
	return o, nil
}

func (o *Object) Key() string                { return o.key }
func (o *Object) Bucket() string             { return o.bucket }
func (o *Object) Dir() string                { return o.dir }
func (o *Object) ContentType() string        { return o.contentType }
func (o *Object) StorageClass() StorageClass { return o.class }
func (o *Object) Encryption() Encryption     { return o.enc }
func (o *Object) Dirty() bool                { return o.cache.Dirty() }
func (o *Object) Deleted() bool              { return o.deleted }

// SetBucket moves the object's identity to another bucket. The local copy,
// if any, is kept and will be pushed there.
func (o *Object) SetBucket(bucket string) {
	o.bucket = bucket
	o.size = -1
}

// Assign points the object at key, dropping any local copy. It is the only
// operation allowed after Delete.
func (o *Object) Assign(key string) error {
	if key == "" {
		return ErrNoKey
	}
	if err := o.cache.Discard(); err != nil {
		return err
	}
	o.key = key
	o.dir = dirOf(key)
	o.contentType = ""
	o.size = -1
	o.deleted = false
	return nil
}

func (o *Object) check() error {
	switch {
	case o.deleted:
		return fmt.Errorf("%w: %s", ErrAlreadyDeleted, o.key)
	case o.key == "":
		return ErrNoKey
	case o.bucket == "":
		return ErrNoBucket
	}
	return nil
}

// LocalPath returns the local copy, downloading it first when needed.
func (o *Object) LocalPath(ctx context.Context) (string, error) {
	if err := o.check(); err != nil {
		return "", err
	}
	return o.cache.Materialize(ctx, naming.Extension(o.key), o.fetch)
}

// Dimensions reads the image header of the local copy.
func (o *Object) Dimensions(ctx context.Context) (ImageInfo, error) {
	p, err := o.LocalPath(ctx)
	if err != nil {
		return ImageInfo{}, err
	}
	info, err := inspect(p)
	if err != nil {
		return ImageInfo{}, err
	}
	o.contentType = info.MIME
	return info, nil
}

// Push writes the local copy, if any, to the store.
func (o *Object) Push(ctx context.Context) error {
	if err := o.check(); err != nil {
		return err
	}
	return o.cache.Flush(ctx, o.push)
}

// Pull drops the local copy, unpushed changes included, and downloads the
// stored bytes again.
func (o *Object) Pull(ctx context.Context) (string, error) {
	if err := o.check(); err != nil {
		return "", err
	}
	if err := o.cache.Discard(); err != nil {
		return "", err
	}
	o.size = -1
	return o.LocalPath(ctx)
}

// URL returns a time-limited link to the stored object. The expiry is
// rounded up to a multiple of 1000 seconds so repeated calls hand out the
// same link. A non-positive ttl means DefaultURLTTL.
func (o *Object) URL(ctx context.Context, options map[string]string, ttl time.Duration) (string, error) {
	if err := o.check(); err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}

	opts := make(map[string]string, len(options)+1)
	maps.Copy(opts, options)
	opts[OptionSecure] = "true"

	return o.store.SignedURL(ctx, o.bucket, o.key, expiry(o.now(), ttl), opts)
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	secs := now.Add(ttl).Unix()
	return time.Unix((secs+999)/1000*1000, 0)
}

// CopyTo copies the object server-side to a freshly allocated key, under
// prefix/dir when prefix is set, and switches the object to it. The old
// entry stays in the store.
func (o *Object) CopyTo(ctx context.Context, prefix string) (string, error) {
	if err := o.Push(ctx); err != nil {
		return "", err
	}

	dir := o.dir
	if prefix != "" {
		dir = path.Join(prefix, o.dir)
	}
	dir, file, err := o.names.GenerateIn(ctx, dir, path.Base(o.key), o.bucket)
	if err != nil {
		return "", err
	}
	newKey := path.Join(dir, file)

	if err := o.store.Copy(ctx, o.bucket, o.key, newKey, CopyOptions{StorageClass: o.class, Encryption: o.enc}); err != nil {
		return "", fmt.Errorf("copy %s to %s: %w", o.key, newKey, err)
	}
	o.log.Debug().Str("from", o.key).Str("to", newKey).Msg("copied object")

	o.key = newKey
	o.dir = dir
	if o.cache.Dirty() {
		if err := o.cache.Flush(ctx, o.push); err != nil {
			return "", err
		}
	}
	return newKey, nil
}

// Delete removes the stored entry and the local copy. Every later call
// other than Assign or Close fails with ErrAlreadyDeleted.
func (o *Object) Delete(ctx context.Context) error {
	if err := o.check(); err != nil {
		return err
	}
	if err := o.store.Delete(ctx, o.bucket, o.key); err != nil {
		return fmt.Errorf("delete %s: %w", o.key, err)
	}
	o.deleted = true
	o.size = -1
	o.log.Debug().Str("bucket", o.bucket).Str("key", o.key).Msg("deleted object")
	return o.cache.Discard()
}

// Size is the object's length in bytes, from the local copy when there is
// one and from the store listing otherwise.
func (o *Object) Size(ctx context.Context) (int64, error) {
	if err := o.check(); err != nil {
		return 0, err
	}
	if o.size >= 0 {
		return o.size, nil
	}

	size, ok, err := o.cache.Size()
	if err != nil {
		return 0, err
	}
	if ok {
		o.size = size
		return size, nil
	}

	infos, err := o.store.List(ctx, o.bucket, o.key)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", o.key, err)
	}
	for _, info := range infos {
		if info.Key == o.key {
			o.size = info.Size
			return info.Size, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrNotFound, o.key)
}

// Open returns a read handle on the local copy.
func (o *Object) Open(ctx context.Context) (*File, error) {
	p, err := o.LocalPath(ctx)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return &File{f: f, name: path.Base(o.key)}, nil
}

// Close pushes unflushed changes and removes the local copy. The object
// can still be used afterwards and will download again when needed. A
// deleted object's bytes are dropped without a push.
func (o *Object) Close() error {
	if o.deleted || o.key == "" || o.bucket == "" {
		return o.cache.Discard()
	}
	return o.cache.Evict(context.Background(), o.push)
}

func (o *Object) fetch(ctx context.Context, dest string) error {
	if err := o.store.Download(ctx, o.bucket, o.key, dest); err != nil {
		return fmt.Errorf("download %s: %w", o.key, err)
	}
	return nil
}

func (o *Object) push(ctx context.Context, src string) error {
	if o.contentType == "" {
		o.contentType = detectContentType(src)
	}
	err := o.store.Upload(ctx, o.bucket, o.key, src, PutOptions{
		ContentType:  o.contentType,
		StorageClass: o.class,
		Encryption:   o.enc,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", o.key, err)
	}
	o.log.Debug().Str("bucket", o.bucket).Str("key", o.key).Msg("pushed object")
	return nil
}

func inspect(p string) (imaging.Info, error) {
	f, err := os.Open(p)
	if err != nil {
		return imaging.Info{}, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer f.Close()
	return imaging.Inspect(f)
}

// detectContentType prefers the decoder's answer for images and falls back
// to sniffing.
func detectContentType(p string) string {
	if info, err := inspect(p); err == nil {
		return info.MIME
	}
	if m, err := mimetype.DetectFile(p); err == nil {
		return m.String()
	}
	return ""
}

func dirOf(key string) string {
	if d := path.Dir(key); d != "." && d != "/" {
		return d
	}
	return ""
}
