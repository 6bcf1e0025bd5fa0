package remote

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// FSConfig configures the local directory store.
type FSConfig struct {
	Root    string
	BaseURL string // prefix of signed URLs; defaults to file://<root>
	Secret  string // HMAC key for signed URLs; empty disables signing
}

// FS stores objects as plain files under root/bucket/key and keeps their
// metadata in a bbolt database next to them.
//
// Layout:
//
//	root/
//	  .rfile.db          (bucket\x00key -> fsMeta)
//	  <bucket>/<key>     (object bytes)
type FS struct {
	root    string
	baseURL *url.URL
	secret  []byte
	db      *bolt.DB
}

var fsObjectsBucket = []byte("objects")

type fsMeta struct {
	Size         int64        `json:"size"`
	ContentType  string       `json:"content_type,omitempty"`
	StorageClass StorageClass `json:"storage_class,omitempty"`
	Encryption   Encryption   `json:"encryption,omitempty"`
	ModTime      time.Time    `json:"mod_time"`
}

func NewFS(cfg FSConfig) (*FS, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("fs store root must be provided")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create root dir: %w", err)
	}

	base := cfg.BaseURL
	if base == "" {
		base = "file://" + filepath.ToSlash(root)
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", base, err)
	}

	db, err := bolt.Open(filepath.Join(root, ".rfile.db"), 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open metadata db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(fsObjectsBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init metadata db: %w", err)
	}

	return &FS{
		root:    root,
		baseURL: baseURL,
		secret:  []byte(cfg.Secret),
		db:      db,
	}, nil
}

// Close releases the metadata database.
func (s *FS) Close() error {
	return s.db.Close()
}

func (s *FS) Upload(ctx context.Context, bucket, key, srcPath string, opts PutOptions) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	dst, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}
	size, err := writeAtomic(dst, src)
	if err != nil {
		return fsErr(err)
	}

	return s.putMeta(bucket, key, fsMeta{
		Size:         size,
		ContentType:  opts.ContentType,
		StorageClass: opts.StorageClass,
		Encryption:   opts.Encryption,
		ModTime:      time.Now().UTC(),
	})
}

func (s *FS) Download(ctx context.Context, bucket, key, destPath string) error {
	p, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}
	src, err := os.Open(p)
	if err != nil {
		return fsErr(err)
	}
	defer src.Close()

	dst, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy object: %w", err)
	}
	return dst.Close()
}

func (s *FS) Delete(ctx context.Context, bucket, key string) error {
	p, err := s.objectPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fsErr(err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(fsObjectsBucket).Delete(metaKey(bucket, key))
	})
}

func (s *FS) Exists(ctx context.Context, bucket, key string) (bool, error) {
	p, err := s.objectPath(bucket, key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fsErr(err)
}

func (s *FS) Copy(ctx context.Context, bucket, srcKey, dstKey string, opts CopyOptions) error {
	srcPath, err := s.objectPath(bucket, srcKey)
	if err != nil {
		return err
	}
	dstPath, err := s.objectPath(bucket, dstKey)
	if err != nil {
		return err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return fsErr(err)
	}
	defer src.Close()

	size, err := writeAtomic(dstPath, src)
	if err != nil {
		return fsErr(err)
	}

	meta, _ := s.getMeta(bucket, srcKey)
	meta.Size = size
	meta.StorageClass = opts.StorageClass
	meta.Encryption = opts.Encryption
	meta.ModTime = time.Now().UTC()
	return s.putMeta(bucket, dstKey, meta)
}

func (s *FS) List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	var results []ObjectInfo
	seek := metaKey(bucket, prefix)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(fsObjectsBucket).Cursor()
		for k, v := c.Seek(seek); k != nil && strings.HasPrefix(string(k), string(seek)); k, v = c.Next() {
			var meta fsMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return fmt.Errorf("decode metadata for %q: %w", k, err)
			}
			_, key, _ := strings.Cut(string(k), "\x00")
			results = append(results, ObjectInfo{Key: key, Size: meta.Size})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *FS) SignedURL(ctx context.Context, bucket, key string, expires time.Time, options map[string]string) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("fs store has no signing secret: %w", ErrNotSupported)
	}

	u := *s.baseURL
	u.Path = path.Join(u.Path, bucket, key)
	if options[OptionSecure] == "true" && u.Scheme == "http" {
		u.Scheme = "https"
	}

	q := url.Values{}
	for k, v := range options {
		if k == OptionSecure {
			continue
		}
		q.Set(k, v)
	}
	q.Set("expires", strconv.FormatInt(expires.Unix(), 10))
	q.Set("signature", s.sign(bucket, key, q))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Verify checks a query produced by SignedURL.
func (s *FS) Verify(bucket, key string, query url.Values, now time.Time) error {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	sig := q.Get("signature")
	q.Del("signature")

	exp, err := strconv.ParseInt(q.Get("expires"), 10, 64)
	if err != nil {
		return fmt.Errorf("bad expiry: %w", ErrAccessDenied)
	}
	if now.Unix() > exp {
		return fmt.Errorf("link expired: %w", ErrAccessDenied)
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(bucket, key, q))) {
		return fmt.Errorf("signature mismatch: %w", ErrAccessDenied)
	}
	return nil
}

func (s *FS) sign(bucket, key string, q url.Values) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(bucket + "/" + key + "?" + q.Encode()))
	return hex.EncodeToString(h.Sum(nil))
}

// objectPath maps (bucket, key) to a path that cannot escape the bucket dir.
func (s *FS) objectPath(bucket, key string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || strings.HasPrefix(bucket, ".") {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	clean := path.Clean("/" + key)
	if key == "" || clean == "/" {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.root, bucket, filepath.FromSlash(clean)), nil
}

func (s *FS) putMeta(bucket, key string, meta fsMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(fsObjectsBucket).Put(metaKey(bucket, key), data)
	})
}

func (s *FS) getMeta(bucket, key string) (fsMeta, error) {
	var meta fsMeta
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(fsObjectsBucket).Get(metaKey(bucket, key))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &meta)
	})
	return meta, err
}

func metaKey(bucket, key string) []byte {
	return []byte(bucket + "\x00" + key)
}

// writeAtomic writes r to a sibling temp file and renames it over dst so
// readers never observe a partial object.
func writeAtomic(dst string, r io.Reader) (int64, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("create object dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp object: %w", err)
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("write object: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("commit object: %w", err)
	}
	return n, nil
}

func fsErr(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	return err
}

var _ Store = (*FS)(nil)
