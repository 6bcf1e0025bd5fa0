// Package localcache owns the temporary on-disk copy of a remote object.
//
// A Cache holds at most one file. It is either empty (the object only
// lives remotely), clean (matches the store) or dirty (must be pushed).
// The cache never talks to a store itself: callers hand in a Fetcher to
// fill it and a Pusher to flush it.
package localcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"
)

var (
	ErrIO      = errors.New("localcache: local i/o failure")
	ErrStalled = errors.New("localcache: download never settled")
)

const (
	DefaultPollInterval = 250 * time.Millisecond
	DefaultStallTimeout = 30 * time.Second
	filePrefix          = "rfile-"
)

// Fetcher writes an object's bytes to dest.
type Fetcher func(ctx context.Context, dest string) error

// Pusher uploads the bytes at src.
type Pusher func(ctx context.Context, src string) error

// Cache is not safe for concurrent use.
type Cache struct {
	dir          string
	path         string
	dirty        bool
	pollInterval time.Duration
	stallTimeout time.Duration
	log          zerolog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithPolling sets how the post-download size check polls.
func WithPolling(interval, timeout time.Duration) Option {
	return func(c *Cache) {
		if interval > 0 {
			c.pollInterval = interval
		}
		if timeout > 0 {
			c.stallTimeout = timeout
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// New creates an empty cache placing its files in dir (os.TempDir() when
// empty).
func New(dir string, opts ...Option) *Cache {
	if dir == "" {
		dir = os.TempDir()
	}
	c := &Cache{
		dir:          dir,
		pollInterval: DefaultPollInterval,
		stallTimeout: DefaultStallTimeout,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Path() string  { return c.path }
func (c *Cache) Present() bool { return c.path != "" }
func (c *Cache) Dirty() bool   { return c.dirty }
func (c *Cache) MarkDirty()    { c.dirty = true }

// Size returns the size of the local copy; ok is false when there is none.
func (c *Cache) Size() (size int64, ok bool, err error) {
	if c.path == "" {
		return 0, false, nil
	}
	info, err := os.Stat(c.path)
	if err != nil {
		return 0, false, fmt.Errorf("%w: stat local copy: %w", ErrIO, err)
	}
	return info.Size(), true, nil
}

// Materialize returns the local path, fetching it first when absent. The
// fetched file is only installed once its size stops changing.
func (c *Cache) Materialize(ctx context.Context, ext string, fetch Fetcher) (string, error) {
	if c.path != "" {
		return c.path, nil
	}

	tmp, err := c.Stage(ext)
	if err != nil {
		return "", err
	}
	name := tmp.Name()
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("%w: close temp file: %w", ErrIO, err)
	}

	if err := fetch(ctx, name); err != nil {
		os.Remove(name)
		return "", err
	}
	if err := c.waitStable(ctx, name); err != nil {
		os.Remove(name)
		return "", err
	}

	c.path = name
	c.dirty = false
	c.log.Debug().Str("path", name).Msg("materialized local copy")
	return name, nil
}

// Adopt copies r into a fresh file and installs it as the dirty copy,
// discarding any previous one. On failure the cache is left untouched.
func (c *Cache) Adopt(r io.Reader, ext string) (string, error) {
	tmp, err := c.Stage(ext)
	if err != nil {
		return "", err
	}
	_, err = io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: copy source bytes: %w", ErrIO, err)
	}

	c.Replace(tmp.Name())
	return tmp.Name(), nil
}

// Stage creates a new temp file that is not yet part of the cache.
func (c *Cache) Stage(ext string) (*os.File, error) {
	pattern := filePrefix + "*"
	if ext != "" {
		pattern += "." + ext
	}
	f, err := os.CreateTemp(c.dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %w", ErrIO, err)
	}
	return f, nil
}

// Replace installs path as the dirty local copy. The previous file is
// removed without a flush. If it cannot be removed it is left on disk and
// the new copy is installed anyway, so Replace never fails.
func (c *Cache) Replace(path string) {
	if c.path != "" && c.path != path {
		if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
			c.log.Warn().Err(err).Str("path", c.path).Msg("superseded local copy left on disk")
		}
	}
	c.path = path
	c.dirty = true
	c.log.Debug().Str("path", path).Msg("installed new local copy")
}

// Flush pushes the local copy, if any, and marks it clean.
func (c *Cache) Flush(ctx context.Context, push Pusher) error {
	if c.path == "" {
		return nil
	}
	if err := push(ctx, c.path); err != nil {
		return err
	}
	c.dirty = false
	c.log.Debug().Str("path", c.path).Msg("flushed local copy")
	return nil
}

// Evict flushes a dirty copy and then removes it. Evicting an empty cache
// is a no-op.
func (c *Cache) Evict(ctx context.Context, push Pusher) error {
	if c.path == "" {
		return nil
	}
	if c.dirty {
		if err := c.Flush(ctx, push); err != nil {
			return err
		}
	}
	return c.Discard()
}

// Discard removes the local copy without pushing it.
func (c *Cache) Discard() error {
	if c.path == "" {
		return nil
	}
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove local copy: %w", ErrIO, err)
	}
	c.log.Debug().Str("path", c.path).Bool("dirty", c.dirty).Msg("dropped local copy")
	c.path = ""
	c.dirty = false
	return nil
}

var errGrowing = errors.New("file size still changing")

// waitStable polls the file size until two consecutive reads agree.
func (c *Cache) waitStable(ctx context.Context, path string) error {
	attempts := uint(c.stallTimeout/c.pollInterval) + 1
	if attempts < 2 {
		attempts = 2
	}

	last := int64(-1)
	err := retry.Do(
		func() error {
			info, err := os.Stat(path)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("%w: stat download: %w", ErrIO, err))
			}
			if info.Size() != last {
				last = info.Size()
				return errGrowing
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(c.pollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if errors.Is(err, errGrowing) {
		return fmt.Errorf("%w: %s still changing after %s", ErrStalled, path, c.stallTimeout)
	}
	return err
}
