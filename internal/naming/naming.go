// Package naming allocates collision-free object keys.
//
// Keys look like "YYYYMM/<token>.<ext>": objects group by month and the
// token is re-drawn until the store reports the key as free. This is a
// generate-and-verify scheme; two writers can still race between the
// existence check and the first upload.
package naming

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrExhausted = errors.New("naming: no free key found")

const (
	DefaultAttempts = 50
	tokenLen        = 8
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._]`)

// Checker is the slice of the store the generator needs.
type Checker interface {
	Exists(ctx context.Context, bucket, key string) (bool, error)
}

// Generator draws names and verifies them against a Checker.
type Generator struct {
	store    Checker
	now      func() time.Time
	token    func() string
	attempts int
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock sets the time source for the directory bucket.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithTokens overrides the random token source.
func WithTokens(token func() string) Option {
	return func(g *Generator) {
		if token != nil {
			g.token = token
		}
	}
}

// WithAttempts caps how many candidates are checked.
func WithAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.attempts = n
		}
	}
}

func New(store Checker, opts ...Option) *Generator {
	g := &Generator{
		store:    store,
		now:      time.Now,
		token:    Token,
		attempts: DefaultAttempts,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate picks a free filename inside the current time bucket.
func (g *Generator) Generate(ctx context.Context, name, bucket string) (dir, filename string, err error) {
	return g.GenerateIn(ctx, TimeBucket(g.now()), name, bucket)
}

// GenerateIn picks a free filename inside dir, keeping name's extension.
func (g *Generator) GenerateIn(ctx context.Context, dir, name, bucket string) (string, string, error) {
	ext := Extension(Sanitize(name))
	for i := 0; i < g.attempts; i++ {
		candidate := g.token()
		if ext != "" {
			candidate += "." + ext
		}

		exists, err := g.store.Exists(ctx, bucket, path.Join(dir, candidate))
		if err != nil {
			return "", "", fmt.Errorf("check %s/%s: %w", dir, candidate, err)
		}
		if !exists {
			return dir, candidate, nil
		}
	}
	return "", "", fmt.Errorf("%w after %d attempts in %s", ErrExhausted, g.attempts, dir)
}

// Sanitize replaces every character outside [A-Za-z0-9._] with '_'.
func Sanitize(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// Extension returns the text after the last '.', or "" without one.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return name[i+1:]
}

// TimeBucket is the directory objects created at t are grouped under.
func TimeBucket(t time.Time) string {
	return t.Format("200601")
}

// Token returns a short random name: the md5 of a random UUID, base64url
// encoded and truncated.
func Token() string {
	seed := uuid.New()
	sum := md5.Sum(seed[:])
	return base64.RawURLEncoding.EncodeToString(sum[:])[:tokenLen]
}
