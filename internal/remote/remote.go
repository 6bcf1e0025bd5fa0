// Package remote implements the durable object stores an rfile object is
// synchronized with.
//
// Every backend speaks the same narrow Store contract:
// - Upload/Download move whole files between a local path and (bucket, key)
// - Exists/List answer metadata questions without downloading
// - Copy is server-side, SignedURL hands out time-limited read links
package remote

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("remote: object not found")
	ErrAccessDenied = errors.New("remote: access denied")
	ErrUnavailable  = errors.New("remote: store unavailable")
	ErrNotSupported = errors.New("remote: operation not supported")
)

// StorageClass is the durability/performance tier of a stored object.
type StorageClass string

const (
	ClassStandard           StorageClass = "STANDARD"
	ClassReducedRedundancy  StorageClass = "REDUCED_REDUNDANCY"
	ClassStandardIA         StorageClass = "STANDARD_IA"
	ClassOneZoneIA          StorageClass = "ONEZONE_IA"
	ClassIntelligentTiering StorageClass = "INTELLIGENT_TIERING"
	ClassGlacier            StorageClass = "GLACIER"
)

// Valid reports whether c is a known storage class.
func (c StorageClass) Valid() bool {
	switch c {
	case ClassStandard, ClassReducedRedundancy, ClassStandardIA,
		ClassOneZoneIA, ClassIntelligentTiering, ClassGlacier:
		return true
	}
	return false
}

// Encryption is the server-side encryption mode applied on write.
type Encryption string

const (
	EncryptionNone   Encryption = ""
	EncryptionAES256 Encryption = "AES256"
)

// Valid reports whether e is a known encryption mode.
func (e Encryption) Valid() bool {
	return e == EncryptionNone || e == EncryptionAES256
}

// PutOptions describes how an object is written.
type PutOptions struct {
	ContentType  string
	StorageClass StorageClass
	Encryption   Encryption
}

// CopyOptions describes the destination of a server-side copy.
type CopyOptions struct {
	StorageClass StorageClass
	Encryption   Encryption
}

// ObjectInfo is one entry of a metadata listing.
type ObjectInfo struct {
	Key  string
	Size int64
}

// OptionSecure asks SignedURL for an https link.
const OptionSecure = "secure"

// Store handles durable object storage keyed by (bucket, key).
type Store interface {
	// Upload pushes the file at srcPath to (bucket, key), replacing any
	// existing object.
	Upload(ctx context.Context, bucket, key, srcPath string, opts PutOptions) error

	// Download writes the object to destPath. Returns ErrNotFound when the
	// key does not exist.
	Download(ctx context.Context, bucket, key, destPath string) error

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, bucket, key string) error

	// Exists reports whether the key is present.
	Exists(ctx context.Context, bucket, key string) (bool, error)

	// Copy duplicates srcKey to dstKey inside the bucket.
	Copy(ctx context.Context, bucket, srcKey, dstKey string, opts CopyOptions) error

	// List returns metadata for every key starting with prefix.
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)

	// SignedURL returns a read link valid until expires.
	SignedURL(ctx context.Context, bucket, key string, expires time.Time, options map[string]string) (string, error)
}
