package rfile

import (
	"errors"

	"github.com/aweris/rfile/internal/imaging"
	"github.com/aweris/rfile/internal/localcache"
	"github.com/aweris/rfile/internal/naming"
	"github.com/aweris/rfile/internal/remote"
)

var (
	ErrNotFound          = remote.ErrNotFound
	ErrAccessDenied      = remote.ErrAccessDenied
	ErrStoreUnavailable  = remote.ErrUnavailable
	ErrNotSupported      = remote.ErrNotSupported
	ErrUnsupportedFormat = imaging.ErrUnsupportedFormat
	ErrDecodeFailure     = imaging.ErrDecode
	ErrInvalidSize       = imaging.ErrInvalidSize
	ErrIO                = localcache.ErrIO
	ErrDownloadStalled   = localcache.ErrStalled
	ErrNameExhausted     = naming.ErrExhausted

	ErrAlreadyDeleted = errors.New("rfile: object already deleted")
	ErrNoKey          = errors.New("rfile: object has no key")
	ErrNoBucket       = errors.New("rfile: no bucket configured")
)
