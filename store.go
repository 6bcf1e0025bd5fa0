package rfile

import "github.com/aweris/rfile/internal/remote"

// Store is the durable object store an Object synchronizes with.
// Re-exported from internal/remote for convenience.
type Store = remote.Store

type (
	StorageClass = remote.StorageClass
	Encryption   = remote.Encryption
	PutOptions   = remote.PutOptions
	CopyOptions  = remote.CopyOptions
	ObjectInfo   = remote.ObjectInfo
)

const (
	ClassStandard           = remote.ClassStandard
	ClassReducedRedundancy  = remote.ClassReducedRedundancy
	ClassStandardIA         = remote.ClassStandardIA
	ClassOneZoneIA          = remote.ClassOneZoneIA
	ClassIntelligentTiering = remote.ClassIntelligentTiering
	ClassGlacier            = remote.ClassGlacier

	EncryptionNone   = remote.EncryptionNone
	EncryptionAES256 = remote.EncryptionAES256

	OptionSecure = remote.OptionSecure
)

// Backend configurations.
type (
	FSConfig      = remote.FSConfig
	S3Config      = remote.S3Config
	MinioConfig   = remote.MinioConfig
	OCIConfig     = remote.OCIConfig
	Authenticator = remote.Authenticator

	StaticAuthenticator   = remote.StaticAuthenticator
	KeychainAuthenticator = remote.KeychainAuthenticator

	// FSStore also verifies the links it signs.
	FSStore = remote.FS
)

// NewFSStore opens a store rooted in a local directory. Close it when done.
func NewFSStore(cfg FSConfig) (*FSStore, error) { return remote.NewFS(cfg) }

func NewS3Store(cfg S3Config) (Store, error) {
	s, err := remote.NewS3(cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func NewMinioStore(cfg MinioConfig) (Store, error) {
	s, err := remote.NewMinio(cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewOCIStore keeps objects as single-layer images in a container registry.
// Signed URLs are not supported.
func NewOCIStore(cfg OCIConfig) (Store, error) {
	s, err := remote.NewOCI(cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}
