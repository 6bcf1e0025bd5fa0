package remote

import "github.com/google/go-containerregistry/pkg/authn"

// Authenticator provides credentials for OCI registry operations.
type Authenticator interface {
	// Authenticate returns credentials for the given registry. An empty
	// username defers to the docker keychain.
	Authenticate(registry string) (username, password string, err error)
}

// KeychainAuthenticator defers to the system keychain (like Docker).
type KeychainAuthenticator struct{}

func (KeychainAuthenticator) Authenticate(string) (string, string, error) {
	return "", "", nil
}

// StaticAuthenticator returns the same credentials for every registry.
type StaticAuthenticator struct {
	Username string
	Password string
}

func (a StaticAuthenticator) Authenticate(string) (string, string, error) {
	return a.Username, a.Password, nil
}

func resolveAuth(auth Authenticator, registry string) authn.Authenticator {
	if auth != nil {
		username, password, err := auth.Authenticate(registry)
		if err == nil && username != "" {
			return &authn.Basic{Username: username, Password: password}
		}
	}
	return nil
}
