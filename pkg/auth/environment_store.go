package auth

import (
	"os"
	"time"
)

const (
	envOAuthToken       = "FLICKRMIRROR_OAUTH_TOKEN"
	envOAuthTokenSecret = "FLICKRMIRROR_OAUTH_TOKEN_SECRET"
	envAPIKey           = "FLICKRMIRROR_API_KEY"
	envAPISecret        = "FLICKRMIRROR_API_SECRET"
	envUsername         = "FLICKRMIRROR_USERNAME"
)

// EnvironmentStore is a read-only CredentialStore over FLICKRMIRROR_* variables
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the token from the environment. An empty username matches
// any account; otherwise FLICKRMIRROR_USERNAME must match when it is set.
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	token := os.Getenv(envOAuthToken)
	secret := os.Getenv(envOAuthTokenSecret)
	if token == "" || secret == "" {
		return nil, ErrCredentialsNotFound
	}

	name := os.Getenv(envUsername)
	switch {
	case username == "" && name == "":
		name = "default"
	case username != "" && name == "":
		name = username
	case username != "" && name != username:
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Username:         name,
		APIKey:           os.Getenv(envAPIKey),
		APISecret:        os.Getenv(envAPISecret),
		OAuthToken:       token,
		OAuthTokenSecret: secret,
		LastModified:     time.Now(),
	}, nil
}

// List returns a single account if environment variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
