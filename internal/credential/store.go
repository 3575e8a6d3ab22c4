// Package credential persists the authorized-user token and runs the
// interactive consent flow when none is stored.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
)

// ErrNotFound is returned by Store.Load when nothing has been saved yet.
var ErrNotFound = errors.New("credential not found")

// TypeAuthorizedUser is the only credential type replybot writes.
const TypeAuthorizedUser = "authorized_user"

// Credential mirrors the authorized_user JSON understood by Google client libraries.
type Credential struct {
	Type         string `json:"type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

func (c *Credential) validate() error {
	if c.ClientID == "" || c.ClientSecret == "" || c.RefreshToken == "" {
		return errors.New("credential is missing client_id, client_secret or refresh_token")
	}
	return nil
}

// Store loads and saves a Credential.
type Store interface {
	Load(ctx context.Context) (*Credential, error)
	Save(ctx context.Context, cred *Credential) error
}

// Deleter is a Store that can forget its credential. Deleting an absent credential is not an error.
type Deleter interface {
	Delete() error
}

// FileStore keeps the credential in a JSON file.
type FileStore struct {
	Path string
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the token file. A missing or unreadable file reports ErrNotFound.
func (f *FileStore) Load(ctx context.Context) (*Credential, error) {
	_ = ctx
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read token file %s: %w", f.Path, err)
	}
	return decode(data)
}

// Save writes the token file with owner-only permissions.
func (f *FileStore) Save(ctx context.Context, cred *Credential) error {
	_ = ctx
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
	}
	if err := os.WriteFile(f.Path, data, 0o600); err != nil {
		return fmt.Errorf("write token file %s: %w", f.Path, err)
	}
	return nil
}

// Delete removes the token file.
func (f *FileStore) Delete() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file %s: %w", f.Path, err)
	}
	return nil
}

const keyringService = "replybot"

// KeyringStore keeps the credential in the OS keyring
// (macOS Keychain, Windows Credential Manager, or Linux Secret Service).
type KeyringStore struct {
	Account string
}

// NewKeyringStore returns a KeyringStore for the given account name.
func NewKeyringStore(account string) *KeyringStore {
	return &KeyringStore{Account: account}
}

// Load reads the credential from the keyring.
func (k *KeyringStore) Load(ctx context.Context) (*Credential, error) {
	_ = ctx
	data, err := keyring.Get(keyringService, k.Account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token from keyring: %w", err)
	}
	return decode([]byte(data))
}

// Save stores the credential in the keyring.
func (k *KeyringStore) Save(ctx context.Context, cred *Credential) error {
	_ = ctx
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	if err := keyring.Set(keyringService, k.Account, string(data)); err != nil {
		return fmt.Errorf("failed to save token to keyring: %w", err)
	}
	return nil
}

// Delete removes the credential from the keyring.
func (k *KeyringStore) Delete() error {
	err := keyring.Delete(keyringService, k.Account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete token from keyring: %w", err)
	}
	return nil
}

func decode(data []byte) (*Credential, error) {
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	if err := cred.validate(); err != nil {
		return nil, err
	}
	return &cred, nil
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*KeyringStore)(nil)
)

var (
	_ Deleter = (*FileStore)(nil)
	_ Deleter = (*KeyringStore)(nil)
)
