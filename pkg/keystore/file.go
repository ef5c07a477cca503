package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/backkem/teslable/pkg/crypto"
)

// FileMode is the permission of key files.
const FileMode os.FileMode = 0o600

// FileStoreConfig configures a FileStore.
type FileStoreConfig struct {
	// Path of the key file. Required.
	Path string

	// Passphrase, when set, seals the file with a key derived by scrypt.
	Passphrase string
}

// FileStore persists the key pair as a JSON file of hex strings:
//
//	{"private_key": "...", "public_key": "..."}
//
// Writes go to a temporary file that replaces the target, so a crash never
// leaves a truncated key file behind.
type FileStore struct {
	path       string
	passphrase string
	mu         sync.Mutex
}

// NewFileStore creates a FileStore.
func NewFileStore(config FileStoreConfig) *FileStore {
	return &FileStore{path: config.Path, passphrase: config.Passphrase}
}

// Path returns the key file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load implements Store.
func (s *FileStore) Load() (*crypto.KeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if s.passphrase != "" {
		if b, err = open(s.passphrase, b); err != nil {
			return nil, err
		}
	}

	var rec record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyPair, err)
	}
	return rec.keyPair()
}

// Save implements Store.
func (s *FileStore) Save(kp *crypto.KeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.MarshalIndent(newRecord(kp), "", "  ")
	if err != nil {
		return err
	}
	if s.passphrase != "" {
		if b, err = seal(s.passphrase, b, defaultScryptParams); err != nil {
			return err
		}
	}
	return writeFile(s.path, b, FileMode)
}

// writeFile writes b to a temporary file in the target directory, then
// renames it over path.
func writeFile(path string, b []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
