package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"golang.org/x/oauth2"

	"calsync/internal/fileutil"
)

// Secrets is the on-disk credentials document.
type Secrets struct {
	ClientID     string        `json:"client_id"`
	ClientSecret string        `json:"client_secret"`
	Token        *oauth2.Token `json:"token,omitempty"`
}

// SecretStore keeps Secrets in a single JSON file readable only by the
// owner.
type SecretStore struct {
	path string

	mu sync.Mutex
}

func NewSecretStore(path string) *SecretStore {
	return &SecretStore{path: path}
}

func (s *SecretStore) Path() string { return s.path }

// Load returns the saved secrets. A missing file yields zero Secrets and no
// error.
func (s *SecretStore) Load() (Secrets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Secrets{}, nil
	}
	if err != nil {
		return Secrets{}, fmt.Errorf("read credentials file: %w", err)
	}

	var sec Secrets
	if err := json.Unmarshal(b, &sec); err != nil {
		return Secrets{}, fmt.Errorf("parse credentials file %s: %w", s.path, err)
	}
	return sec, nil
}

func (s *SecretStore) Save(sec Secrets) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.MarshalIndent(sec, "", "  ")
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(s.path, b, 0o600); err != nil {
		return fmt.Errorf("write credentials file: %w", err)
	}
	return nil
}
