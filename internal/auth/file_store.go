package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var errEmptyAccountID = errors.New("account id cannot be empty")

const tokenFileExt = ".token.json"

// FileStore keeps one JSON file per account in a directory
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// DefaultTokenDir returns <user cache dir>/calview/tokens
func DefaultTokenDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user cache directory: %w", err)
	}
	return filepath.Join(cacheDir, "calview", "tokens"), nil
}

// NewFileStore creates a file store rooted at dir. The directory is created
// on first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the directory holding the token files
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(accountID string) string {
	name := base64.RawURLEncoding.EncodeToString([]byte(accountID))
	return filepath.Join(s.dir, name+tokenFileExt)
}

// Load reads the token file of accountID
func (s *FileStore) Load(_ context.Context, accountID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(accountID))
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, ErrTokenNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to read token file: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to decode token file: %w", err)
	}
	return rec, nil
}

// Save writes the token file of rec.Account.ID with owner-only permissions
func (s *FileStore) Save(_ context.Context, rec Record) error {
	if rec.Account.ID == "" {
		return errEmptyAccountID
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	// Write to a temp file first so a crash never leaves a truncated token.
	final := s.path(rec.Account.ID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// Delete removes the token file of accountID
func (s *FileStore) Delete(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(accountID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete token file: %w", err)
	}
	return nil
}

// List returns the accounts of all readable token files
func (s *FileStore) List(_ context.Context) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []Account{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list token directory: %w", err)
	}

	accounts := make([]Account, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), tokenFileExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil || rec.Account.ID == "" {
			continue
		}
		accounts = append(accounts, rec.Account)
	}
	sortAccounts(accounts)
	return accounts, nil
}
