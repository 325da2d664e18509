package auth

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/oauth2"
)

// Record is a persisted token together with the account it belongs to
type Record struct {
	Account Account       `json:"account"`
	Token   *oauth2.Token `json:"token"`
}

// TokenStore persists OAuth tokens per account.
// Load returns ErrTokenNotFound for unknown accounts.
type TokenStore interface {
	Load(ctx context.Context, accountID string) (Record, error)
	Save(ctx context.Context, rec Record) error
	Delete(ctx context.Context, accountID string) error
	List(ctx context.Context) ([]Account, error)
}

// MemoryStore keeps tokens in memory for the lifetime of the process
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory token store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Load returns the record of accountID
func (s *MemoryStore) Load(_ context.Context, accountID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[accountID]
	if !ok {
		return Record{}, ErrTokenNotFound
	}
	return rec, nil
}

// Save stores rec under its account ID
func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	if rec.Account.ID == "" {
		return errEmptyAccountID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Account.ID] = rec
	return nil
}

// Delete removes the record of accountID. Deleting an unknown account is not an error.
func (s *MemoryStore) Delete(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, accountID)
	return nil
}

// List returns all stored accounts ordered by ID
func (s *MemoryStore) List(_ context.Context) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accounts := make([]Account, 0, len(s.records))
	for _, rec := range s.records {
		accounts = append(accounts, rec.Account)
	}
	sortAccounts(accounts)
	return accounts, nil
}

func sortAccounts(accounts []Account) {
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].ID < accounts[j].ID
	})
}
