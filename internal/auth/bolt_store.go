package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const tokenBucket = "tokens"

// BoltStore keeps tokens in a bbolt database
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
}

// OpenBoltStore opens (or creates) the database at path
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open token db %s: %w", path, err)
	}

	s := &BoltStore{db: db, bucket: []byte(tokenBucket)}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(s.bucket); err != nil {
			return fmt.Errorf("unable to create bucket %s: %w", s.bucket, err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Load returns the record of accountID
func (s *BoltStore) Load(_ context.Context, accountID string) (Record, error) {
	var rec Record
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(s.bucket).Get([]byte(accountID))
		if raw == nil {
			return ErrTokenNotFound
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("failed to decode token: %w", err)
		}
		return nil
	})
	return rec, err
}

// Save stores rec under its account ID
func (s *BoltStore) Save(_ context.Context, rec Record) error {
	if rec.Account.ID == "" {
		return errEmptyAccountID
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(rec.Account.ID), raw)
	})
}

// Delete removes the record of accountID
func (s *BoltStore) Delete(_ context.Context, accountID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(accountID))
	})
}

// List returns all stored accounts ordered by ID
func (s *BoltStore) List(_ context.Context) ([]Account, error) {
	accounts := make([]Account, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil
			}
			accounts = append(accounts, rec.Account)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	// bbolt iterates in key order, which is the account ID.
	return accounts, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
