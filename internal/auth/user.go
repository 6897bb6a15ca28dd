package auth

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	apperrors "vyaparcli/internal/errors"
	"vyaparcli/internal/store"
)

// User is a local account
type User struct {
	ID           uint64     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"password_hash"`
	FullName     string     `json:"full_name"`
	RoleID       uint64     `json:"role_id"`
	RoleName     string     `json:"role_name"`
	Email        string     `json:"email,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// UserStore persists user accounts
type UserStore interface {
	Create(user *User) (uint64, error)
	GetByID(id uint64) (*User, error)
	GetByUsername(username string) (*User, error)
	Update(user *User) error
	List() ([]*User, error)
}

// BoltUserStore implements UserStore on the shared bbolt database, with a
// username index for lookups
type BoltUserStore struct {
	db *bbolt.DB
}

// NewBoltUserStore creates a user store backed by the given database
func NewBoltUserStore(db *store.DB) *BoltUserStore {
	return &BoltUserStore{db: db.Bolt()}
}

// normalizeUsername canonicalizes usernames for storage and lookup
func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Create stores a new user; the username must be unused
func (s *BoltUserStore) Create(user *User) (uint64, error) {
	var id uint64
	username := normalizeUsername(user.Username)

	err := s.db.Update(func(tx *bbolt.Tx) error {
		idx := tx.Bucket([]byte(store.IdxUsersByUsername))
		if idx.Get([]byte(username)) != nil {
			return apperrors.ErrUserExists
		}

		bucket := tx.Bucket([]byte(store.BucketUsers))
		var err error
		id, err = bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate user id: %w", err)
		}
		user.ID = id
		user.Username = username

		data, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("failed to encode user: %w", err)
		}
		if err := bucket.Put(store.Itob(id), data); err != nil {
			return err
		}
		return idx.Put([]byte(username), store.Itob(id))
	})
	return id, err
}

// GetByID returns a user, or nil when not found
func (s *BoltUserStore) GetByID(id uint64) (*User, error) {
	var user *User
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(store.BucketUsers)).Get(store.Itob(id))
		if data == nil {
			return nil
		}
		var u User
		if err := json.Unmarshal(data, &u); err != nil {
			return fmt.Errorf("failed to decode user %d: %w", id, err)
		}
		user = &u
		return nil
	})
	return user, err
}

// GetByUsername returns a user via the username index, or nil
func (s *BoltUserStore) GetByUsername(username string) (*User, error) {
	var user *User
	err := s.db.View(func(tx *bbolt.Tx) error {
		idKey := tx.Bucket([]byte(store.IdxUsersByUsername)).Get([]byte(normalizeUsername(username)))
		if idKey == nil {
			return nil
		}
		data := tx.Bucket([]byte(store.BucketUsers)).Get(idKey)
		if data == nil {
			return nil
		}
		var u User
		if err := json.Unmarshal(data, &u); err != nil {
			return fmt.Errorf("failed to decode user %s: %w", username, err)
		}
		user = &u
		return nil
	})
	return user, err
}

// Update rewrites an existing user record
func (s *BoltUserStore) Update(user *User) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(store.BucketUsers))
		if bucket.Get(store.Itob(user.ID)) == nil {
			return apperrors.ErrUserNotFound
		}
		data, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("failed to encode user: %w", err)
		}
		return bucket.Put(store.Itob(user.ID), data)
	})
}

// List returns all users ordered by id
func (s *BoltUserStore) List() ([]*User, error) {
	var users []*User
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(store.BucketUsers)).ForEach(func(k, v []byte) error {
			var u User
			if err := json.Unmarshal(v, &u); err != nil {
				return fmt.Errorf("failed to decode user: %w", err)
			}
			users = append(users, &u)
			return nil
		})
	})
	return users, err
}
