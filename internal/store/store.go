// Package store owns the local bbolt database file shared by the license,
// auth, authz and audit layers. One desktop instance per data file; bbolt's
// single-writer model matches that deployment.
package store

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// Bucket names for the persisted tables
const (
	BucketLicenses    = "licenses"
	BucketUsers       = "users"
	BucketRoles       = "roles"
	BucketPermissions = "permissions"
	BucketAuditLogs   = "audit_logs"

	// Index buckets for efficient lookups
	IdxUsersByUsername = "idx_users_by_username"
)

// DB wraps the bbolt database handle
type DB struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) the database file and ensures all
// buckets exist. The open times out rather than blocking forever when
// another process holds the file lock.
func Open(path string) (*DB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	s := &DB{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initialize creates the bucket set
func (s *DB) initialize() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		buckets := []string{
			BucketLicenses,
			BucketUsers,
			BucketRoles,
			BucketPermissions,
			BucketAuditLogs,
			IdxUsersByUsername,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
}

// Bolt exposes the underlying handle to the domain stores
func (s *DB) Bolt() *bbolt.DB {
	return s.db
}

// Close closes the database file
func (s *DB) Close() error {
	return s.db.Close()
}

// Itob converts a uint64 to a big-endian byte slice for use as a
// sequence-ordered bucket key
func Itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Btoi converts a big-endian byte slice back to a uint64
func Btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
