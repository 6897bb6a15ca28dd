package license

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"vyaparcli/internal/store"
)

// Store persists license records. At most one record is active at any time;
// Activate maintains that invariant atomically.
type Store interface {
	// Insert appends a record and returns its assigned id
	Insert(rec *Record) (uint64, error)
	// ActiveRecord returns the single active record, or nil when none exists
	ActiveRecord() (*Record, error)
	// FindByKey returns the most recent record for a key, or nil
	FindByKey(licenseKey string) (*Record, error)
	// UpdateByID applies a mutation to a stored record in one transaction
	UpdateByID(id uint64, mutate func(*Record)) error
	// DeactivateAll clears the active flag on every record
	DeactivateAll() error
	// Activate deactivates all records and inserts rec as the active one in
	// a single transaction, so a crash can never leave zero or two active
	// records
	Activate(rec *Record) (uint64, error)
	// History returns all records, oldest first
	History() ([]*Record, error)
}

// BoltStore implements Store on the shared bbolt database
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore creates a license store backed by the given database
func NewBoltStore(db *store.DB) *BoltStore {
	return &BoltStore{db: db.Bolt()}
}

// Insert appends a record and returns its assigned id
func (s *BoltStore) Insert(rec *Record) (uint64, error) {
	var id uint64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		id, err = insertRecord(tx, rec)
		return err
	})
	return id, err
}

// ActiveRecord returns the single active record, or nil when none exists
func (s *BoltStore) ActiveRecord() (*Record, error) {
	var active *Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		return forEachRecord(tx, func(rec *Record) {
			if rec.IsActive {
				active = rec
			}
		})
	})
	return active, err
}

// FindByKey returns the most recent record for a key, or nil
func (s *BoltStore) FindByKey(licenseKey string) (*Record, error) {
	var found *Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		return forEachRecord(tx, func(rec *Record) {
			if rec.LicenseKey == licenseKey {
				found = rec
			}
		})
	})
	return found, err
}

// UpdateByID applies a mutation to a stored record in one transaction
func (s *BoltStore) UpdateByID(id uint64, mutate func(*Record)) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(store.BucketLicenses))
		data := bucket.Get(store.Itob(id))
		if data == nil {
			return fmt.Errorf("license record %d not found", id)
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("failed to decode license record %d: %w", id, err)
		}

		mutate(&rec)
		rec.ID = id

		updated, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("failed to encode license record %d: %w", id, err)
		}
		return bucket.Put(store.Itob(id), updated)
	})
}

// DeactivateAll clears the active flag on every record
func (s *BoltStore) DeactivateAll() error {
	return s.db.Update(deactivateAll)
}

// Activate deactivates all records and inserts rec as the active one in a
// single transaction
func (s *BoltStore) Activate(rec *Record) (uint64, error) {
	var id uint64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := deactivateAll(tx); err != nil {
			return err
		}
		rec.IsActive = true
		var err error
		id, err = insertRecord(tx, rec)
		return err
	})
	return id, err
}

// History returns all records, oldest first
func (s *BoltStore) History() ([]*Record, error) {
	var records []*Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		return forEachRecord(tx, func(rec *Record) {
			records = append(records, rec)
		})
	})
	return records, err
}

// insertRecord assigns the next sequence id and stores the record
func insertRecord(tx *bbolt.Tx, rec *Record) (uint64, error) {
	bucket := tx.Bucket([]byte(store.BucketLicenses))
	id, err := bucket.NextSequence()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate license id: %w", err)
	}
	rec.ID = id

	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("failed to encode license record: %w", err)
	}
	if err := bucket.Put(store.Itob(id), data); err != nil {
		return 0, err
	}
	return id, nil
}

// deactivateAll rewrites every active record with the flag cleared. The
// scan finishes before any Put: bbolt cursors do not tolerate writes
// mid-iteration.
func deactivateAll(tx *bbolt.Tx) error {
	bucket := tx.Bucket([]byte(store.BucketLicenses))

	type pending struct {
		key []byte
		rec Record
	}
	var updates []pending

	err := bucket.ForEach(func(k, v []byte) error {
		var rec Record
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("failed to decode license record: %w", err)
		}
		if !rec.IsActive {
			return nil
		}
		rec.IsActive = false
		updates = append(updates, pending{key: append([]byte(nil), k...), rec: rec})
		return nil
	})
	if err != nil {
		return err
	}

	for _, u := range updates {
		data, err := json.Marshal(&u.rec)
		if err != nil {
			return err
		}
		if err := bucket.Put(u.key, data); err != nil {
			return err
		}
	}
	return nil
}

// forEachRecord iterates records in key order
func forEachRecord(tx *bbolt.Tx, fn func(*Record)) error {
	bucket := tx.Bucket([]byte(store.BucketLicenses))
	return bucket.ForEach(func(k, v []byte) error {
		var rec Record
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("failed to decode license record: %w", err)
		}
		fn(&rec)
		return nil
	})
}
