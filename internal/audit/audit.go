// Package audit persists the append-only audit trail. Every security
// sensitive action (logins, permission changes, license events) is recorded
// with its reason; records are never updated or deleted.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"vyaparcli/internal/store"
)

// Well-known audit actions
const (
	ActionLoginSuccess    = "LOGIN_SUCCESS"
	ActionLoginFailed     = "LOGIN_FAILED"
	ActionLogout          = "LOGOUT"
	ActionPasswordChanged = "PASSWORD_CHANGED"
	ActionPasswordReset   = "PASSWORD_RESET"
	ActionUserCreated     = "USER_CREATED"
	ActionUserEnabled     = "USER_ENABLED"
	ActionUserDisabled    = "USER_DISABLED"
	ActionPermissionSetup = "PERMISSION_SETUP"
	ActionLicenseActivate = "LICENSE_ACTIVATED"
	ActionLicenseRevoked  = "LICENSE_REVOKED"
	ActionExport          = "EXPORT"
)

// Entry is a single audit record
type Entry struct {
	ID        string            `json:"id"`
	UserID    uint64            `json:"user_id,omitempty"`
	Action    string            `json:"action"`
	Module    string            `json:"module"`
	RecordID  string            `json:"record_id,omitempty"`
	OldValues map[string]string `json:"old_values,omitempty"`
	NewValues map[string]string `json:"new_values,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Trail records entries into the shared database
type Trail struct {
	db     *bbolt.DB
	logger *slog.Logger

	nowFunc func() time.Time
}

// NewTrail creates an audit trail backed by the given database
func NewTrail(db *store.DB, logger *slog.Logger) *Trail {
	return &Trail{
		db:      db.Bolt(),
		logger:  logger.With(slog.String("component", "audit")),
		nowFunc: time.Now,
	}
}

// Record appends an entry. The id and timestamp are assigned here; callers
// supply the rest.
func (t *Trail) Record(ctx context.Context, entry Entry) error {
	entry.ID = uuid.NewString()
	entry.Timestamp = t.nowFunc()

	err := t.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(store.BucketAuditLogs))
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate audit sequence: %w", err)
		}
		data, err := json.Marshal(&entry)
		if err != nil {
			return fmt.Errorf("failed to encode audit entry: %w", err)
		}
		return bucket.Put(store.Itob(seq), data)
	})
	if err != nil {
		// An unwritable audit trail is loud but must not abort the action
		// being audited.
		t.logger.ErrorContext(ctx, "failed to write audit entry",
			slog.String("action", entry.Action),
			slog.String("error", err.Error()))
		return err
	}

	t.logger.InfoContext(ctx, "audit entry recorded",
		slog.String("action", entry.Action),
		slog.String("module", entry.Module),
		slog.Uint64("user_id", entry.UserID))
	return nil
}

// Filter narrows List results; zero values match everything
type Filter struct {
	UserID uint64
	Action string
	Module string
	Limit  int
}

// List returns entries oldest first, honoring the filter
func (t *Trail) List(ctx context.Context, filter Filter) ([]Entry, error) {
	var entries []Entry
	err := t.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(store.BucketAuditLogs))
		return bucket.ForEach(func(k, v []byte) error {
			if filter.Limit > 0 && len(entries) >= filter.Limit {
				return nil
			}
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to decode audit entry: %w", err)
			}
			if filter.UserID != 0 && entry.UserID != filter.UserID {
				return nil
			}
			if filter.Action != "" && entry.Action != filter.Action {
				return nil
			}
			if filter.Module != "" && entry.Module != filter.Module {
				return nil
			}
			entries = append(entries, entry)
			return nil
		})
	})
	return entries, err
}
