// Package authz implements role-based module access on top of the session:
// which modules a signed-in user can navigate to and which CRUD actions
// they may perform there. The license gate decides what the business bought;
// this gate decides what the user's role allows within that.
package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.etcd.io/bbolt"

	"vyaparcli/internal/auth"
	apperrors "vyaparcli/internal/errors"
	"vyaparcli/internal/license"
	"vyaparcli/internal/store"
)

// Role names. Admin bypasses the permission table entirely; that bypass
// lives here in the check layer, not in data.
const (
	RoleAdmin      = "Admin"
	RoleManager    = "Manager"
	RoleAccountant = "Accountant"
	RoleSales      = "Sales"
	RoleInventory  = "Inventory"
)

// Action identifies a CRUD capability on a module
type Action string

// Permission actions
const (
	ActionView   Action = "can_view"
	ActionCreate Action = "can_create"
	ActionEdit   Action = "can_edit"
	ActionDelete Action = "can_delete"
	ActionExport Action = "can_export"
)

// Role is a named permission bucket
type Role struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// Permission is the flag tuple for one (role, module) pair
type Permission struct {
	RoleID    uint64 `json:"role_id"`
	Module    string `json:"module"`
	CanView   bool   `json:"can_view"`
	CanCreate bool   `json:"can_create"`
	CanEdit   bool   `json:"can_edit"`
	CanDelete bool   `json:"can_delete"`
	CanExport bool   `json:"can_export"`
}

// Allows reports whether the permission grants the given action
func (p *Permission) Allows(action Action) bool {
	switch action {
	case ActionView:
		return p.CanView
	case ActionCreate:
		return p.CanCreate
	case ActionEdit:
		return p.CanEdit
	case ActionDelete:
		return p.CanDelete
	case ActionExport:
		return p.CanExport
	default:
		return false
	}
}

// Gate answers permission questions for the current session
type Gate struct {
	db      *bbolt.DB
	session *auth.SessionSlot
	logger  *slog.Logger
}

// NewGate creates a permission gate
func NewGate(db *store.DB, session *auth.SessionSlot, logger *slog.Logger) *Gate {
	return &Gate{
		db:      db.Bolt(),
		session: session,
		logger:  logger.With(slog.String("component", "authz")),
	}
}

// Session exposes the session slot the gate consults
func (g *Gate) Session() *auth.SessionSlot {
	return g.session
}

// permKey builds the composite bucket key for a (role, module) pair
func permKey(roleID uint64, module string) []byte {
	return []byte(fmt.Sprintf("%d/%s", roleID, module))
}

// CheckPermission reports whether the current session may perform the
// action on the module. Admin is always permitted. For everyone else a
// missing permission row means no: the gate fails closed.
func (g *Gate) CheckPermission(ctx context.Context, module string, action Action) bool {
	session := g.session.Get()
	if session == nil {
		return false
	}
	if session.RoleName == RoleAdmin {
		return true
	}

	perm, err := g.permission(session.RoleID, module)
	if err != nil {
		g.logger.ErrorContext(ctx, "permission lookup failed",
			slog.String("module", module),
			slog.String("error", err.Error()))
		return false
	}
	if perm == nil {
		return false
	}
	return perm.Allows(action)
}

// AssertPermission is the explicit guard invoked at the start of each gated
// operation
func (g *Gate) AssertPermission(ctx context.Context, module string, action Action) error {
	if g.session.Get() == nil {
		return apperrors.ErrNotAuthenticated
	}
	if !g.CheckPermission(ctx, module, action) {
		return apperrors.ErrPermissionDenied
	}
	return nil
}

// AccessibleModules returns the modules the current session can view, in
// the canonical module order
func (g *Gate) AccessibleModules(ctx context.Context) []string {
	session := g.session.Get()
	if session == nil {
		return nil
	}
	if session.RoleName == RoleAdmin {
		return append([]string(nil), license.AllModules...)
	}

	var modules []string
	for _, module := range license.AllModules {
		if g.CheckPermission(ctx, module, ActionView) {
			modules = append(modules, module)
		}
	}
	return modules
}

// RolePermissions returns all permission rows for a role, keyed by module
func (g *Gate) RolePermissions(roleID uint64) (map[string]*Permission, error) {
	result := make(map[string]*Permission)
	err := g.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(store.BucketPermissions))
		prefix := []byte(fmt.Sprintf("%d/", roleID))
		cursor := bucket.Cursor()
		for k, v := cursor.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = cursor.Next() {
			var perm Permission
			if err := json.Unmarshal(v, &perm); err != nil {
				return fmt.Errorf("failed to decode permission: %w", err)
			}
			result[perm.Module] = &perm
		}
		return nil
	})
	return result, err
}

// SetPermissions replaces the permission rows for a role
func (g *Gate) SetPermissions(roleID uint64, perms []Permission) error {
	return g.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(store.BucketPermissions))
		for i := range perms {
			perm := perms[i]
			perm.RoleID = roleID
			data, err := json.Marshal(&perm)
			if err != nil {
				return fmt.Errorf("failed to encode permission: %w", err)
			}
			if err := bucket.Put(permKey(roleID, perm.Module), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// permission fetches one permission row, nil when absent
func (g *Gate) permission(roleID uint64, module string) (*Permission, error) {
	var perm *Permission
	err := g.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(store.BucketPermissions)).Get(permKey(roleID, module))
		if data == nil {
			return nil
		}
		var p Permission
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("failed to decode permission: %w", err)
		}
		perm = &p
		return nil
	})
	return perm, err
}

// Roles returns all stored roles ordered by id
func (g *Gate) Roles() ([]Role, error) {
	var roles []Role
	err := g.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(store.BucketRoles)).ForEach(func(k, v []byte) error {
			var role Role
			if err := json.Unmarshal(v, &role); err != nil {
				return fmt.Errorf("failed to decode role: %w", err)
			}
			roles = append(roles, role)
			return nil
		})
	})
	return roles, err
}

// RoleByName returns a stored role, or nil when absent
func (g *Gate) RoleByName(name string) (*Role, error) {
	var found *Role
	err := g.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(store.BucketRoles)).ForEach(func(k, v []byte) error {
			var role Role
			if err := json.Unmarshal(v, &role); err != nil {
				return fmt.Errorf("failed to decode role: %w", err)
			}
			if role.Name == name {
				found = &role
			}
			return nil
		})
	})
	return found, err
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
