package authz

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"vyaparcli/internal/license"
	"vyaparcli/internal/store"
)

// flags is shorthand for building permission templates
type flags struct {
	view, create, edit, delete, export bool
}

// defaultTemplates holds the shipped per-role permission rows. Admin has no
// template: the bypass in CheckPermission makes rows pointless.
var defaultTemplates = map[string]map[string]flags{
	RoleManager: {
		license.ModuleDashboard: {view: true, export: true},
		license.ModuleBilling:   {view: true, create: true, edit: true, export: true},
		license.ModuleInventory: {view: true, create: true, edit: true, export: true},
		license.ModuleCustomers: {view: true, create: true, edit: true, export: true},
		license.ModuleVendors:   {view: true, create: true, edit: true, export: true},
		license.ModuleAccounts:  {view: true, create: true, edit: true, export: true},
		license.ModuleReports:   {view: true, export: true},
		license.ModuleSettings:  {view: true},
	},
	RoleAccountant: {
		license.ModuleDashboard: {view: true, export: true},
		license.ModuleBilling:   {view: true, create: true, edit: true, export: true},
		license.ModuleAccounts:  {view: true, create: true, edit: true, export: true},
		license.ModuleReports:   {view: true, export: true},
		license.ModuleCustomers: {view: true, export: true},
		license.ModuleVendors:   {view: true, export: true},
	},
	RoleSales: {
		license.ModuleDashboard: {view: true},
		license.ModuleBilling:   {view: true, create: true, export: true},
		license.ModuleCustomers: {view: true, create: true, edit: true, export: true},
		license.ModuleInventory: {view: true},
	},
	RoleInventory: {
		license.ModuleDashboard: {view: true},
		license.ModuleInventory: {view: true, create: true, edit: true, export: true},
		license.ModuleVendors:   {view: true, create: true, edit: true, export: true},
	},
}

// defaultRoleOrder fixes role ids across fresh installs
var defaultRoleOrder = []string{RoleAdmin, RoleManager, RoleAccountant, RoleSales, RoleInventory}

// InitializeDefaults seeds the role table and the shipped permission
// templates. Safe to call on every startup: existing roles and rows are
// left untouched so local customizations survive.
func (g *Gate) InitializeDefaults() error {
	if err := g.seedRoles(); err != nil {
		return err
	}

	for roleName, template := range defaultTemplates {
		role, err := g.RoleByName(roleName)
		if err != nil {
			return err
		}
		if role == nil {
			continue
		}

		existing, err := g.RolePermissions(role.ID)
		if err != nil {
			return err
		}

		var perms []Permission
		for module, f := range template {
			if _, ok := existing[module]; ok {
				continue
			}
			perms = append(perms, Permission{
				Module:    module,
				CanView:   f.view,
				CanCreate: f.create,
				CanEdit:   f.edit,
				CanDelete: f.delete,
				CanExport: f.export,
			})
		}
		if len(perms) > 0 {
			if err := g.SetPermissions(role.ID, perms); err != nil {
				return err
			}
		}
	}
	return nil
}

// seedRoles creates the shipped roles when missing
func (g *Gate) seedRoles() error {
	return g.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(store.BucketRoles))

		existing := make(map[string]bool)
		err := bucket.ForEach(func(k, v []byte) error {
			var role Role
			if err := json.Unmarshal(v, &role); err != nil {
				return fmt.Errorf("failed to decode role: %w", err)
			}
			existing[role.Name] = true
			return nil
		})
		if err != nil {
			return err
		}

		for _, name := range defaultRoleOrder {
			if existing[name] {
				continue
			}
			id, err := bucket.NextSequence()
			if err != nil {
				return fmt.Errorf("failed to allocate role id: %w", err)
			}
			data, err := json.Marshal(&Role{ID: id, Name: name})
			if err != nil {
				return err
			}
			if err := bucket.Put(store.Itob(id), data); err != nil {
				return err
			}
		}
		return nil
	})
}
