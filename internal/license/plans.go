package license

// PlanType identifies a license plan
type PlanType string

// License plan types
const (
	PlanTrial      PlanType = "TRIAL"
	PlanBasic      PlanType = "BASIC"
	PlanPro        PlanType = "PRO"
	PlanEnterprise PlanType = "ENTERPRISE"
)

// Module identifiers shared between the permission table and the license's
// enabled module set
const (
	ModuleDashboard = "dashboard"
	ModuleBilling   = "billing"
	ModuleInventory = "inventory"
	ModuleCustomers = "customers"
	ModuleVendors   = "vendors"
	ModuleAccounts  = "accounts"
	ModuleReports   = "reports"
	ModuleSettings  = "settings"
	ModuleUsers     = "users"
)

// AllModules is the fixed set of 9 module identifiers
var AllModules = []string{
	ModuleDashboard,
	ModuleBilling,
	ModuleInventory,
	ModuleCustomers,
	ModuleVendors,
	ModuleAccounts,
	ModuleReports,
	ModuleSettings,
	ModuleUsers,
}

// PlanDefinition describes the entitlements a plan grants. Static, not
// persisted; the activated record carries its own copy so later table edits
// never change an issued license.
type PlanDefinition struct {
	DisplayName  string   `json:"display_name"`
	MaxUsers     int      `json:"max_users"`
	Modules      []string `json:"modules"`
	DurationDays int      `json:"duration_days"`
	PriceINR     int      `json:"price_inr"`
}

// Plans is the fixed plan table
var Plans = map[PlanType]PlanDefinition{
	PlanTrial: {
		DisplayName:  "Trial",
		MaxUsers:     1,
		Modules:      []string{ModuleDashboard, ModuleBilling, ModuleInventory},
		DurationDays: 30,
		PriceINR:     0,
	},
	PlanBasic: {
		DisplayName:  "Basic ERP",
		MaxUsers:     1,
		Modules:      []string{ModuleDashboard, ModuleBilling, ModuleInventory, ModuleCustomers},
		DurationDays: 365,
		PriceINR:     4999,
	},
	PlanPro: {
		DisplayName: "Pro ERP",
		MaxUsers:    3,
		Modules: []string{
			ModuleDashboard, ModuleBilling, ModuleInventory, ModuleCustomers,
			ModuleVendors, ModuleAccounts, ModuleReports,
		},
		DurationDays: 365,
		PriceINR:     9999,
	},
	PlanEnterprise: {
		DisplayName:  "Enterprise ERP",
		MaxUsers:     999,
		Modules:      AllModules,
		DurationDays: 365,
		PriceINR:     24999,
	},
}

// PlanFor returns the definition for a plan, falling back to BASIC for an
// unknown plan type
func PlanFor(plan PlanType) PlanDefinition {
	if def, ok := Plans[plan]; ok {
		return def
	}
	return Plans[PlanBasic]
}

// DisplayName returns the plan's display name, or "No License" for an
// unknown plan
func (p PlanType) DisplayName() string {
	if def, ok := Plans[p]; ok {
		return def.DisplayName
	}
	return "No License"
}

// IsValidModule reports whether the identifier is one of the 9 known modules
func IsValidModule(module string) bool {
	for _, m := range AllModules {
		if m == module {
			return true
		}
	}
	return false
}
