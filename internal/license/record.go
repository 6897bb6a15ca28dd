package license

import "time"

// Record is the persisted entitlement. History is append-only: a later
// activation or a revocation deactivates a record but never rewrites its
// key fields.
type Record struct {
	ID                 uint64    `json:"id"`
	LicenseKey         string    `json:"license_key"`
	MachineFingerprint string    `json:"machine_fingerprint"`
	PlanType           PlanType  `json:"plan_type"`
	MaxUsers           int       `json:"max_users"`
	EnabledModules     []string  `json:"enabled_modules"`
	ActivationDate     time.Time `json:"activation_date"`
	ExpiryDate         time.Time `json:"expiry_date"`
	GracePeriodDays    int       `json:"grace_period_days"`
	IsActive           bool      `json:"is_active"`
	IsRevoked          bool      `json:"is_revoked"`
	CreatedAt          time.Time `json:"created_at"`
}

// HasModule reports membership in the record's enabled module set
func (r *Record) HasModule(module string) bool {
	for _, m := range r.EnabledModules {
		if m == module {
			return true
		}
	}
	return false
}

// FinalExpiry returns the last day the license is usable: the expiry date
// plus the grace period
func (r *Record) FinalExpiry() time.Time {
	return r.ExpiryDate.AddDate(0, 0, r.GracePeriodDays)
}

// DaysRemaining returns whole days until expiry (negative once expired)
func (r *Record) DaysRemaining(now time.Time) int {
	return int(truncateToDay(r.ExpiryDate).Sub(truncateToDay(now)).Hours() / 24)
}

// truncateToDay normalizes a timestamp to midnight UTC so expiry arithmetic
// works on calendar days, immune to time-of-day and clock skew within a day
func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
