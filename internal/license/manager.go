package license

import (
	"context"
	"log/slog"
	"time"

	apperrors "vyaparcli/internal/errors"
	"vyaparcli/internal/security"
)

// Manager orchestrates activation, validity evaluation, revocation and
// module gating. It composes the key codec, the machine fingerprint and the
// entitlement store; construct one per process and inject it where needed.
type Manager struct {
	store             Store
	fingerprint       *security.FingerprintManager
	logger            *slog.Logger
	graceDays         int
	revocationTimeout time.Duration

	// nowFunc is the clock; tests override it to pin expiry arithmetic
	nowFunc func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithGracePeriodDays overrides the default 7-day grace period applied to
// newly activated records
func WithGracePeriodDays(days int) Option {
	return func(m *Manager) {
		if days >= 0 {
			m.graceDays = days
		}
	}
}

// WithClock overrides the manager's clock
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.nowFunc = now }
}

// WithRevocationTimeout overrides the default 5s deadline on revocation
// feed fetches
func WithRevocationTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.revocationTimeout = d
		}
	}
}

// NewManager creates a license manager
func NewManager(store Store, fingerprint *security.FingerprintManager, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:             store,
		fingerprint:       fingerprint,
		logger:            logger.With(slog.String("component", "license_manager")),
		graceDays:         7,
		revocationTimeout: 5 * time.Second,
		nowFunc:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Status is a point-in-time snapshot of the entitlement
type Status struct {
	Activated      bool      `json:"activated"`
	Valid          bool      `json:"valid"`
	State          State     `json:"state"`
	Plan           PlanType  `json:"plan"`
	PlanName       string    `json:"plan_name"`
	MaxUsers       int       `json:"max_users"`
	Modules        []string  `json:"modules"`
	ActivationDate time.Time `json:"activation_date,omitempty"`
	ExpiryDate     time.Time `json:"expiry_date,omitempty"`
	DaysRemaining  int       `json:"days_remaining"`
	MachineBound   bool      `json:"machine_bound"`
}

// Status computes the current entitlement snapshot
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	rec, err := m.store.ActiveRecord()
	if err != nil {
		return nil, err
	}
	return m.statusFor(rec), nil
}

// statusFor builds a snapshot from a record (nil means unactivated)
func (m *Manager) statusFor(rec *Record) *Status {
	state := EvaluateState(rec, m.fingerprint.ID(), m.nowFunc())
	validationsTotal.WithLabelValues(string(state)).Inc()

	if rec == nil {
		return &Status{State: state, PlanName: "No License", MaxUsers: 1}
	}

	return &Status{
		Activated:      true,
		Valid:          state.Valid(),
		State:          state,
		Plan:           rec.PlanType,
		PlanName:       rec.PlanType.DisplayName(),
		MaxUsers:       rec.MaxUsers,
		Modules:        rec.EnabledModules,
		ActivationDate: rec.ActivationDate,
		ExpiryDate:     rec.ExpiryDate,
		DaysRemaining:  rec.DaysRemaining(m.nowFunc()),
		MachineBound:   rec.MachineFingerprint != "",
	}
}

// IsValid reports whether the current entitlement permits using the product
func (m *Manager) IsValid(ctx context.Context) bool {
	status, err := m.Status(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "license validity check failed",
			slog.String("error", err.Error()))
		return false
	}
	return status.Valid
}

// Activate decodes and activates a license key, binding it to this machine.
// Prior records are deactivated in the same transaction that inserts the
// new one, preserving the single-active-record invariant across crashes.
func (m *Manager) Activate(ctx context.Context, key string) (*Status, error) {
	decoded, err := Decode(key)
	if err != nil {
		activationsTotal.WithLabelValues("unknown", "invalid_format").Inc()
		m.logger.WarnContext(ctx, "license activation rejected",
			slog.String("reason", "invalid_format"),
			slog.String("key_masked", MaskKey(key)))
		return nil, err
	}

	normalized := NormalizeKey(key)
	currentFP := m.fingerprint.ID()

	// A key that was ever bound to a different machine stays bound there.
	prior, err := m.store.FindByKey(normalized)
	if err != nil {
		return nil, err
	}
	if prior != nil && prior.MachineFingerprint != "" && prior.MachineFingerprint != currentFP {
		activationsTotal.WithLabelValues(string(decoded.Plan), "already_activated").Inc()
		m.logger.WarnContext(ctx, "license activation rejected",
			slog.String("reason", "already_activated_elsewhere"),
			slog.String("key_masked", MaskKey(normalized)))
		return nil, apperrors.ErrAlreadyActivatedElsewhere
	}

	plan := PlanFor(decoded.Plan)
	today := truncateToDay(m.nowFunc())

	expiry := today.AddDate(0, 0, plan.DurationDays)
	if decoded.Expiry != nil {
		expiry = truncateToDay(*decoded.Expiry)
	}

	maxUsers := plan.MaxUsers
	if decoded.MaxUsers > 0 {
		maxUsers = decoded.MaxUsers
	}

	modules := plan.Modules
	if len(decoded.Modules) > 0 {
		modules = decoded.Modules
	}

	rec := &Record{
		LicenseKey:         normalized,
		MachineFingerprint: currentFP,
		PlanType:           decoded.Plan,
		MaxUsers:           maxUsers,
		EnabledModules:     append([]string(nil), modules...),
		ActivationDate:     today,
		ExpiryDate:         expiry,
		GracePeriodDays:    m.graceDays,
		CreatedAt:          m.nowFunc(),
	}

	if _, err := m.store.Activate(rec); err != nil {
		activationsTotal.WithLabelValues(string(decoded.Plan), "store_error").Inc()
		return nil, err
	}

	activationsTotal.WithLabelValues(string(decoded.Plan), "success").Inc()
	m.logger.InfoContext(ctx, "license activated",
		slog.String("plan", string(decoded.Plan)),
		slog.String("key_masked", MaskKey(normalized)),
		slog.Time("expiry_date", expiry),
		slog.Int("max_users", maxUsers))

	return m.statusFor(rec), nil
}

// StartTrial mints a trial key and activates it. Trial reuse is tracked
// only through the license table, so wiping the store allows a fresh trial;
// see DESIGN.md for the open question of fingerprint-keyed trial history.
func (m *Manager) StartTrial(ctx context.Context) (*Status, error) {
	key, err := Encode(PlanTrial)
	if err != nil {
		return nil, err
	}
	return m.Activate(ctx, key)
}

// IsModuleEnabled reports whether a module is usable: false whenever the
// overall entitlement is invalid, otherwise a membership test against the
// active record's module set.
func (m *Manager) IsModuleEnabled(ctx context.Context, module string) bool {
	rec, err := m.store.ActiveRecord()
	if err != nil {
		m.logger.ErrorContext(ctx, "module check failed",
			slog.String("module", module),
			slog.String("error", err.Error()))
		return false
	}

	state := EvaluateState(rec, m.fingerprint.ID(), m.nowFunc())
	if !state.Valid() {
		return false
	}
	return rec.HasModule(module)
}

// AssertModuleLicensed is the explicit guard invoked at the start of each
// licensed operation. It returns a typed error describing why access is
// denied.
func (m *Manager) AssertModuleLicensed(ctx context.Context, module string) error {
	rec, err := m.store.ActiveRecord()
	if err != nil {
		return err
	}

	state := EvaluateState(rec, m.fingerprint.ID(), m.nowFunc())
	switch state {
	case StateUnactivated:
		return apperrors.ErrLicenseNotActivated
	case StateRevoked:
		return apperrors.ErrLicenseRevoked
	case StateWrongMachine:
		return apperrors.ErrMachineMismatch
	case StateExpired:
		return apperrors.ErrLicenseExpired
	}

	if !rec.HasModule(module) {
		moduleDenialsTotal.WithLabelValues(module).Inc()
		return apperrors.ErrModuleNotLicensed
	}
	return nil
}

// Revoke permanently revokes the active license. There is no un-revoke;
// recovering requires a fresh activation with a new key.
func (m *Manager) Revoke(ctx context.Context) error {
	rec, err := m.store.ActiveRecord()
	if err != nil {
		return err
	}
	if rec == nil {
		return apperrors.ErrLicenseNotActivated
	}

	err = m.store.UpdateByID(rec.ID, func(r *Record) {
		r.IsActive = false
		r.IsRevoked = true
	})
	if err != nil {
		return err
	}

	m.logger.WarnContext(ctx, "license revoked",
		slog.String("key_masked", MaskKey(rec.LicenseKey)),
		slog.String("plan", string(rec.PlanType)))
	return nil
}

// MaskKey masks a license key for logs
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
