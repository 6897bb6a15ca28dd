package license

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "vyaparcli/internal/errors"
	"vyaparcli/internal/security"
)

var testNow = time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)

func newTestManager(t *testing.T, opts ...Option) (*Manager, *BoltStore) {
	t.Helper()
	s := newTestStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	m := NewManager(s, security.NewFingerprintManager(), logger, opts...)
	return m, s
}

func TestActivateProPlan(t *testing.T) {
	m, _ := newTestManager(t)

	status, err := m.Activate(context.Background(), "PROF-AB12-CD34-EF56")
	require.NoError(t, err)

	assert.True(t, status.Activated)
	assert.True(t, status.Valid)
	assert.Equal(t, StateActive, status.State)
	assert.Equal(t, PlanPro, status.Plan)
	assert.Equal(t, 3, status.MaxUsers)
	assert.Len(t, status.Modules, 7)
	assert.True(t, status.MachineBound)

	wantExpiry := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 365)
	assert.Equal(t, wantExpiry, status.ExpiryDate)
}

func TestActivateInvalidFormat(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Activate(context.Background(), "not-a-key")
	assert.ErrorIs(t, err, apperrors.ErrInvalidLicenseFormat)
}

func TestActivateCaseInsensitive(t *testing.T) {
	m, _ := newTestManager(t)

	status, err := m.Activate(context.Background(), "entr-ab12-cd34-ef56")
	require.NoError(t, err)
	assert.Equal(t, PlanEnterprise, status.Plan)
	assert.Equal(t, 999, status.MaxUsers)
	assert.ElementsMatch(t, AllModules, status.Modules)
}

func TestActivateOnSecondMachineFails(t *testing.T) {
	m, s := newTestManager(t)

	// Simulate the key having been activated on another machine.
	rec := storedRecord("PROF-AB12-CD34-EF56")
	rec.MachineFingerprint = "fingerprint-of-some-other-machine"
	_, err := s.Insert(rec)
	require.NoError(t, err)

	_, err = m.Activate(context.Background(), "PROF-AB12-CD34-EF56")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyActivatedElsewhere)
}

func TestActivateSameKeyOnSameMachineSucceeds(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Activate(context.Background(), "PROF-AB12-CD34-EF56")
	require.NoError(t, err)

	// Re-activation on the machine the key is bound to is allowed.
	status, err := m.Activate(context.Background(), "PROF-AB12-CD34-EF56")
	require.NoError(t, err)
	assert.True(t, status.Valid)
}

func TestSequentialActivationsKeepSingleActiveRecord(t *testing.T) {
	m, s := newTestManager(t)

	keys := []string{
		"TRIA-AB12-CD34-EF56",
		"BASI-AB12-CD34-EF56",
		"PROF-AB12-CD34-EF56",
		"ENTR-AB12-CD34-EF56",
	}
	for _, key := range keys {
		_, err := m.Activate(context.Background(), key)
		require.NoError(t, err)
	}

	history, err := s.History()
	require.NoError(t, err)
	require.Len(t, history, len(keys))

	activeCount := 0
	for _, rec := range history {
		if rec.IsActive {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount)
}

func TestStatusUnactivated(t *testing.T) {
	m, _ := newTestManager(t)

	status, err := m.Status(context.Background())
	require.NoError(t, err)

	assert.False(t, status.Activated)
	assert.False(t, status.Valid)
	assert.Equal(t, StateUnactivated, status.State)
	assert.Equal(t, "No License", status.PlanName)
}

func TestIsModuleEnabled(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	// Invalid license gates everything off.
	assert.False(t, m.IsModuleEnabled(ctx, ModuleBilling))

	_, err := m.Activate(ctx, "TRIA-AB12-CD34-EF56")
	require.NoError(t, err)

	// Trial covers exactly 3 modules.
	assert.True(t, m.IsModuleEnabled(ctx, ModuleDashboard))
	assert.True(t, m.IsModuleEnabled(ctx, ModuleBilling))
	assert.True(t, m.IsModuleEnabled(ctx, ModuleInventory))
	assert.False(t, m.IsModuleEnabled(ctx, ModuleReports))
	assert.False(t, m.IsModuleEnabled(ctx, ModuleUsers))
}

func TestIsModuleEnabledEnterpriseCoversAll(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Activate(ctx, "ENTR-AB12-CD34-EF56")
	require.NoError(t, err)

	for _, module := range AllModules {
		assert.True(t, m.IsModuleEnabled(ctx, module), "module %s", module)
	}
}

func TestAssertModuleLicensed(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	assert.ErrorIs(t, m.AssertModuleLicensed(ctx, ModuleBilling), apperrors.ErrLicenseNotActivated)

	_, err := m.Activate(ctx, "TRIA-AB12-CD34-EF56")
	require.NoError(t, err)

	assert.NoError(t, m.AssertModuleLicensed(ctx, ModuleBilling))
	assert.ErrorIs(t, m.AssertModuleLicensed(ctx, ModuleReports), apperrors.ErrModuleNotLicensed)
}

func TestAssertModuleLicensedAfterRevocation(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Activate(ctx, "ENTR-AB12-CD34-EF56")
	require.NoError(t, err)

	require.NoError(t, m.Revoke(ctx))

	// Revocation clears the active slot entirely, so the engine reports
	// unactivated rather than revoked.
	err = m.AssertModuleLicensed(ctx, ModuleBilling)
	assert.ErrorIs(t, err, apperrors.ErrLicenseNotActivated)
	assert.False(t, m.IsValid(ctx))
}

func TestGracePeriodValidity(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()

	status, err := m.Activate(ctx, "BASI-AB12-CD34-EF56")
	require.NoError(t, err)

	// Rewrite the record's expiry so it lapsed 3 days ago: within grace.
	active, err := s.ActiveRecord()
	require.NoError(t, err)
	require.NoError(t, s.UpdateByID(active.ID, func(r *Record) {
		r.ExpiryDate = testNow.AddDate(0, 0, -3)
	}))

	status, err = m.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateExpiredInGrace, status.State)
	assert.True(t, status.Valid)
	assert.True(t, m.IsModuleEnabled(ctx, ModuleBilling))

	// 10 days past expiry with 7 days grace: expired.
	require.NoError(t, s.UpdateByID(active.ID, func(r *Record) {
		r.ExpiryDate = testNow.AddDate(0, 0, -10)
	}))

	status, err = m.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateExpired, status.State)
	assert.False(t, status.Valid)
	assert.False(t, m.IsModuleEnabled(ctx, ModuleBilling))
	assert.ErrorIs(t, m.AssertModuleLicensed(ctx, ModuleBilling), apperrors.ErrLicenseExpired)
}

func TestWrongMachineInvalidates(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()

	_, err := m.Activate(ctx, "PROF-AB12-CD34-EF56")
	require.NoError(t, err)

	active, err := s.ActiveRecord()
	require.NoError(t, err)
	require.NoError(t, s.UpdateByID(active.ID, func(r *Record) {
		r.MachineFingerprint = "fingerprint-of-some-other-machine"
	}))

	status, err := m.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateWrongMachine, status.State)
	assert.False(t, status.Valid)
	assert.ErrorIs(t, m.AssertModuleLicensed(ctx, ModuleBilling), apperrors.ErrMachineMismatch)
}

func TestStartTrial(t *testing.T) {
	m, _ := newTestManager(t)

	status, err := m.StartTrial(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PlanTrial, status.Plan)
	assert.Equal(t, 1, status.MaxUsers)
	assert.Len(t, status.Modules, 3)

	wantExpiry := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 30)
	assert.Equal(t, wantExpiry, status.ExpiryDate)
}

func TestCustomGracePeriod(t *testing.T) {
	m, s := newTestManager(t, WithGracePeriodDays(14))
	ctx := context.Background()

	_, err := m.Activate(ctx, "BASI-AB12-CD34-EF56")
	require.NoError(t, err)

	active, err := s.ActiveRecord()
	require.NoError(t, err)
	assert.Equal(t, 14, active.GracePeriodDays)

	require.NoError(t, s.UpdateByID(active.ID, func(r *Record) {
		r.ExpiryDate = testNow.AddDate(0, 0, -10)
	}))

	status, err := m.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateExpiredInGrace, status.State)
}

func TestRevokeWithoutLicense(t *testing.T) {
	m, _ := newTestManager(t)
	assert.ErrorIs(t, m.Revoke(context.Background()), apperrors.ErrLicenseNotActivated)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "PROF****EF56", MaskKey("PROF-AB12-CD34-EF56"))
	assert.Equal(t, "****", MaskKey("short"))
}
