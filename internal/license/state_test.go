package license

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const testFingerprint = "aabbccddeeff00112233445566778899"

// record returns a fingerprint-bound active record expiring at the given date
func testRecord(expiry time.Time, graceDays int) *Record {
	return &Record{
		ID:                 1,
		LicenseKey:         "PROF-AB12-CD34-EF56",
		MachineFingerprint: testFingerprint,
		PlanType:           PlanPro,
		MaxUsers:           3,
		EnabledModules:     Plans[PlanPro].Modules,
		ActivationDate:     expiry.AddDate(0, 0, -365),
		ExpiryDate:         expiry,
		GracePeriodDays:    graceDays,
		IsActive:           true,
	}
}

func TestEvaluateStateOrder(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	t.Run("no record is unactivated", func(t *testing.T) {
		assert.Equal(t, StateUnactivated, EvaluateState(nil, testFingerprint, now))
	})

	t.Run("revoked wins over everything", func(t *testing.T) {
		rec := testRecord(now.AddDate(0, 0, 100), 7)
		rec.IsRevoked = true
		rec.MachineFingerprint = "someotherfingerprint000000000000"
		assert.Equal(t, StateRevoked, EvaluateState(rec, testFingerprint, now))
	})

	t.Run("wrong machine wins over expiry", func(t *testing.T) {
		rec := testRecord(now.AddDate(0, 0, -100), 7)
		rec.MachineFingerprint = "someotherfingerprint000000000000"
		assert.Equal(t, StateWrongMachine, EvaluateState(rec, testFingerprint, now))
	})

	t.Run("unbound fingerprint does not trip wrong machine", func(t *testing.T) {
		rec := testRecord(now.AddDate(0, 0, 100), 7)
		rec.MachineFingerprint = ""
		assert.Equal(t, StateActive, EvaluateState(rec, testFingerprint, now))
	})
}

func TestEvaluateStateExpiryArithmetic(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiry    time.Time
		graceDays int
		want      State
	}{
		{"well before expiry", now.AddDate(0, 0, 100), 7, StateActive},
		{"expires today", now, 7, StateActive},
		{"expired 3 days ago within grace", now.AddDate(0, 0, -3), 7, StateExpiredInGrace},
		{"last day of grace", now.AddDate(0, 0, -7), 7, StateExpiredInGrace},
		{"one day past grace", now.AddDate(0, 0, -8), 7, StateExpired},
		{"expired 10 days ago grace 7", now.AddDate(0, 0, -10), 7, StateExpired},
		{"zero grace expired yesterday", now.AddDate(0, 0, -1), 0, StateExpired},
		{"zero grace expires today", now, 0, StateActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testRecord(tt.expiry, tt.graceDays)
			assert.Equal(t, tt.want, EvaluateState(rec, testFingerprint, now))
		})
	}
}

// Validity must hold for every today <= expiry+grace and fail after.
func TestEvaluateStateValidityBoundary(t *testing.T) {
	expiry := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	const grace = 7
	rec := testRecord(expiry, grace)

	for offset := -30; offset <= grace; offset++ {
		now := expiry.AddDate(0, 0, offset)
		state := EvaluateState(rec, testFingerprint, now)
		assert.True(t, state.Valid(), "expected valid at expiry%+d days, got %s", offset, state)
	}
	for offset := grace + 1; offset <= grace+30; offset++ {
		now := expiry.AddDate(0, 0, offset)
		state := EvaluateState(rec, testFingerprint, now)
		assert.False(t, state.Valid(), "expected invalid at expiry%+d days, got %s", offset, state)
	}
}

func TestEvaluateStateIgnoresTimeOfDay(t *testing.T) {
	expiry := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	rec := testRecord(expiry, 0)

	lateOnExpiryDay := time.Date(2026, 6, 1, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, StateActive, EvaluateState(rec, testFingerprint, lateOnExpiryDay))

	earlyNextDay := time.Date(2026, 6, 2, 0, 0, 1, 0, time.UTC)
	assert.Equal(t, StateExpired, EvaluateState(rec, testFingerprint, earlyNextDay))
}

func TestStateValid(t *testing.T) {
	assert.True(t, StateActive.Valid())
	assert.True(t, StateExpiredInGrace.Valid())
	assert.False(t, StateUnactivated.Valid())
	assert.False(t, StateExpired.Valid())
	assert.False(t, StateRevoked.Valid())
	assert.False(t, StateWrongMachine.Valid())
}
