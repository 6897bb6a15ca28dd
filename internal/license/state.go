package license

import "time"

// State is the derived validity of the current entitlement. It is computed
// on demand from the active record and never persisted.
type State string

// License states
const (
	StateUnactivated    State = "UNACTIVATED"
	StateActive         State = "ACTIVE"
	StateExpiredInGrace State = "EXPIRED_IN_GRACE"
	StateExpired        State = "EXPIRED"
	StateRevoked        State = "REVOKED"
	StateWrongMachine   State = "WRONG_MACHINE"
)

// Valid reports whether the state permits using the product. The grace
// period keeps the product usable after expiry.
func (s State) Valid() bool {
	return s == StateActive || s == StateExpiredInGrace
}

// EvaluateState computes the current state from a record (nil means no
// active record). Rules are evaluated in a fixed order and the first match
// wins:
//
//  1. no active record            -> UNACTIVATED
//  2. revoked                     -> REVOKED
//  3. fingerprint bound elsewhere -> WRONG_MACHINE
//  4. past expiry + grace         -> EXPIRED
//  5. past expiry, within grace   -> EXPIRED_IN_GRACE (valid)
//  6. otherwise                   -> ACTIVE
func EvaluateState(rec *Record, currentFingerprint string, now time.Time) State {
	if rec == nil {
		return StateUnactivated
	}
	if rec.IsRevoked {
		return StateRevoked
	}
	if rec.MachineFingerprint != "" && rec.MachineFingerprint != currentFingerprint {
		return StateWrongMachine
	}

	today := truncateToDay(now)
	expiry := truncateToDay(rec.ExpiryDate)
	finalExpiry := truncateToDay(rec.FinalExpiry())

	if today.After(finalExpiry) {
		return StateExpired
	}
	if today.After(expiry) {
		return StateExpiredInGrace
	}
	return StateActive
}
