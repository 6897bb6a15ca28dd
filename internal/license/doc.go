// Package license implements the machine-bound entitlement engine that
// gates the rest of the application.
//
// A license key decodes to a plan; activation binds the key to the current
// machine fingerprint and persists a record in the local entitlement store.
// Validity is a derived state machine evaluated in a fixed order
// (unactivated, revoked, wrong machine, expired, in grace, active), with a
// grace period that keeps the product usable for a few days past expiry.
//
// A remote kill-switch feed can revoke keys and machines out-of-band. That
// check is deliberately fail-open: connectivity problems never lock the
// user out.
//
// The key format itself carries no signature. Decoding validates shape, not
// authenticity; this is a documented property of the scheme.
package license
