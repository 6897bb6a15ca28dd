package errors

import (
	"errors"
	"net/http"
)

// License errors. These are user-facing and recoverable: the activation
// flow surfaces them verbatim and lets the user retry with another key.
var (
	ErrLicenseNotActivated       = errors.New("no license has been activated")
	ErrInvalidLicenseFormat      = errors.New("invalid license key format")
	ErrLicenseExpired            = errors.New("license expired")
	ErrLicenseRevoked            = errors.New("license has been revoked")
	ErrMachineMismatch           = errors.New("license is bound to a different machine")
	ErrAlreadyActivatedElsewhere = errors.New("license already activated on another machine")
	ErrModuleNotLicensed         = errors.New("module not included in license plan")
)

// Authentication errors. The not-found and bad-password cases share one
// user-facing message to avoid username enumeration; the internal reason is
// carried in the audit trail instead.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountDisabled    = errors.New("account is disabled, contact administrator")
	ErrPasswordPolicy     = errors.New("password does not meet minimum length")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("username already exists")
)

// Authorization errors. Non-recoverable for the attempted action: the
// caller must not retry, only navigate away.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotAuthenticated = errors.New("authentication required")
)

// IsLicenseError reports whether err belongs to the license error class
func IsLicenseError(err error) bool {
	for _, target := range []error{
		ErrLicenseNotActivated,
		ErrInvalidLicenseFormat,
		ErrLicenseExpired,
		ErrLicenseRevoked,
		ErrMachineMismatch,
		ErrAlreadyActivatedElsewhere,
		ErrModuleNotLicensed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsAuthenticationError reports whether err belongs to the authentication
// error class
func IsAuthenticationError(err error) bool {
	for _, target := range []error{
		ErrInvalidCredentials,
		ErrAccountDisabled,
		ErrPasswordPolicy,
		ErrUserNotFound,
		ErrUserExists,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// APIErrorFor maps a domain error to its HTTP rendering. Unknown errors
// map to a generic 500 so internals never leak to the shell.
func APIErrorFor(err error) *APIError {
	switch {
	case errors.Is(err, ErrLicenseNotActivated):
		return New(http.StatusPreconditionRequired, "NOT_ACTIVATED", "No license has been activated. Please activate a license to continue")
	case errors.Is(err, ErrInvalidLicenseFormat):
		return New(http.StatusBadRequest, "INVALID_FORMAT", "The license key format is invalid. Expected: XXXX-XXXX-XXXX-XXXX")
	case errors.Is(err, ErrLicenseExpired):
		return New(http.StatusForbidden, "LICENSE_EXPIRED", "Your license has expired. Please renew to continue")
	case errors.Is(err, ErrLicenseRevoked):
		return New(http.StatusForbidden, "LICENSE_REVOKED", "This license has been revoked")
	case errors.Is(err, ErrMachineMismatch):
		return New(http.StatusForbidden, "MACHINE_MISMATCH", "This license is registered to a different machine")
	case errors.Is(err, ErrAlreadyActivatedElsewhere):
		return New(http.StatusConflict, "ALREADY_ACTIVATED", "This license is already activated on another machine")
	case errors.Is(err, ErrModuleNotLicensed):
		return New(http.StatusForbidden, "MODULE_NOT_LICENSED", "This module is not included in your license plan")
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUserNotFound):
		return New(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
	case errors.Is(err, ErrAccountDisabled):
		return New(http.StatusForbidden, "ACCOUNT_DISABLED", "Account is disabled. Contact administrator")
	case errors.Is(err, ErrPasswordPolicy):
		return New(http.StatusBadRequest, "PASSWORD_POLICY", "Password must be at least 6 characters")
	case errors.Is(err, ErrUserExists):
		return New(http.StatusConflict, "USER_EXISTS", "Username already exists")
	case errors.Is(err, ErrPermissionDenied):
		return New(http.StatusForbidden, "PERMISSION_DENIED", "You do not have permission to perform this action")
	case errors.Is(err, ErrNotAuthenticated):
		return New(http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
	default:
		return ErrInternalServer
	}
}
