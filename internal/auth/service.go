// Package auth implements username/password authentication and the
// process-wide session for the running desktop instance.
package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vyaparcli/internal/audit"
	apperrors "vyaparcli/internal/errors"
)

var loginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vyapar_auth_login_attempts_total",
	Help: "Login attempts by result.",
}, []string{"result"})

// Service orchestrates authentication against the user store, maintains the
// session slot and records every attempt in the audit trail.
type Service struct {
	users      UserStore
	session    *SessionSlot
	trail      *audit.Trail
	logger     *slog.Logger
	minPwdLen  int
	bcryptCost int

	nowFunc func() time.Time
}

// NewService creates an authentication service
func NewService(users UserStore, session *SessionSlot, trail *audit.Trail, logger *slog.Logger, minPwdLen, bcryptCost int) *Service {
	if minPwdLen < MinPasswordLength {
		minPwdLen = MinPasswordLength
	}
	return &Service{
		users:      users,
		session:    session,
		trail:      trail,
		logger:     logger.With(slog.String("component", "auth")),
		minPwdLen:  minPwdLen,
		bcryptCost: bcryptCost,
		nowFunc:    time.Now,
	}
}

// Session returns the slot for permission checks and handlers
func (s *Service) Session() *SessionSlot {
	return s.session
}

// Login authenticates a user and populates the session slot.
//
// User-not-found and bad-password both surface ErrInvalidCredentials so the
// login form cannot be used to enumerate usernames; the distinct internal
// reason goes to the audit trail. A disabled account gets its own message.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.users.GetByUsername(username)
	if err != nil {
		return nil, err
	}

	if user == nil {
		loginAttemptsTotal.WithLabelValues("user_not_found").Inc()
		s.audit(ctx, 0, audit.ActionLoginFailed, map[string]string{
			"username": username,
			"reason":   "user_not_found",
		})
		return nil, apperrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		loginAttemptsTotal.WithLabelValues("account_disabled").Inc()
		s.audit(ctx, user.ID, audit.ActionLoginFailed, map[string]string{
			"reason": "account_disabled",
		})
		return nil, apperrors.ErrAccountDisabled
	}

	if !VerifyPassword(password, user.PasswordHash) {
		loginAttemptsTotal.WithLabelValues("invalid_password").Inc()
		s.audit(ctx, user.ID, audit.ActionLoginFailed, map[string]string{
			"reason": "invalid_password",
		})
		return nil, apperrors.ErrInvalidCredentials
	}

	now := s.nowFunc()
	session := &Session{
		UserID:    user.ID,
		Username:  user.Username,
		RoleID:    user.RoleID,
		RoleName:  user.RoleName,
		LoginTime: now,
	}
	s.session.Set(session)

	user.LastLogin = &now
	if err := s.users.Update(user); err != nil {
		s.logger.WarnContext(ctx, "failed to stamp last login",
			slog.Uint64("user_id", user.ID),
			slog.String("error", err.Error()))
	}

	loginAttemptsTotal.WithLabelValues("success").Inc()
	s.audit(ctx, user.ID, audit.ActionLoginSuccess, nil)
	s.logger.InfoContext(ctx, "user logged in",
		slog.Uint64("user_id", user.ID),
		slog.String("role", user.RoleName))

	return session, nil
}

// Logout audits and clears the session slot
func (s *Service) Logout(ctx context.Context) {
	if session := s.session.Get(); session != nil {
		s.audit(ctx, session.UserID, audit.ActionLogout, nil)
		s.logger.InfoContext(ctx, "user logged out", slog.Uint64("user_id", session.UserID))
	}
	s.session.Clear()
}

// CreateUser registers a new account
func (s *Service) CreateUser(ctx context.Context, username, password, fullName string, roleID uint64, roleName, email, phone string, createdBy uint64) (uint64, error) {
	if err := ValidatePasswordPolicy(password, s.minPwdLen); err != nil {
		return 0, err
	}

	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return 0, err
	}

	id, err := s.users.Create(&User{
		Username:     username,
		PasswordHash: hash,
		FullName:     fullName,
		RoleID:       roleID,
		RoleName:     roleName,
		Email:        email,
		Phone:        phone,
		IsActive:     true,
		CreatedAt:    s.nowFunc(),
	})
	if err != nil {
		return 0, err
	}

	s.audit(ctx, createdBy, audit.ActionUserCreated, map[string]string{
		"username": normalizeUsername(username),
		"role":     roleName,
	})
	return id, nil
}

// ChangePassword verifies the old password before setting the new one
func (s *Service) ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword string) error {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.ErrUserNotFound
	}

	if !VerifyPassword(oldPassword, user.PasswordHash) {
		return apperrors.ErrInvalidCredentials
	}
	if err := ValidatePasswordPolicy(newPassword, s.minPwdLen); err != nil {
		return err
	}

	hash, err := HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.users.Update(user); err != nil {
		return err
	}

	s.audit(ctx, userID, audit.ActionPasswordChanged, nil)
	return nil
}

// ResetPassword sets a new password without the old one (admin flow)
func (s *Service) ResetPassword(ctx context.Context, userID uint64, newPassword string, resetBy uint64) error {
	if err := ValidatePasswordPolicy(newPassword, s.minPwdLen); err != nil {
		return err
	}

	user, err := s.users.GetByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return apperrors.ErrUserNotFound
	}

	hash, err := HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.users.Update(user); err != nil {
		return err
	}

	s.audit(ctx, resetBy, audit.ActionPasswordReset, map[string]string{
		"target_user": user.Username,
	})
	return nil
}

// ToggleUserStatus enables a disabled account and vice versa, returning the
// new status
func (s *Service) ToggleUserStatus(ctx context.Context, userID, toggledBy uint64) (bool, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, apperrors.ErrUserNotFound
	}

	user.IsActive = !user.IsActive
	if err := s.users.Update(user); err != nil {
		return false, err
	}

	action := audit.ActionUserDisabled
	if user.IsActive {
		action = audit.ActionUserEnabled
	}
	s.audit(ctx, toggledBy, action, map[string]string{
		"target_user": user.Username,
	})
	return user.IsActive, nil
}

// audit writes an auth-module entry; audit failures are already logged by
// the trail and never fail the authenticated action
func (s *Service) audit(ctx context.Context, userID uint64, action string, values map[string]string) {
	_ = s.trail.Record(ctx, audit.Entry{
		UserID:    userID,
		Action:    action,
		Module:    "auth",
		NewValues: values,
	})
}
