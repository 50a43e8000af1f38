package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/audit"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/validation"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// dummyDigest is verified against when the username is unknown so both
// failure paths do the same work.
var dummyDigest = auth.HashPassword("helpdesk-dummy-password")

// AuthService coordinates registration and login flows.
type AuthService struct {
	users    repository.UserRepository
	hasher   *auth.Hasher
	tokenMgr *auth.TokenManager
	authz    *auth.Authorizer
	audit    *audit.Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// AuthDependencies bundles collaborators for the auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	Hasher       *auth.Hasher
	TokenManager *auth.TokenManager
	Authorizer   *auth.Authorizer
	Audit        *audit.Recorder
	Logger       *zap.Logger
	Clock        func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	s := &AuthService{
		users:    deps.UserRepo,
		hasher:   deps.Hasher,
		tokenMgr: deps.TokenManager,
		authz:    deps.Authorizer,
		audit:    deps.Audit,
		logger:   deps.Logger,
		now:      deps.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.authz == nil {
		s.authz = auth.NewAuthorizer(s.tokenMgr)
	}
	return s
}

// Register validates and stores a new account. Only the password digest is
// written.
func (s *AuthService) Register(ctx context.Context, rawUsername, rawPassword, rawRole string) (*domain.User, error) {
	username, err := validation.Username(rawUsername)
	if err != nil {
		return nil, err
	}
	password, err := validation.Password(rawPassword)
	if err != nil {
		return nil, err
	}
	role, err := validation.Role(rawRole)
	if err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("hash password: %w", err))
	}
	user := &domain.User{Username: username, PasswordHash: digest, Role: role}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("role", string(role)))

	if err := s.audit.User(ctx, user, audit.Event{
		Action:   domain.ActionRegister,
		Entity:   domain.EntityUser,
		EntityID: strconv.FormatInt(user.ID, 10),
		Status:   domain.AuditSuccess,
		Details:  fmt.Sprintf("new user %s with role %s", user.Username, user.Role),
	}); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks credentials and opens a session. Unknown usernames and wrong
// passwords fail with the same error, and both are audited.
func (s *AuthService) Login(ctx context.Context, rawUsername, password string) (*domain.Session, error) {
	username, err := validation.Username(rawUsername)
	if err != nil {
		auth.VerifyPassword(password, dummyDigest)
		return nil, s.loginFailed(ctx, validation.Text(rawUsername, validation.UsernameMaxLen))
	}

	user, err := s.users.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		auth.VerifyPassword(password, dummyDigest)
		return nil, s.loginFailed(ctx, username)
	case err != nil:
		return nil, err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, s.loginFailed(ctx, username)
	}

	session := &domain.Session{
		ID:       uuid.NewString(),
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		IssuedAt: s.now().UTC(),
	}
	if s.tokenMgr != nil {
		if err := s.tokenMgr.Issue(session); err != nil {
			return nil, apperrors.NewInternalError(fmt.Errorf("issue session token: %w", err))
		}
	}

	if err := s.audit.User(ctx, user, audit.Event{
		Action:   domain.ActionLogin,
		Entity:   domain.EntitySession,
		EntityID: session.ID,
		Status:   domain.AuditSuccess,
		Details:  "login successful",
	}); err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", zap.Int64("user_id", user.ID))
	return session, nil
}

func (s *AuthService) loginFailed(ctx context.Context, username string) error {
	s.logger.Info("login failed")
	if err := s.audit.Anonymous(ctx, username, audit.Event{
		Action:  domain.ActionLoginFailed,
		Entity:  domain.EntityUser,
		Status:  domain.AuditDenied,
		Details: "invalid credentials",
	}); err != nil {
		return err
	}
	return apperrors.NewAuthenticationError()
}

// Logout records the end of a session. It never fails for the caller: an
// audit failure is logged and swallowed.
func (s *AuthService) Logout(ctx context.Context, session *domain.Session) error {
	if session == nil {
		return nil
	}
	if !s.authz.Authenticated(session) {
		// The claimed identity is not trusted into the trail.
		s.logger.Info("logout with unverified session")
		_ = s.audit.Session(ctx, nil, audit.Event{
			Action:  domain.ActionLogout,
			Entity:  domain.EntitySession,
			Status:  domain.AuditDenied,
			Details: "logout with an unverified session",
		})
		return nil
	}
	_ = s.audit.Session(ctx, session, audit.Event{
		Action:   domain.ActionLogout,
		Entity:   domain.EntitySession,
		EntityID: session.ID,
		Status:   domain.AuditSuccess,
		Details:  "logout",
	})
	return nil
}
