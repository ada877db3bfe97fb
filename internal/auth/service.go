package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"taskdesk.org/internal/ids"
	"taskdesk.org/internal/obs"
)

// RegisterInput is the self-service sign-up payload.
type RegisterInput struct {
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=8"`
	FirstName      string `json:"firstName" validate:"required"`
	LastName       string `json:"lastName" validate:"required"`
	RoleID         string `json:"roleId" validate:"required,uuid"`
	OrganizationID string `json:"organizationId" validate:"required,uuid"`
}

// LoginInput carries credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is the result of a successful register or login.
type Session struct {
	Principal Principal
	Token     string
	ExpiresAt time.Time
}

// Service authenticates callers and manages session tokens.
type Service struct {
	store       Store
	issuer      *Issuer
	revocations Revocations
	now         func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithRevocations enables logout revocation checks.
func WithRevocations(r Revocations) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.revocations = r
		}
	}
}

// WithNow overrides the clock used for login stamps.
func WithNow(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs Service with optional configuration.
func NewService(store Store, issuer *Issuer, opts ...ServiceOption) *Service {
	svc := &Service{
		store:       store,
		issuer:      issuer,
		revocations: NopRevocations{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Register creates an account and signs the caller in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	in.Email = NormalizeEmail(in.Email)
	if err := ValidateInput(in); err != nil {
		return Session{}, err
	}
	users := s.store.Users(ctx)
	if _, err := users.FindByEmail(ctx, in.Email); err == nil {
		return Session{}, fmt.Errorf("%w: Email already registered", ErrConflict)
	} else if !errors.Is(err, ErrNotFound) {
		return Session{}, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	user := &User{
		ID:             ids.New(),
		Email:          in.Email,
		PasswordHash:   hash,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		RoleID:         in.RoleID,
		OrganizationID: in.OrganizationID,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return Session{}, fmt.Errorf("%w: Email already registered", ErrConflict)
		}
		if errors.Is(err, ErrNotFound) {
			return Session{}, fmt.Errorf("%w: role or organization does not exist", ErrInvalidInput)
		}
		return Session{}, err
	}
	return s.openSession(ctx, user.ID)
}

// Login checks credentials. Unknown email and wrong password are indistinguishable.
func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	in.Email = NormalizeEmail(in.Email)
	if err := ValidateInput(in); err != nil {
		return Session{}, err
	}
	users := s.store.Users(ctx)
	user, err := users.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, errInvalidCredentials
		}
		return Session{}, err
	}
	if err := VerifyPassword(user.PasswordHash, in.Password); err != nil {
		if ferr := users.RecordFailedLogin(ctx, user.ID); ferr != nil {
			obs.Logger().WithError(ferr).WithField("user_id", user.ID).Warn("record_failed_login")
		}
		return Session{}, errInvalidCredentials
	}
	if !user.IsActive {
		return Session{}, errInvalidCredentials
	}
	if err := users.RecordLogin(ctx, user.ID, s.now().UTC()); err != nil {
		return Session{}, err
	}
	return s.openSession(ctx, user.ID)
}

var errInvalidCredentials = fmt.Errorf("%w: Invalid credentials", ErrUnauthorized)

var errInvalidSession = fmt.Errorf("%w: %w", ErrUnauthorized, ErrInvalidToken)

// Authenticate verifies the token and re-resolves the principal from the live store.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, *Claims, error) {
	claims, err := s.issuer.Verify(token)
	if err != nil {
		return Principal{}, nil, errInvalidSession
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		obs.Logger().WithError(err).WithField("jti", claims.ID).Warn("revocation_check_failed")
	} else if revoked {
		return Principal{}, nil, errInvalidSession
	}
	principal, err := s.store.Users(ctx).Principal(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, nil, errInvalidSession
		}
		return Principal{}, nil, err
	}
	if !principal.User.IsActive {
		return Principal{}, nil, errInvalidSession
	}
	return principal, claims, nil
}

// Logout revokes the token until its natural expiry. Invalid tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.issuer.Verify(token)
	if err != nil {
		return nil
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	obs.Logger().WithFields(logrus.Fields{"user_id": claims.Subject, "jti": claims.ID}).Info("session_revoked")
	return nil
}

// Principal resolves a principal by user id.
func (s *Service) Principal(ctx context.Context, userID string) (Principal, error) {
	return s.store.Users(ctx).Principal(ctx, userID)
}

// Issuer exposes the token issuer, e.g. for cookie max-age.
func (s *Service) Issuer() *Issuer { return s.issuer }

func (s *Service) openSession(ctx context.Context, userID string) (Session, error) {
	principal, err := s.store.Users(ctx).Principal(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	token, expiresAt, err := s.issuer.Issue(principal.User)
	if err != nil {
		return Session{}, err
	}
	return Session{Principal: principal, Token: token, ExpiresAt: expiresAt}, nil
}
