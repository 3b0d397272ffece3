package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"decentra/internal/models"
	"decentra/internal/repository"
	"decentra/internal/security"
)

// CredentialStore is the persisted table of user accounts.
type CredentialStore interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	FindByPhone(ctx context.Context, phone string) (models.User, error)
	GetByID(ctx context.Context, id int64) (models.User, error)
	Exists(ctx context.Context, id int64) (bool, error)
}

type PasswordHasher interface {
	Hash(password string) ([]byte, error)
	Verify(password string, digest []byte) (bool, error)
}

type TokenIssuer interface {
	Issue(user models.User) (security.IssuedToken, error)
}

type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

type AuthOptions struct {
	AllowAdminSignup bool
}

type AuthService struct {
	users   CredentialStore
	hasher  PasswordHasher
	tokens  TokenIssuer
	revoker TokenRevoker
	opts    AuthOptions
	log     zerolog.Logger

	// dummyDigest is verified against when the phone is unknown so both
	// login failure paths cost one hash.
	dummyDigest []byte
}

// NewAuthService wires the gateway. revoker may be nil, in which case
// logout only clears the transport.
func NewAuthService(
	users CredentialStore,
	hasher PasswordHasher,
	tokens TokenIssuer,
	revoker TokenRevoker,
	opts AuthOptions,
	log zerolog.Logger,
) *AuthService {
	dummy, err := hasher.Hash("decentra-login-placeholder")
	if err != nil {
		log.Warn().Err(err).Msg("placeholder digest unavailable")
	}
	return &AuthService{
		users:       users,
		hasher:      hasher,
		tokens:      tokens,
		revoker:     revoker,
		opts:        opts,
		log:         log,
		dummyDigest: dummy,
	}
}

// Profile is the public view of a user. It never carries the password hash.
type Profile struct {
	ID       int64
	Phone    string
	Name     string
	Surname  string
	Role     models.UserRole
	PhotoIDs []int64
	AppealID *int64
}

type AuthResult struct {
	Profile Profile
	Token   security.IssuedToken
}

type SessionInfo struct {
	Authenticated bool
	UserID        int64
	Role          models.UserRole
	Name          string
	Surname       string
	Phone         string
	ExpiresAt     time.Time
}

type RegisterInput struct {
	Phone    string
	Name     string
	Surname  string
	Role     string
	Password string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	input.Phone = strings.TrimSpace(input.Phone)
	input.Name = strings.TrimSpace(input.Name)
	input.Surname = strings.TrimSpace(input.Surname)

	switch {
	case input.Phone == "":
		return AuthResult{}, fmt.Errorf("%w: phone is required", ErrInvalidInput)
	case input.Name == "":
		return AuthResult{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	case input.Surname == "":
		return AuthResult{}, fmt.Errorf("%w: surname is required", ErrInvalidInput)
	case input.Password == "":
		return AuthResult{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	role := models.UserRoleUser
	if r := strings.TrimSpace(strings.ToLower(input.Role)); r != "" {
		role = models.UserRole(r)
	}
	if !role.Valid() {
		return AuthResult{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, input.Role)
	}
	if role == models.UserRoleAdmin && !s.opts.AllowAdminSignup {
		return AuthResult{}, fmt.Errorf("%w: admin accounts cannot self-register", ErrForbidden)
	}

	digest, err := s.hasher.Hash(input.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, models.User{
		Phone:        input.Phone,
		Name:         input.Name,
		Surname:      input.Surname,
		Role:         role,
		PasswordHash: digest,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, repository.ErrPhoneTaken) {
			return AuthResult{}, ErrPhoneTaken
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}

	s.log.Info().Int64("user_id", user.ID).Str("phone", user.Phone).Msg("user registered")
	return AuthResult{Profile: toProfile(user), Token: token}, nil
}

type LoginInput struct {
	Phone    string
	Password string
}

// Login returns ErrInvalidCredentials for an unknown phone, a wrong password
// and an inactive account alike.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	phone := strings.TrimSpace(input.Phone)
	if phone == "" || input.Password == "" {
		return AuthResult{}, ErrInvalidCredentials
	}

	user, err := s.users.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			_, _ = s.hasher.Verify(input.Password, s.dummyDigest)
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("find user: %w", err)
	}

	ok, err := s.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", user.ID).Msg("stored password digest unreadable")
		return AuthResult{}, ErrInvalidCredentials
	}
	if !ok || !user.IsActive {
		return AuthResult{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	return AuthResult{Profile: toProfile(user), Token: token}, nil
}

// Logout revokes the presented token when revocation is configured.
func (s *AuthService) Logout(ctx context.Context, claims security.ClaimSet) error {
	if s.revoker == nil {
		return nil
	}
	if err := s.revoker.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// Introspect re-reads the user behind a validated claim set. A missing or
// deactivated user is reported as not authenticated.
func (s *AuthService) Introspect(ctx context.Context, claims security.ClaimSet) (SessionInfo, error) {
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return SessionInfo{}, ErrNotAuthenticated
		}
		return SessionInfo{}, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return SessionInfo{}, ErrNotAuthenticated
	}

	return SessionInfo{
		Authenticated: true,
		UserID:        user.ID,
		Role:          claims.Role,
		Name:          user.Name,
		Surname:       user.Surname,
		Phone:         user.Phone,
		ExpiresAt:     claims.ExpiresAt,
	}, nil
}

// CheckActive reports whether the id still resolves to a stored user.
func (s *AuthService) CheckActive(ctx context.Context, userID int64) (bool, error) {
	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return exists, nil
}

func (s *AuthService) Profile(ctx context.Context, userID int64) (Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Profile{}, ErrNotAuthenticated
		}
		return Profile{}, fmt.Errorf("load user: %w", err)
	}
	return toProfile(user), nil
}

func toProfile(user models.User) Profile {
	return Profile{
		ID:       user.ID,
		Phone:    user.Phone,
		Name:     user.Name,
		Surname:  user.Surname,
		Role:     user.Role,
		PhotoIDs: user.PhotoIDs,
		AppealID: user.AppealID,
	}
}
