// Package auth implements account registration, login, and bearer-token
// session resolution for the KisaanConnect API.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"kisaanconnect/internal/types"
)

// UserRepo defines the data access methods needed by the auth service for
// user operations.
type UserRepo interface {
	Create(ctx context.Context, user *types.User) error
	GetByID(ctx context.Context, id int64) (*types.User, error)
	GetByUsername(ctx context.Context, username string) (*types.User, error)
}

// SessionRepo defines the data access methods needed by the auth service for
// session operations.
type SessionRepo interface {
	Create(ctx context.Context, session *types.Session) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*types.Session, error)
	Delete(ctx context.Context, tokenHash string) error
}

// PasswordHasher abstracts bcrypt operations for testability.
type PasswordHasher interface {
	CompareHashAndPassword(hashedPassword, password string) error
	GenerateFromPassword(password string) (string, error)
}

// bcryptHasher is the production implementation of PasswordHasher.
type bcryptHasher struct {
	cost int
}

func (b *bcryptHasher) CompareHashAndPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func (b *bcryptHasher) GenerateFromPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// HashToken produces a hex-encoded SHA-256 hash of a raw token string.
// Session tokens are stored hashed so the database never holds a credential
// usable as-is; SHA-256 (unlike bcrypt) keeps the hash searchable by exact
// match.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// TokenGenerator abstracts entropy sources for testability.
type TokenGenerator interface {
	GenerateSessionToken() (string, error)
}

// randomTokenGenerator is the production TokenGenerator: 32 random bytes
// encoded as 64 hex characters.
type randomTokenGenerator struct{}

func (randomTokenGenerator) GenerateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Service implements registration, login, and session resolution.
type Service struct {
	users    UserRepo
	sessions SessionRepo
	hasher   PasswordHasher
	tokenGen TokenGenerator
	clock    types.Clock
	logger   *slog.Logger

	sessionDuration time.Duration
}

// ServiceConfig holds the dependencies for creating an auth Service.
type ServiceConfig struct {
	Users           UserRepo
	Sessions        SessionRepo
	Hasher          PasswordHasher // Defaults to bcrypt with BcryptCost.
	TokenGen        TokenGenerator // Defaults to crypto/rand hex tokens.
	Clock           types.Clock    // Defaults to RealClock.
	Logger          *slog.Logger   // Defaults to slog.Default().
	SessionDuration time.Duration  // Defaults to 24h.
	BcryptCost      int            // Defaults to bcrypt.DefaultCost.
}

// NewService creates a new auth Service.
func NewService(cfg ServiceConfig) *Service {
	hasher := cfg.Hasher
	if hasher == nil {
		cost := cfg.BcryptCost
		if cost == 0 {
			cost = bcrypt.DefaultCost
		}
		hasher = &bcryptHasher{cost: cost}
	}
	tokenGen := cfg.TokenGen
	if tokenGen == nil {
		tokenGen = randomTokenGenerator{}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	duration := cfg.SessionDuration
	if duration == 0 {
		duration = 24 * time.Hour
	}
	return &Service{
		users:           cfg.Users,
		sessions:        cfg.Sessions,
		hasher:          hasher,
		tokenGen:        tokenGen,
		clock:           clock,
		logger:          logger,
		sessionDuration: duration,
	}
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Username string
	Password string
	Role     types.UserRole
	Name     string
	Email    string
}

// Register creates a new marketplace account. The password is bcrypt-hashed;
// the plaintext is never stored or logged. Returns ErrCodeConflictUsername
// when the username is taken.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*types.User, error) {
	if !in.Role.Valid() {
		return nil, types.NewAppError(types.ErrCodeValidationInvalidRole, "role must be farmer or consumer", nil)
	}

	hash, err := s.hasher.GenerateFromPassword(in.Password)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to hash password", err)
	}

	user := &types.User{
		Username:     in.Username,
		PasswordHash: hash,
		Role:         in.Role,
		Name:         in.Name,
		Email:        in.Email,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		"user_id", user.ID,
		"role", string(user.Role),
	)

	return user, nil
}

// Login verifies credentials and creates a session. It returns the user, the
// raw bearer token (only ever surfaced here), and the session row.
//
// Enumeration protection: user-not-found and wrong-password both return the
// generic invalid-credentials error.
func (s *Service) Login(ctx context.Context, username, password string) (*types.User, string, *types.Session, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if appErr, ok := err.(*types.AppError); ok && appErr.Code == types.ErrCodeAuthUserNotFound {
			return nil, "", nil, types.NewAppError(types.ErrCodeAuthInvalidCreds, "invalid username or password", nil)
		}
		return nil, "", nil, err
	}

	if err := s.hasher.CompareHashAndPassword(user.PasswordHash, password); err != nil {
		return nil, "", nil, types.NewAppError(types.ErrCodeAuthInvalidCreds, "invalid username or password", nil)
	}

	token, err := s.tokenGen.GenerateSessionToken()
	if err != nil {
		return nil, "", nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate session token", err)
	}

	now := s.clock.Now()
	session := &types.Session{
		TokenHash: HashToken(token),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.sessionDuration),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", nil, err
	}

	s.logger.Info("user logged in", "user_id", user.ID)

	return user, token, session, nil
}

// Logout deletes the session for the given raw token. Unknown tokens are a
// no-op; logout is idempotent.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, HashToken(token))
}

// Me returns the account for an authenticated actor.
func (s *Service) Me(ctx context.Context, userID int64) (*types.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ResolveToken resolves a raw bearer token to an Actor. It implements the
// API chassis Authenticator interface.
//
// Expired sessions are rejected with ErrCodeAuthTokenExpired and deleted
// lazily so the table does not accumulate dead rows.
func (s *Service) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	tokenHash := HashToken(token)

	session, err := s.sessions.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}

	if session.Expired(s.clock.Now()) {
		if delErr := s.sessions.Delete(ctx, tokenHash); delErr != nil {
			s.logger.Warn("failed to delete expired session", "error", delErr)
		}
		return nil, types.NewAppError(types.ErrCodeAuthTokenExpired, "session has expired", nil)
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		// The account vanished underneath a live session.
		if appErr, ok := err.(*types.AppError); ok && appErr.Code == types.ErrCodeNotFoundUser {
			return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid session token", nil)
		}
		return nil, err
	}

	return &types.Actor{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	}, nil
}
