// Package auth is the identity and session service: password sign-up,
// sign-in issuing HS256 session tokens, sign-out and token verification.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"habitline/internal/domain"
	"habitline/internal/events"
	"habitline/internal/repo"
)

const MinPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidInput       = errors.New("invalid input")
)

// Service issues and verifies sessions backed by the sessions table.
type Service struct {
	Repo   repo.Repo
	Events events.Writer
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

// Principal is the authenticated caller behind a token.
type Principal struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Service) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return 72 * time.Hour
}

// SignUp creates a user and its empty profile in one transaction.
func (s Service) SignUp(ctx context.Context, email, password, username string) (domain.User, error) {
	email = repo.NormalizeEmail(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return domain.User{}, fmt.Errorf("email %q: %w", email, ErrInvalidInput)
	}
	if len(password) < MinPasswordLength {
		return domain.User{}, fmt.Errorf("password must have at least %d characters: %w", MinPasswordLength, ErrInvalidInput)
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = email[:strings.Index(email, "@")]
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC().Format(time.RFC3339)
	u := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
	}

	tx, err := s.Repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	if err := s.Repo.InsertUser(ctx, tx, u); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	if err := s.Repo.InsertProfile(ctx, tx, domain.UserProfile{
		ID:        u.ID,
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return domain.User{}, fmt.Errorf("insert profile: %w", err)
	}
	if err := s.Events.Append(ctx, tx, events.UserSignedUp, u.ID, "user", u.ID, events.EventPayload{"username": username}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// SignIn verifies the password and opens a session. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s Service) SignIn(ctx context.Context, email, password string) (domain.Session, string, error) {
	if len(s.Secret) == 0 {
		return domain.Session{}, "", errors.New("jwt secret not configured")
	}
	u, err := s.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Session{}, "", ErrInvalidCredentials
		}
		return domain.Session{}, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return domain.Session{}, "", ErrInvalidCredentials
	}
	now := s.now().UTC()
	expires := now.Add(s.ttl())
	session := domain.Session{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		CreatedAt: now.Format(time.RFC3339),
		ExpiresAt: expires.Format(time.RFC3339),
	}
	if err := s.Repo.InsertSession(ctx, nil, session); err != nil {
		return domain.Session{}, "", fmt.Errorf("insert session: %w", err)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Email: u.Email,
	})
	signed, err := token.SignedString(s.Secret)
	if err != nil {
		return domain.Session{}, "", fmt.Errorf("sign token: %w", err)
	}
	return session, signed, nil
}

// SignOut revokes a session.
func (s Service) SignOut(ctx context.Context, sessionID string) error {
	return s.Repo.RevokeSession(ctx, sessionID, s.now().UTC().Format(time.RFC3339))
}

// Authenticate verifies a bearer token and its backing session.
func (s Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	if len(s.Secret) == 0 {
		return Principal{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	c := &claims{}
	parsed, err := parser.ParseWithClaims(token, c, func(t *jwt.Token) (any, error) {
		return s.Secret, nil
	})
	if err != nil || !parsed.Valid {
		return Principal{}, ErrInvalidCredentials
	}
	if c.Subject == "" || c.ID == "" {
		return Principal{}, ErrInvalidCredentials
	}
	session, err := s.Repo.GetSession(ctx, c.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Principal{}, ErrInvalidCredentials
		}
		return Principal{}, err
	}
	if session.RevokedAt != nil || session.UserID != c.Subject {
		return Principal{}, ErrInvalidCredentials
	}
	return Principal{
		UserID:    c.Subject,
		SessionID: c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
