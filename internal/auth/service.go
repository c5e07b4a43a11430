// Package auth signs the site owner in and out. Passwords are bcrypt hashes;
// the session cookie carries an HS256 JWT whose jti names a row in the
// sessions table, so signing out revokes the token server-side.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Zachkp/folio/internal/models"
	"github.com/Zachkp/folio/internal/repository"
)

const MinPasswordLength = 6

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrUnauthenticated    = errors.New("not signed in")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrRateLimited        = errors.New("too many sign-in attempts, try again later")
)

type EventKind string

const (
	SignedIn        EventKind = "signed_in"
	SignedOut       EventKind = "signed_out"
	PasswordUpdated EventKind = "password_updated"
)

// Event is published on every change to the authentication state.
type Event struct {
	Kind   EventKind `json:"kind"`
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`
}

// Claims is the JWT payload. ID (jti) is the session row id.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Option func(*Service)

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithNow replaces the wall clock used for token and session expiry.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	secret   []byte
	ttl      time.Duration
	cost     int
	now      func() time.Time

	mu      sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

func NewService(users repository.UserRepository, sessions repository.SessionRepository, secret string, ttl time.Duration, opts ...Option) *Service {
	s := &Service{
		users:    users,
		sessions: sessions,
		secret:   []byte(secret),
		ttl:      ttl,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
		subs:     make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) TTL() time.Duration { return s.ttl }

// SignIn checks the credentials and opens a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, *models.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("sign in: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := s.now().UTC().Truncate(time.Second)
	sess := &models.Session{
		UserID:    user.ID,
		Email:     user.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return "", nil, fmt.Errorf("sign in: %w", err)
	}

	token, err := s.sign(sess)
	if err != nil {
		return "", nil, err
	}
	s.publish(Event{Kind: SignedIn, UserID: user.ID, At: now})
	return token, sess, nil
}

// Session resolves a token to its live session. Invalid, expired and revoked
// tokens yield a nil session and no error.
func (s *Service) Session(ctx context.Context, token string) (*models.Session, error) {
	claims, err := s.parse(token, true)
	if err != nil {
		return nil, nil
	}
	sess, err := s.sessions.Get(ctx, claims.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.UserID != claims.Subject || !sess.ExpiresAt.After(s.now()) {
		return nil, nil
	}
	return sess, nil
}

// SignOut revokes the session behind token. Signing out twice is not an error.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.parse(token, false)
	if err != nil {
		return ErrUnauthenticated
	}
	err = s.sessions.Delete(ctx, claims.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("sign out: %w", err)
	}
	s.publish(Event{Kind: SignedOut, UserID: claims.Subject, At: s.now()})
	return nil
}

// ValidatePassword applies the password change rules.
func ValidatePassword(password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// UpdatePassword sets a new password for userID.
func (s *Service) UpdatePassword(ctx context.Context, userID, password, confirm string) error {
	if err := ValidatePassword(password, confirm); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.publish(Event{Kind: PasswordUpdated, UserID: userID, At: s.now()})
	return nil
}

// SignOutOthers revokes every session of the user except keep.
func (s *Service) SignOutOthers(ctx context.Context, keep *models.Session) (int64, error) {
	return s.sessions.DeleteOthers(ctx, keep.UserID, keep.ID)
}

// PurgeExpired drops session rows past their expiry.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.now())
}

// EnsureOwner creates the owner account when no user exists yet. An empty
// password is replaced by a random one, which is logged once.
func (s *Service) EnsureOwner(ctx context.Context, email, password string) (bool, error) {
	n, err := s.users.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	if password == "" {
		b := make([]byte, 12)
		if _, err := rand.Read(b); err != nil {
			return false, fmt.Errorf("generate password: %w", err)
		}
		password = hex.EncodeToString(b)
		log.Printf("[auth] ADMIN_PASSWORD not set, generated owner password: %s", password)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	u := &models.User{Email: email, PasswordHash: string(hash), Preferences: models.DefaultPreferences()}
	if err := s.users.Create(ctx, u); err != nil {
		return false, err
	}
	log.Printf("[auth] created owner account %s", email)
	return true, nil
}

// Subscribe registers fn for auth events and returns the function that
// removes it. fn runs on the goroutine that changed the state.
func (s *Service) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Service) publish(e Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

func (s *Service) sign(sess *models.Session) (string, error) {
	claims := Claims{
		Email: sess.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (s *Service) parse(token string, validate bool) (*Claims, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if !validate {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}
