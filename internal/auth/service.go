package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/lifei6671/userauth/internal/config"
)

type Service struct {
	store      Store
	signer     *Signer
	accessTTL  time.Duration
	refreshTTL time.Duration
	hashCost   int
	now        func() time.Time
}

func NewService(store Store, signer *Signer, cfg config.Auth) *Service {
	return &Service{
		store:      store,
		signer:     signer,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		hashCost:   bcrypt.DefaultCost,
		now:        time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, name, email, password string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	u := User{
		Name:         strings.TrimSpace(name),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Login checks the credentials and issues a token pair. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	u, err := s.store.UserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}
	return s.issue(u)
}

// Each refresh token works once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.signer.Parse(refreshToken, KindRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	if err := s.store.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return TokenPair{}, err
	}

	u, err := s.userFromSubject(ctx, claims.Subject)
	if err != nil {
		return TokenPair{}, err
	}
	return s.issue(u)
}

// Logout revokes a refresh token. Tokens that are invalid or already revoked
// have nothing left to revoke and are not an error.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.signer.Parse(refreshToken, KindRefresh)
	if err != nil {
		return nil
	}

	err = s.store.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil && !errors.Is(err, ErrTokenRevoked) {
		return err
	}
	return nil
}

func (s *Service) Authenticate(accessToken string) (*Claims, error) {
	return s.signer.Parse(accessToken, KindAccess)
}

func (s *Service) Profile(ctx context.Context, claims *Claims) (User, error) {
	return s.userFromSubject(ctx, claims.Subject)
}

func (s *Service) userFromSubject(ctx context.Context, subject string) (User, error) {
	id, err := primitive.ObjectIDFromHex(subject)
	if err != nil {
		return User{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	u, err := s.store.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		return User{}, err
	}
	return u, nil
}

func (s *Service) issue(u User) (TokenPair, error) {
	userID := u.ID.Hex()

	access, _, err := s.signer.Sign(userID, u.Email, KindAccess, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := s.signer.Sign(userID, u.Email, KindRefresh, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}
