/**
 * @description
 * AuthService signs users in with email and password and issues HS256 tokens.
 * The signed-in user is mirrored into the session store so that request
 * handlers can read the profile without a database round trip.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: Token issuing and verification.
 * - golang.org/x/crypto/bcrypt: Password hashing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/transfa/fund-service/internal/domain"
	"github.com/transfa/fund-service/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// AuthConfig carries the token settings.
type AuthConfig struct {
	Secret     string
	TTL        time.Duration
	Issuer     string
	BcryptCost int
}

// Claims are the JWT claims issued at login.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService provides login, logout and token verification.
type AuthService struct {
	repo     store.Repository
	mirror   store.SessionMirror
	profiles *UserService
	cfg      AuthConfig
	now      func() time.Time
}

// NewAuthService creates a new auth service instance.
func NewAuthService(repo store.Repository, mirror store.SessionMirror, cfg AuthConfig) *AuthService {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "fund-service"
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{repo: repo, mirror: mirror, profiles: NewUserService(repo, mirror), cfg: cfg, now: time.Now}
}

// Register creates an account with a hashed password.
func (s *AuthService) Register(ctx context.Context, email, name, password, role string) domain.Result[domain.User] {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.Err[domain.User](fmt.Errorf("%w: a valid email is required", ErrInvalidProfile))
	}
	if len(password) < 8 {
		return domain.Err[domain.User](fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidProfile))
	}
	if role == "" {
		role = domain.RoleInvestor
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return domain.Err[domain.User](fmt.Errorf("hash password: %w", err))
	}
	user := domain.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		Role:         role,
		PasswordHash: string(hash),
	}
	if err := s.repo.CreateUser(ctx, &user); err != nil {
		return domain.Err[domain.User](fmt.Errorf("create user: %w", err))
	}
	return domain.Ok(user, "Account created")
}

// Login verifies the credentials and returns a signed session token.
func (s *AuthService) Login(ctx context.Context, email, password string) domain.Result[domain.Session] {
	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return domain.Err[domain.Session](ErrInvalidCredentials)
		}
		log.Printf("level=error component=auth_service msg=\"user lookup failed\" err=%v", err)
		return domain.Err[domain.Session](fmt.Errorf("find user: %w", err))
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return domain.Err[domain.Session](ErrInvalidCredentials)
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.cfg.TTL)
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return domain.Err[domain.Session](fmt.Errorf("sign token: %w", err))
	}

	if err := s.mirror.Save(ctx, *user); err != nil {
		log.Printf("level=warn component=auth_service msg=\"session mirror save failed\" user_id=%s err=%v", user.ID, err)
	}

	return domain.Ok(domain.Session{Token: token, ExpiresAt: expiresAt, User: *user}, "Signed in")
}

// Logout drops the mirrored session. Issued tokens stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := s.mirror.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CurrentUser returns the signed-in user, preferring the mirrored copy. It
// returns nil when the account no longer exists.
func (s *AuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.mirror.Load(ctx, userID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrSessionNotFound) {
		log.Printf("level=warn component=auth_service msg=\"session mirror read failed\" user_id=%s err=%v", userID, err)
	}

	user, err = s.profiles.GetProfile(ctx, userID)
	if err != nil || user == nil {
		return nil, err
	}
	if err := s.mirror.Save(ctx, *user); err != nil {
		log.Printf("level=warn component=auth_service msg=\"session mirror save failed\" user_id=%s err=%v", user.ID, err)
	}
	return user, nil
}

// VerifyToken checks the signature and expiry of a token and returns its subject.
func (s *AuthService) VerifyToken(tokenString string) (uuid.UUID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithIssuer(s.cfg.Issuer), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	return userID, nil
}
