package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"surf_clock/internal/repository"
)

const (
	defaultTokenTTL   = time.Hour
	tokenIssuer       = "surf_clock"
	minPasswordLength = 8
	// bcrypt ignores everything past 72 bytes
	maxPasswordBytes = 72
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{2,31}$`)

// AuthConfig carries the token settings from config.
type AuthConfig struct {
	SigningKey string
	TokenTTL   time.Duration
}

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidUsername    = errors.New("username must be 3-32 characters of a-z, 0-9, '.', '_' or '-'")
	ErrWeakPassword       = fmt.Errorf("password must be %d-%d bytes", minPasswordLength, maxPasswordBytes)
	ErrUsernameTaken      = errors.New("username already taken")
	ErrSignUpClosed       = errors.New("sign-up requires an operator token once the first operator exists")
	ErrInvalidToken       = errors.New("invalid token")
)

// AuthService registers operators and issues the bearer tokens that guard the
// control API.
type AuthService struct {
	operators  repository.OperatorRepo
	signingKey []byte
	tokenTTL   time.Duration
	now        func() time.Time
}

// NewAuthService builds the auth flows. An empty signing key is replaced with
// a random one, so issued tokens stop working after a restart.
func NewAuthService(operators repository.OperatorRepo, cfg AuthConfig) *AuthService {
	key := cfg.SigningKey
	if key == "" {
		key = uuid.NewString()
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &AuthService{operators: operators, signingKey: []byte(key), tokenTTL: ttl, now: time.Now}
}

// SignUp creates an operator. The first operator may register freely; after
// that invited must be true (the caller already holds a valid token).
func (s *AuthService) SignUp(ctx context.Context, username, password string, invited bool) (int, error) {
	username = normalizeUsername(username)
	if !usernamePattern.MatchString(username) {
		return 0, ErrInvalidUsername
	}
	if err := checkPassword(password); err != nil {
		return 0, err
	}

	if !invited {
		n, err := s.operators.Count(ctx)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return 0, ErrSignUpClosed
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	id, err := s.operators.Create(ctx, username, string(hash))
	if errors.Is(err, repository.ErrDuplicate) {
		return 0, ErrUsernameTaken
	}
	return id, err
}

// Claims defines JWT claims. Subject carries the username.
type Claims struct {
	jwt.RegisteredClaims
	UserID int `json:"user_id"`
}

// GenerateToken checks credentials and returns a signed token. Unknown users
// and wrong passwords are indistinguishable to the caller.
func (s *AuthService) GenerateToken(ctx context.Context, username, password string) (string, error) {
	op, err := s.operators.GetByUsername(ctx, normalizeUsername(username))
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.issueToken(op.ID, op.Username)
}

// ParseToken verifies the signature, expiry and issuer and returns the
// operator id.
func (s *AuthService) ParseToken(accessToken string) (int, error) {
	token, err := jwt.ParseWithClaims(accessToken, &Claims{},
		func(token *jwt.Token) (interface{}, error) {
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}

func (s *AuthService) issueToken(userID int, username string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   username,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: userID,
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token for operator %d: %w", userID, err)
	}
	return signed, nil
}

func normalizeUsername(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}

func checkPassword(p string) error {
	if strings.TrimSpace(p) == "" || utf8.RuneCountInString(p) < minPasswordLength || len(p) > maxPasswordBytes {
		return ErrWeakPassword
	}
	return nil
}
