package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/xaenox/email-assistant/internal/actor"
	"github.com/xaenox/email-assistant/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	sessionLifetime   = 7 * 24 * time.Hour
)

var (
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidCredentials is returned for both a missing account and a
	// password mismatch, so login gives no account-existence oracle.
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrInvalidEmail   = errors.New("invalid email format")
	ErrWeakPassword   = errors.New("password must be at least 8 characters")
	ErrSessionExpired = errors.New("session expired")
	ErrInvalidToken   = errors.New("invalid session token")
	ErrUserNotFound   = errors.New("user not found")

	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Identity is the authenticated-user shape handed back to callers.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Service registers and authenticates users against their mailbox actors
// and issues HMAC-signed bearer session tokens.
type Service struct {
	mailboxes *actor.Mailboxes
	jwtSecret []byte
	logger    *zap.Logger
}

func NewService(mailboxes *actor.Mailboxes, jwtSecret string, logger *zap.Logger) *Service {
	return &Service{
		mailboxes: mailboxes,
		jwtSecret: []byte(jwtSecret),
		logger:    logger,
	}
}

// HashPassword creates a bcrypt digest.
func HashPassword(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// VerifyPassword checks a password against a stored digest.
func VerifyPassword(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// Register validates and creates a new account, returning the identity and
// a fresh session token. The lowercased email is the account key; a second
// registration at the same key fails without touching the existing account.
func (s *Service) Register(ctx context.Context, email, password, name string) (Identity, string, error) {
	if !emailPattern.MatchString(email) {
		return Identity{}, "", ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return Identity{}, "", ErrWeakPassword
	}

	userID := strings.ToLower(email)
	mailbox, err := s.mailboxes.Get(ctx, userID)
	if err != nil {
		return Identity{}, "", fmt.Errorf("failed to resolve mailbox: %w", err)
	}

	digest, err := HashPassword(password)
	if err != nil {
		return Identity{}, "", fmt.Errorf("failed to hash password: %w", err)
	}

	if name == "" {
		name = strings.SplitN(userID, "@", 2)[0]
	}

	// Create-if-absent runs under the actor's lock, so two concurrent
	// registrations at the same key cannot interleave: exactly one wins
	// and the loser never touches the stored digest.
	account, err := mailbox.CreateAccount(ctx, &models.UserAccount{
		Email:          userID,
		Name:           name,
		PasswordDigest: digest,
		Preferences:    models.DefaultPreferences(),
	})
	if err != nil {
		if errors.Is(err, actor.ErrAccountExists) {
			return Identity{}, "", ErrUserExists
		}
		return Identity{}, "", fmt.Errorf("failed to create account: %w", err)
	}

	token, err := s.issueToken(userID)
	if err != nil {
		return Identity{}, "", err
	}

	s.logger.Info("User registered", zap.String("user_id", userID))
	return Identity{ID: userID, Email: account.Email, Name: account.Name}, token, nil
}

// Login verifies credentials and issues a fresh session token.
func (s *Service) Login(ctx context.Context, email, password string) (Identity, string, error) {
	userID := strings.ToLower(email)
	mailbox, err := s.mailboxes.Get(ctx, userID)
	if err != nil {
		return Identity{}, "", fmt.Errorf("failed to resolve mailbox: %w", err)
	}

	account, exists := mailbox.Account()
	if !exists {
		return Identity{}, "", ErrInvalidCredentials
	}
	if !VerifyPassword(password, account.PasswordDigest) {
		return Identity{}, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(userID)
	if err != nil {
		return Identity{}, "", err
	}
	return Identity{ID: userID, Email: account.Email, Name: account.Name}, token, nil
}

// VerifySession decodes and validates a session token, then re-reads the
// account so a token for a deleted user no longer verifies.
func (s *Service) VerifySession(ctx context.Context, token string) (Identity, error) {
	userID, err := s.parseToken(token)
	if err != nil {
		return Identity{}, err
	}

	mailbox, err := s.mailboxes.Get(ctx, userID)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to resolve mailbox: %w", err)
	}
	account, exists := mailbox.Account()
	if !exists {
		return Identity{}, ErrUserNotFound
	}

	return Identity{ID: userID, Email: account.Email, Name: account.Name}, nil
}

// issueToken signs a 7-day bearer token for userID.
func (s *Service) issueToken(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(sessionLifetime).Unix(),
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) parseToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrSessionExpired
		}
		return "", ErrInvalidToken
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}
