package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"quiz-builder/internal/domain"
)

const tokenIssuer = "quiz-builder"

// AuthConfig carries the secrets the auth service needs.
type AuthConfig struct {
	SessionSecret string
	AdminSecret   string
	TokenTTL      time.Duration
	BcryptCost    int
}

// RegisterInput creates an admin account.
type RegisterInput struct {
	Username    string
	Password    string
	AdminSecret string
}

// Session is an issued bearer token and the user it belongs to.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      domain.User `json:"user"`
}

// AuthService registers and authenticates admin accounts using signed tokens.
type AuthService struct {
	users UserRepository
	cfg   AuthConfig
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewAuthService(users UserRepository, cfg AuthConfig, log logrus.FieldLogger) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{users: users, cfg: cfg, log: log, now: time.Now}
}

// Register creates an admin account. The registration code is checked before anything else.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (Session, error) {
	if s.cfg.AdminSecret == "" || subtle.ConstantTimeCompare([]byte(in.AdminSecret), []byte(s.cfg.AdminSecret)) != 1 {
		return Session{}, domain.ErrInvalidAdminSecret
	}
	username := strings.TrimSpace(in.Username)
	if len(username) < 3 {
		return Session{}, domain.NewValidationError("username", "must be at least 3 characters")
	}
	if len(in.Password) < 8 {
		return Session{}, domain.NewValidationError("password", "must be at least 8 characters")
	}
	user, err := s.CreateAdmin(ctx, username, in.Password)
	if err != nil {
		return Session{}, err
	}
	return s.issue(user)
}

// CreateAdmin stores an admin account without the registration code check.
func (s *AuthService) CreateAdmin(ctx context.Context, username, password string) (domain.User, error) {
	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return domain.User{}, domain.ErrUsernameTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.users.CreateUser(ctx, domain.User{
		Username:  username,
		Password:  string(hash),
		IsAdmin:   true,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return domain.User{}, err
	}
	s.log.WithField("username", username).Info("admin account created")
	return user, nil
}

// Login verifies credentials. Unknown users and wrong passwords fail identically.
func (s *AuthService) Login(ctx context.Context, username, password string) (Session, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, domain.ErrNotFound) {
		return Session{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return Session{}, domain.ErrInvalidCredentials
	}
	return s.issue(user)
}

// Authenticate resolves a token to its admin user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.User, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.SessionSecret), nil
	})
	if err != nil || !parsed.Valid {
		return domain.User{}, domain.ErrUnauthorized
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return domain.User{}, domain.ErrUnauthorized
	}
	user, err := s.users.GetUser(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, domain.ErrUnauthorized
	}
	if err != nil {
		return domain.User{}, err
	}
	if !user.IsAdmin {
		return domain.User{}, domain.ErrAdminOnly
	}
	return user, nil
}

func (s *AuthService) issue(user domain.User) (Session, error) {
	now := s.now()
	expires := now.Add(s.cfg.TokenTTL)
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    tokenIssuer,
		Subject:   strconv.FormatInt(user.ID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.SessionSecret))
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Token: signed, ExpiresAt: expires.UTC(), User: user}, nil
}
