package service

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"grimoire-api/internal/core/auth"
	"grimoire-api/internal/domain"
	"grimoire-api/internal/repo"
	"grimoire-api/pkg/utils"
)

type AuthService struct {
	users    domain.UserRepository
	jwter    *auth.JWTer
	validate *validator.Validate
	log      *zap.Logger
}

func NewAuthService(users domain.UserRepository, jwter *auth.JWTer, log *zap.Logger) *AuthService {
	return &AuthService{
		users:    users,
		jwter:    jwter,
		validate: validator.New(),
		log:      log,
	}
}

// NormalizeEmail trims and case-folds so "A@B.com " and "a@b.com" are the same
// account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates an account. The pre-check on email keeps the common case
// cheap, but the store's unique index is the real guarantee: a duplicate
// insert that races past the pre-check still comes back as ErrEmailTaken.
func (s *AuthService) Signup(email, password string) (*domain.User, error) {
	email = NormalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if !strongPassword(password) {
		return nil, domain.ErrWeakPassword
	}

	existing, err := s.users.FindByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrEmailTaken
	}

	u := &domain.User{
		ID:           utils.NewID(),
		Email:        email,
		PasswordHash: utils.HashPassword(password),
	}
	if err := s.users.Create(u); err != nil {
		if repo.IsDupKey(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}
	s.log.Info("user signed up", zap.String("user_id", u.ID))
	return u, nil
}

// Login verifies credentials and issues a token. Unknown email and wrong
// password return the same error so responses cannot be used to enumerate
// accounts.
func (s *AuthService) Login(email, password string) (userID, token string, err error) {
	email = NormalizeEmail(email)

	u, err := s.users.FindByEmail(email)
	if err != nil {
		return "", "", err
	}
	if u == nil || !utils.CheckPassword(password, u.PasswordHash) {
		return "", "", domain.ErrInvalidCredentials
	}

	token, err = s.jwter.Issue(u.ID)
	if err != nil {
		return "", "", err
	}
	return u.ID, token, nil
}

// strongPassword requires at least 8 characters with upper, lower, digit and
// special classes all present.
func strongPassword(pw string) bool {
	if len(pw) < 8 {
		return false
	}
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	return upper && lower && digit && special
}
