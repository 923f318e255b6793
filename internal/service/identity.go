package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"codeshare/internal/apperr"
	"codeshare/internal/auth"
	"codeshare/internal/models"
	"codeshare/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// TokenRevoker lets a deployment reject tokens before they expire.
type TokenRevoker interface {
	IsRevoked(ctx context.Context, claims *auth.AppClaims) (bool, error)
}

type AuthResult struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

type registerInput struct {
	Username string `validate:"required,min=3,max=32,alphanum"`
	Email    string `validate:"required,email,max=255"`
	// bcrypt ignores everything past 72 bytes.
	Password string `validate:"required,min=8"`
}

type IdentityService struct {
	users    repository.UserRepository
	secret   string
	ttl      time.Duration
	revoker  TokenRevoker
	validate *validator.Validate
	log      logrus.FieldLogger
}

type IdentityOption func(*IdentityService)

func WithTokenRevoker(r TokenRevoker) IdentityOption {
	return func(s *IdentityService) { s.revoker = r }
}

func NewIdentityService(users repository.UserRepository, secret string, ttl time.Duration, log logrus.FieldLogger, opts ...IdentityOption) *IdentityService {
	s := &IdentityService{
		users:    users,
		secret:   secret,
		ttl:      ttl,
		validate: validator.New(),
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *IdentityService) issue(user *models.User) (*AuthResult, error) {
	token, err := auth.GenerateJWT(user, s.secret, s.ttl)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "could not issue token")
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *IdentityService) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	in := registerInput{
		Username: strings.TrimSpace(username),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: password,
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.Wrap(apperr.InvalidInput, err, describeValidation(err))
	}
	if len(in.Password) > 72 {
		return nil, apperr.E(apperr.InvalidInput, "password must be at most 72 bytes")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "could not hash password")
	}

	user, err := s.users.CreateUser(ctx, repository.CreateUserParams{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	})
	switch {
	case errors.Is(err, repository.ErrDuplicateUsername):
		return nil, apperr.Wrap(apperr.Conflict, err, "username already taken")
	case errors.Is(err, repository.ErrDuplicateEmail):
		return nil, apperr.Wrap(apperr.Conflict, err, "email already registered")
	case err != nil:
		return nil, apperr.Wrap(apperr.Internal, err, "could not create user")
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("user registered")
	return s.issue(user)
}

func (s *IdentityService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "could not load user")
	}
	if user == nil {
		auth.BurnPasswordCheck(password)
		return nil, apperr.E(apperr.Unauthorized, "invalid email or password")
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperr.E(apperr.Unauthorized, "invalid email or password")
	}
	return s.issue(user)
}

// Resolve maps a token to its current user. The row is re-read on every
// call so role changes apply to tokens already issued.
func (s *IdentityService) Resolve(ctx context.Context, token string) (*models.User, error) {
	claims, err := auth.VerifyJWT(token, s.secret)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthorized, err, "invalid or expired token")
	}

	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(ctx, claims)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "could not check token")
		}
		if revoked {
			return nil, apperr.E(apperr.Unauthorized, "token revoked")
		}
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "could not load user")
	}
	if user == nil {
		return nil, apperr.E(apperr.Unauthorized, "user no longer exists")
	}
	return user, nil
}

func (s *IdentityService) Promote(ctx context.Context, username string) (*models.User, error) {
	user, changed, err := s.users.PromoteUser(ctx, username)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "could not update role")
	}
	if user == nil {
		return nil, apperr.E(apperr.NotFound, "user not found")
	}
	if !changed {
		return user, nil
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Warn("user promoted to admin")
	return user, nil
}

func (s *IdentityService) ListUsers(ctx context.Context, requester *models.User) ([]models.User, error) {
	if !requester.IsAdmin() {
		return nil, apperr.E(apperr.Forbidden, "admin role required")
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "could not list users")
	}
	return users, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid input"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "email is not a valid address"
	case "alphanum":
		return field + " may only contain letters and digits"
	case "min":
		return field + " must be at least " + fe.Param() + " characters"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	}
	return field + " is invalid"
}
