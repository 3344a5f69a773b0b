package auth

import (
	"context"
	"strings"
	"time"

	"github.com/paperhouse/warehouse-backend/pkg/auth"
	"github.com/paperhouse/warehouse-backend/pkg/config"
	"github.com/paperhouse/warehouse-backend/pkg/db/models"
	pkgerrors "github.com/paperhouse/warehouse-backend/pkg/errors"
	"github.com/paperhouse/warehouse-backend/pkg/security"
)

type userFinder interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// Service authenticates staff accounts and issues access tokens.
type Service interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
}

type service struct {
	users userFinder
	jwt   config.JWTConfig
}

// LoginResult carries the minted token and the authenticated account.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// NewService wires authentication dependencies.
func NewService(users userFinder, jwt config.JWTConfig) (Service, error) {
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user finder required")
	}
	return &service{users: users, jwt: jwt}, nil
}

func (s *service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username and password required")
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	// One error for every failure mode so responses never leak which
	// accounts exist.
	if user == nil || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	now := time.Now()
	token, err := auth.MintAccessToken(s.jwt, now, auth.AccessTokenPayload{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	return &LoginResult{
		Token:     token,
		ExpiresAt: now.Add(s.jwt.Expiration()),
		User:      user,
	}, nil
}
