package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/repository"
	"github.com/iliyamo/taskboard/internal/utils"
)

// TokenPair is returned by register, login and refresh.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	TokenType        string    `json:"token_type"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// AuthService verifies credentials and issues tokens.  Access tokens are
// HS256 JWTs; refresh tokens are random strings stored hashed.
type AuthService struct {
	Users          *UserService
	Tokens         repository.TokenStore
	Secret         string
	AccessTTLMin   int
	RefreshTTLDays int
}

func NewAuthService(users *UserService, tokens repository.TokenStore, secret string, accessTTLMin, refreshTTLDays int) *AuthService {
	return &AuthService{
		Users:          users,
		Tokens:         tokens,
		Secret:         secret,
		AccessTTLMin:   accessTTLMin,
		RefreshTTLDays: refreshTTLDays,
	}
}

// Register creates a regular user and logs them in.
func (s *AuthService) Register(ctx context.Context, in CreateUserInput) (*model.User, TokenPair, error) {
	in.Role = model.RoleUser
	u, err := s.Users.Create(ctx, nil, in)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.issuePair(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// Authenticate checks email and password.  Unknown email and wrong
// password both give ErrInvalidCredentials; a disabled account gives
// ErrPermissionDenied.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.Users.Users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, fmt.Errorf("account disabled: %w", ErrPermissionDenied)
	}
	return u, nil
}

// IssueToken signs an access token for u.
func (s *AuthService) IssueToken(u *model.User) (utils.AccessToken, error) {
	return utils.NewAccessToken(s.Secret, u, s.AccessTTLMin)
}

// Login authenticates and returns a fresh token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, TokenPair, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.issuePair(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// CurrentPrincipal validates an access token and reloads the account, so
// role changes and deactivation apply to tokens already handed out.  The
// returned principal reflects the stored user, not the claims.
func (s *AuthService) CurrentPrincipal(ctx context.Context, token string) (model.Principal, error) {
	p, err := utils.ParseAccessToken(s.Secret, token)
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	u, err := s.Users.Users.GetByID(ctx, p.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Principal{}, fmt.Errorf("%w: account no longer exists", ErrInvalidCredentials)
	}
	if err != nil {
		return model.Principal{}, err
	}
	return model.Principal{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
		Role:     u.Role,
		IsActive: u.IsActive,
	}, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a
// new pair issued.
func (s *AuthService) Refresh(ctx context.Context, raw string) (TokenPair, error) {
	hash := utils.HashRefreshRaw(raw)
	userID, err := s.Tokens.ValidateRefresh(ctx, hash)
	if errors.Is(err, repository.ErrTokenInvalid) {
		return TokenPair{}, ErrInvalidCredentials
	}
	if err != nil {
		return TokenPair{}, err
	}
	u, err := s.Users.Users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, ErrInvalidCredentials
	}
	if err != nil {
		return TokenPair{}, err
	}
	if !u.IsActive {
		return TokenPair{}, fmt.Errorf("account disabled: %w", ErrPermissionDenied)
	}
	if err := s.Tokens.RevokeByHash(ctx, hash); err != nil {
		return TokenPair{}, err
	}
	return s.issuePair(ctx, u)
}

// Logout revokes one refresh token.  Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	return s.Tokens.RevokeByHash(ctx, utils.HashRefreshRaw(raw))
}

// LogoutAll revokes every refresh token of the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID int64) error {
	return s.Tokens.RevokeAllForUser(ctx, userID)
}

func (s *AuthService) issuePair(ctx context.Context, u *model.User) (TokenPair, error) {
	at, err := s.IssueToken(u)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	rt, err := utils.NewRefreshToken(s.RefreshTTLDays)
	if err != nil {
		return TokenPair{}, fmt.Errorf("new refresh token: %w", err)
	}
	if err := s.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(rt.Raw), rt.Exp); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:      at.Token,
		TokenType:        "bearer",
		ExpiresAt:        at.Exp,
		RefreshToken:     rt.Raw,
		RefreshExpiresAt: rt.Exp,
	}, nil
}
