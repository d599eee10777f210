package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/repository"
	"github.com/iliyamo/taskboard/internal/utils"
)

// CreateUserInput is used by registration and by admins creating users.
type CreateUserInput struct {
	Username string
	Email    string
	Phone    string
	Password string
	Role     string // empty means user
}

// UpdateUserInput is a partial update; nil fields are left alone.
type UpdateUserInput struct {
	Username *string
	Email    *string
	Phone    *string
	Password *string
	Role     *string
	IsActive *bool
}

// UserService manages accounts.  Email and username are unique; the
// service checks before writing and the store's unique indexes catch
// whatever slips through concurrently.
type UserService struct {
	Users      repository.UserStore
	BcryptCost int
	Logger     *slog.Logger
	Now        func() time.Time
}

func NewUserService(users repository.UserStore, bcryptCost int, logger *slog.Logger) *UserService {
	return &UserService{Users: users, BcryptCost: bcryptCost, Logger: orDiscard(logger), Now: utcNow}
}

// List returns every user.  Admin only.
func (s *UserService) List(ctx context.Context, actor model.Principal) ([]model.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	return s.Users.List(ctx)
}

// Get returns the user when the actor is that user or an admin.
func (s *UserService) Get(ctx context.Context, actor model.Principal, id int64) (*model.User, error) {
	if actor.ID != id && !actor.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	return s.Users.GetByID(ctx, id)
}

// Create adds a user.  actor is nil for self-registration, which can
// only ever produce a regular user.
func (s *UserService) Create(ctx context.Context, actor *model.Principal, in CreateUserInput) (*model.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if in.Role == "" {
		in.Role = model.RoleUser
	}
	if err := validateUsername(in.Username); err != nil {
		return nil, err
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if in.Role != model.RoleUser && in.Role != model.RoleAdmin {
		return nil, invalid("role", "must be admin or user")
	}
	if in.Role == model.RoleAdmin && !actor.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	if err := s.checkUnique(ctx, 0, in.Email, in.Username); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password, s.BcryptCost)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	u := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.Logger.Info("user created", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// Update applies a partial update.  Users may edit themselves; role and
// is_active changes need an admin.
func (s *UserService) Update(ctx context.Context, actor model.Principal, id int64, in UpdateUserInput) (*model.User, error) {
	if actor.ID != id && !actor.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	if (in.Role != nil || in.IsActive != nil) && !actor.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Username != nil {
		name := strings.TrimSpace(*in.Username)
		if err := validateUsername(name); err != nil {
			return nil, err
		}
		u.Username = name
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		u.Email = email
	}
	if in.Phone != nil {
		u.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Role != nil {
		if *in.Role != model.RoleUser && *in.Role != model.RoleAdmin {
			return nil, invalid("role", "must be admin or user")
		}
		u.Role = *in.Role
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return nil, err
		}
		hash, err := utils.HashPassword(*in.Password, s.BcryptCost)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	if err := s.checkUnique(ctx, u.ID, u.Email, u.Username); err != nil {
		return nil, err
	}

	u.UpdatedAt = s.Now()
	if err := s.Users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Delete removes a user.  Admins may delete anyone, users themselves.
// Tasks the user created are kept.
func (s *UserService) Delete(ctx context.Context, actor model.Principal, id int64) error {
	if actor.ID != id && !actor.IsAdmin() {
		return ErrPermissionDenied
	}
	if err := s.Users.Delete(ctx, id); err != nil {
		return err
	}
	s.Logger.Info("user deleted", "user_id", id, "by", actor.ID)
	return nil
}

// EnsureAdmin creates an admin account with the given credentials
// unless a user with that email already exists.  It reports whether a
// user was created.
func (s *UserService) EnsureAdmin(ctx context.Context, email, username, password string) (bool, error) {
	_, err := s.Users.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}
	system := model.Principal{Role: model.RoleAdmin}
	_, err = s.Create(ctx, &system, CreateUserInput{
		Username: username,
		Email:    email,
		Password: password,
		Role:     model.RoleAdmin,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// checkUnique reports a conflict when another user already holds email
// or username.  self is excluded so updates can keep their own values.
func (s *UserService) checkUnique(ctx context.Context, self int64, email, username string) error {
	if u, err := s.Users.GetByEmail(ctx, email); err == nil && u.ID != self {
		return repository.ErrEmailExists
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if u, err := s.Users.GetByUsername(ctx, username); err == nil && u.ID != self {
		return repository.ErrUsernameExists
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return nil
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func validateUsername(name string) error {
	if n := utf8.RuneCountInString(name); n < 3 || n > 50 {
		return invalid("username", "must be 3-50 characters")
	}
	return nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("email", "must be a valid address")
	}
	return nil
}

func validatePassword(p string) error {
	if len(p) < 6 {
		return invalid("password", "must be at least 6 characters")
	}
	if len(p) > 72 {
		return invalid("password", "must be at most 72 bytes")
	}
	return nil
}
