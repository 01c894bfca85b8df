package service

import (
	"context"
	"errors"
	"strings"

	"citylink/internal/models"
	"citylink/internal/repository"
	"citylink/internal/utils"
)

type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Phone    string `json:"phone" validate:"omitempty,len=10,number"`
}

// ProfileInput is a partial update; nil fields are kept.
type ProfileInput struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

type profileFields struct {
	Name  string `json:"name" validate:"required,max=50"`
	Phone string `json:"phone" validate:"omitempty,len=10,number"`
}

type passwordChange struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

// AuthResult is returned by every call that hands out tokens.
type AuthResult struct {
	User *models.User `json:"user"`
	utils.TokenPair
}

type AuthService struct {
	users  repository.UserRepository
	tokens *utils.Tokens
}

func NewAuthService(users repository.UserRepository, tokens *utils.Tokens) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// Register creates a citizen account. Self-registration never grants admin.
func (a *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &models.User{Email: in.Email, Name: in.Name, Phone: in.Phone, Role: models.RoleCitizen, Active: true}
	if err := a.users.Create(ctx, u, hash); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fail(ErrConflict, "User already exists with this email")
		}
		return nil, err
	}
	return a.issue(u)
}

func (a *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, hash, err := a.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrUnauthorized, "Invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(hash, password) {
		return nil, fail(ErrUnauthorized, "Invalid credentials")
	}
	if !u.Active {
		return nil, fail(ErrForbidden, "Account is deactivated")
	}
	return a.issue(u)
}

// Refresh trades a refresh token for a new pair. The user is reloaded so
// that deactivation and role changes take effect.
func (a *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := a.tokens.Verify(strings.TrimSpace(refreshToken), utils.RefreshAudience)
	if err != nil {
		return nil, fail(ErrUnauthorized, "Invalid refresh token")
	}
	u, err := a.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrUnauthorized, "Invalid refresh token")
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, fail(ErrForbidden, "Account is deactivated")
	}
	return a.issue(u)
}

func (a *AuthService) Profile(ctx context.Context, uid string) (*models.User, error) {
	u, err := a.users.GetByID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrNotFound, "User not found")
	}
	return u, err
}

func (a *AuthService) UpdateProfile(ctx context.Context, uid string, in ProfileInput) (*models.User, error) {
	u, err := a.Profile(ctx, uid)
	if err != nil {
		return nil, err
	}
	f := profileFields{Name: u.Name, Phone: u.Phone}
	if in.Name != nil {
		f.Name = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		f.Phone = strings.TrimSpace(*in.Phone)
	}
	if err := validateStruct(f); err != nil {
		return nil, err
	}
	return a.users.UpdateProfile(ctx, uid, f.Name, f.Phone)
}

func (a *AuthService) ChangePassword(ctx context.Context, uid, current, next string) error {
	if err := validateStruct(passwordChange{CurrentPassword: current, NewPassword: next}); err != nil {
		return err
	}
	hash, err := a.users.GetPasswordHash(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return fail(ErrNotFound, "User not found")
	}
	if err != nil {
		return err
	}
	if !utils.CheckPassword(hash, current) {
		return fail(ErrBadRequest, "Current password is incorrect")
	}
	newHash, err := utils.HashPassword(next)
	if err != nil {
		return err
	}
	return a.users.UpdatePasswordHash(ctx, uid, newHash)
}

// EnsureAdmin creates the configured admin account, or promotes and
// reactivates it when the email already exists. Empty credentials are a no-op.
func (a *AuthService) EnsureAdmin(ctx context.Context, email, password, name string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, nil
	}

	u, _, err := a.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		hash, err := utils.HashPassword(password)
		if err != nil {
			return nil, err
		}
		u = &models.User{Email: email, Name: name, Role: models.RoleAdmin, Active: true}
		if err := a.users.Create(ctx, u, hash); err != nil {
			return nil, err
		}
		return u, nil
	case err != nil:
		return nil, err
	}

	if u.Role != models.RoleAdmin {
		if u, err = a.users.SetRole(ctx, u.ID, models.RoleAdmin); err != nil {
			return nil, err
		}
	}
	if !u.Active {
		if u, err = a.users.SetActive(ctx, u.ID, true); err != nil {
			return nil, err
		}
	}
	return u, nil
}

func (a *AuthService) issue(u *models.User) (*AuthResult, error) {
	pair, err := a.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: u, TokenPair: pair}, nil
}
