package service

import (
	"context"
	"errors"
	"strings"

	"citylink/internal/models"
	"citylink/internal/repository"
)

type UserListParams struct {
	Page   int
	Limit  int
	Role   string
	Active *bool
}

type UserPage struct {
	Users      []models.User     `json:"users"`
	Pagination models.Pagination `json:"pagination"`
}

type UserService struct {
	users repository.UserRepository
}

func NewUserService(users repository.UserRepository) *UserService {
	return &UserService{users: users}
}

// List is sorted newest first.
func (s *UserService) List(ctx context.Context, p UserListParams) (*UserPage, error) {
	page, limit := models.NormalizePage(p.Page, p.Limit)
	rows, total, err := s.users.List(ctx,
		repository.UserFilter{Role: strings.TrimSpace(p.Role), Active: p.Active},
		limit, models.Offset(page, limit))
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.User{}
	}
	return &UserPage{Users: rows, Pagination: models.NewPagination(page, limit, total)}, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrNotFound, "User not found")
	}
	return u, err
}

// SetActive toggles an account. An admin cannot deactivate their own account.
func (s *UserService) SetActive(ctx context.Context, actorID, userID string, active bool) (*models.User, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}
	if userID == actorID && !active {
		return nil, fail(ErrSelfAction, "Cannot deactivate your own account")
	}
	u, err := s.users.SetActive(ctx, userID, active)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fail(ErrNotFound, "User not found")
	}
	return u, err
}
