package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/auth-service/internal/apperror"
	"github.com/iliyamo/auth-service/internal/logger"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/repository"
)

// MaxPageSize caps admin list pages.
const MaxPageSize = 100

// UserPage is one page of the admin account listing.
type UserPage struct {
	Items       []model.UserView `json:"items"`
	Total       int              `json:"total"`
	Page        int              `json:"page"`
	PageSize    int              `json:"page_size"`
	TotalPages  int              `json:"total_pages"`
	HasNext     bool             `json:"has_next"`
	HasPrevious bool             `json:"has_previous"`
}

// UserUpdate carries the optional fields an admin may change.
type UserUpdate struct {
	FirstName *string
	LastName  *string
	IsActive  *bool
}

// UserService is the admin CRUD over accounts.
type UserService struct {
	users UserAdminStore
	roles RoleReader
	now   func() time.Time
	log   *logger.Logger
}

func NewUserService(users UserAdminStore, roles RoleReader, log *logger.Logger) *UserService {
	if log == nil {
		log = logger.NewNop()
	}
	return &UserService{users: users, roles: roles, now: time.Now, log: log.Named("users")}
}

func userNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("user not found")
	}
	return err
}

// List returns page (1-based) of accounts. Out-of-range arguments are clamped.
func (s *UserService) List(ctx context.Context, page, pageSize int) (UserPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	total, err := s.users.Count(ctx)
	if err != nil {
		return UserPage{}, err
	}
	users, err := s.users.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return UserPage{}, err
	}

	items := make([]model.UserView, 0, len(users))
	for _, u := range users {
		items = append(items, u.View())
	}
	totalPages := (total + pageSize - 1) / pageSize
	return UserPage{
		Items:       items,
		Total:       total,
		Page:        page,
		PageSize:    pageSize,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}, nil
}

func (s *UserService) Get(ctx context.Context, id uint64) (model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.User{}, userNotFound(err)
	}
	return u, nil
}

// Update applies the non-nil fields of in.
func (s *UserService) Update(ctx context.Context, id uint64, in UserUpdate) (model.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if in.FirstName != nil {
		u.FirstName = in.FirstName
	}
	if in.LastName != nil {
		u.LastName = in.LastName
	}
	if in.IsActive != nil {
		u.IsActive = *in.IsActive
	}
	now := s.now().UTC()
	if err := s.users.Update(ctx, u, now); err != nil {
		return model.User{}, err
	}
	u.UpdatedAt = &now
	return u, nil
}

// Delete removes an account and, through the schema, its refresh tokens.
func (s *UserService) Delete(ctx context.Context, id uint64) error {
	if err := s.users.Delete(ctx, id); err != nil {
		return userNotFound(err)
	}
	s.log.WithContext(ctx).Info("account deleted", zap.Uint64("user_id", id))
	return nil
}

// AssignRole points an account at a role. Both must exist.
func (s *UserService) AssignRole(ctx context.Context, userID, roleID uint64) (model.User, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	if _, err := s.roles.GetByID(ctx, roleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.User{}, apperror.NotFound("role not found")
		}
		return model.User{}, err
	}
	now := s.now().UTC()
	if err := s.users.SetRole(ctx, userID, &roleID, now); err != nil {
		return model.User{}, err
	}
	u.RoleID = &roleID
	u.UpdatedAt = &now
	s.log.WithContext(ctx).Info("role assigned", zap.Uint64("user_id", userID), zap.Uint64("role_id", roleID))
	return u, nil
}
