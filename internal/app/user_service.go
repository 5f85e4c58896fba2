package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/transfa/fund-service/internal/domain"
	"github.com/transfa/fund-service/internal/store"
)

const maxProfileNameLength = 80

// UserService reads and edits the signed-in user's profile.
type UserService struct {
	repo   store.Repository
	mirror store.SessionMirror
	now    func() time.Time
}

// NewUserService creates a new user service instance.
func NewUserService(repo store.Repository, mirror store.SessionMirror) *UserService {
	return &UserService{repo: repo, mirror: mirror, now: time.Now}
}

// GetProfile returns the user or nil when the account does not exist.
func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// UpdateProfile applies the editable fields and refreshes the session mirror.
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, update domain.ProfileUpdate) domain.Result[domain.User] {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return domain.Err[domain.User](fmt.Errorf("find user: %w", err))
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return domain.Err[domain.User](fmt.Errorf("%w: name is required", ErrInvalidProfile))
		}
		if utf8.RuneCountInString(name) > maxProfileNameLength {
			return domain.Err[domain.User](fmt.Errorf("%w: name must be at most %d characters", ErrInvalidProfile, maxProfileNameLength))
		}
		user.Name = name
	}
	user.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return domain.Err[domain.User](fmt.Errorf("update user: %w", err))
	}
	if err := s.mirror.Save(ctx, *user); err != nil {
		log.Printf("level=warn component=user_service msg=\"session mirror refresh failed\" user_id=%s err=%v", user.ID, err)
	}
	return domain.Ok(*user, "Profile updated")
}
