package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/anonto42/nano-chat/backend/internal/apperr"
	"github.com/anonto42/nano-chat/backend/internal/cache"
	"github.com/anonto42/nano-chat/backend/internal/models"
	"github.com/anonto42/nano-chat/backend/internal/realtime"
	"github.com/anonto42/nano-chat/backend/internal/repositories"
	"github.com/google/uuid"
)

var ErrUserExists = apperr.Conflict("a user with this email or user name already exists")

// Users serves registration, profile reads and updates.
type Users struct {
	users  repositories.UserRepository
	cache  *CacheCoordinator
	bus    realtime.Broadcaster
	logger *slog.Logger
}

func NewUsers(d Deps) *Users {
	return &Users{users: d.Users, cache: d.Cache, bus: d.Bus, logger: d.Logger}
}

// Register creates a local account. Tokens for it come from the identity
// provider.
func (u *Users) Register(ctx context.Context, req models.RegisterUserRequest) (*models.User, error) {
	user := &models.User{
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		UserName:       strings.TrimSpace(req.UserName),
		FullName:       strings.TrimSpace(req.FullName),
		ProfilePicture: req.ProfilePicture,
		ProfileBgColor: randomBannerColor(),
	}
	if err := u.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, apperr.Internal("failed to register user", err)
	}
	u.joined(ctx, user)
	return user, nil
}

// ProvisionFirebaseUser returns the local user for a verified Firebase
// identity. An unknown UID is linked to the account with the same email when
// Firebase has verified that email, or gets a new account.
func (u *Users) ProvisionFirebaseUser(ctx context.Context, identity models.FirebaseIdentity) (uint, error) {
	user, err := u.users.GetUserByFirebaseUID(ctx, identity.UID)
	if err == nil {
		return user.ID, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return 0, apperr.Internal("failed to load user", err)
	}

	uid := identity.UID
	user, err = u.users.GetUserByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		if (user.FirebaseUID != nil && *user.FirebaseUID != uid) || !identity.EmailVerified {
			return 0, apperr.Conflict("email is linked to another account")
		}
		user.FirebaseUID = &uid
		if err := u.users.UpdateUser(ctx, user); err != nil {
			return 0, apperr.Internal("failed to link firebase account", err)
		}
		u.logger.Info("linked firebase account", "user_id", user.ID)
		return user.ID, nil
	case !errors.Is(err, repositories.ErrNotFound):
		return 0, apperr.Internal("failed to load user", err)
	}

	local, _, _ := strings.Cut(strings.ToLower(identity.Email), "@")
	user = &models.User{
		Email:          strings.ToLower(identity.Email),
		UserName:       local,
		FullName:       strings.TrimSpace(identity.Name),
		ProfilePicture: identity.Picture,
		ProfileBgColor: randomBannerColor(),
		FirebaseUID:    &uid,
	}
	if user.FullName == "" {
		user.FullName = local
	}
	err = u.users.CreateUser(ctx, user)
	if errors.Is(err, repositories.ErrDuplicate) {
		// a concurrent first request may have created the account
		if existing, lookupErr := u.users.GetUserByFirebaseUID(ctx, uid); lookupErr == nil {
			return existing.ID, nil
		}
		user.ID = 0
		user.UserName = local + "_" + uuid.NewString()[:8]
		err = u.users.CreateUser(ctx, user)
	}
	if err != nil {
		return 0, apperr.Internal("failed to create user", err)
	}
	u.joined(ctx, user)
	return user.ID, nil
}

// joined drops the "all" listings, which list every user.
func (u *Users) joined(ctx context.Context, user *models.User) {
	u.cache.InvalidatePattern(ctx, cache.UserListingPattern(string(models.ListingAll)))
	u.logger.Info("user registered", "user_id", user.ID)
}

func (u *Users) GetProfile(ctx context.Context, userID uint) (*models.User, error) {
	return lookupUser(ctx, u.users, userID)
}

// UpdateProfile applies the non-empty fields of req and drops every cached
// entry that embeds user views.
func (u *Users) UpdateProfile(ctx context.Context, userID uint, req models.UpdateUserRequest) (*models.User, error) {
	user, err := lookupUser(ctx, u.users, userID)
	if err != nil {
		return nil, err
	}
	if req.FullName != "" {
		user.FullName = strings.TrimSpace(req.FullName)
	}
	if req.UserName != "" {
		user.UserName = strings.TrimSpace(req.UserName)
	}
	if req.ProfilePicture != "" {
		user.ProfilePicture = req.ProfilePicture
	}

	if err := u.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperr.Conflict("user name is already taken")
		}
		return nil, apperr.Internal("failed to update user", err)
	}

	u.cache.InvalidatePattern(ctx, cache.ProfilePatterns()...)
	publish(ctx, u.bus, realtime.EventProfileUpdated, user.ToCompact())
	return user, nil
}

func (u *Users) Search(ctx context.Context, query string) ([]models.UserCompact, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("search query is required")
	}
	found, err := u.users.SearchUsers(ctx, query)
	if err != nil {
		return nil, apperr.Internal("failed to search users", err)
	}
	out := make([]models.UserCompact, 0, len(found))
	for i := range found {
		out = append(out, found[i].ToCompact())
	}
	return out, nil
}
