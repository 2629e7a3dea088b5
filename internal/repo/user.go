package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kvasnecov/institute_platform/internal/models"
)

var ErrNotFound = errors.New("user not found")

// GormUserRepo is the persistence side of the user directory. The session
// service only sees it through the service.UserDirectory interface.
type GormUserRepo struct {
	DB *gorm.DB
}

func NewGormUserRepo(db *gorm.DB) *GormUserRepo {
	return &GormUserRepo{DB: db}
}

func (r *GormUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindByEmailOrUsername resolves a login identifier. Login forms accept
// either field in the same input.
func (r *GormUserRepo) FindByEmailOrUsername(ctx context.Context, identifier string) (*models.User, error) {
	var user models.User
	err := r.DB.WithContext(ctx).
		Where("email = ? OR username = ?", identifier, identifier).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *GormUserRepo) CreateLocal(ctx context.Context, email, name, passwordHash, username string) (*models.User, error) {
	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Role:         models.RoleUser,
		Provider:     models.ProviderLocal,
		IsActive:     true,
	}
	if username != "" {
		user.Username = &username
	}
	if err := r.DB.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpsertOAuth merges an OAuth profile into the directory keyed by email.
// An existing record keeps its name if one is already set; provider,
// providerId and avatar always reflect the most recent login.
func (r *GormUserRepo) UpsertOAuth(ctx context.Context, profile models.OAuthProfile) (*models.User, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", profile.Email).First(&user).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			user = models.User{
				ID:         uuid.NewString(),
				Email:      profile.Email,
				Name:       profile.Name,
				Role:       models.RoleUser,
				Provider:   profile.Provider,
				ProviderID: profile.ProviderID,
				AvatarURL:  profile.AvatarURL,
				IsActive:   true,
			}
			return tx.Create(&user).Error
		}

		updates := map[string]any{
			"provider":    profile.Provider,
			"provider_id": profile.ProviderID,
		}
		if profile.AvatarURL != "" {
			updates["avatar_url"] = profile.AvatarURL
		}
		if user.Name == "" {
			updates["name"] = profile.Name
		}
		if err := tx.Model(&user).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", user.ID).First(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update applies a partial profile update; nil fields stay untouched.
func (r *GormUserRepo) Update(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	updates := map[string]any{}
	if upd.Name != nil {
		updates["name"] = *upd.Name
	}
	if upd.Username != nil {
		// empty clears the username back to NULL, keeping the unique
		// index free of empty-string collisions
		if *upd.Username == "" {
			updates["username"] = nil
		} else {
			updates["username"] = *upd.Username
		}
	}
	if upd.PhoneNumber != nil {
		updates["phone_number"] = *upd.PhoneNumber
	}
	if upd.DOB != nil {
		updates["dob"] = *upd.DOB
	}
	if upd.Gender != nil {
		updates["gender"] = *upd.Gender
	}
	if upd.PasswordHash != nil {
		updates["password_hash"] = *upd.PasswordHash
	}
	if upd.AvatarData != nil {
		updates["avatar_data"] = upd.AvatarData
	}
	if upd.AvatarMimeType != nil {
		updates["avatar_mime_type"] = *upd.AvatarMimeType
	}

	if len(updates) > 0 {
		result := r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}

	return r.FindByID(ctx, id)
}
