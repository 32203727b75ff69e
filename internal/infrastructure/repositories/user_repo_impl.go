package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/infrastructure/models"
)

// UserRepository implements user data operations
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	m := userToModel(user)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	return nil
}

// GetByID gets a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	var m models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return userToEntity(&m), nil
}

// GetByEmail gets a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	var m models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return userToEntity(&m), nil
}

// GetByOAuthID gets a user by OAuth provider + id
func (r *UserRepository) GetByOAuthID(ctx context.Context, provider, oauthID string) (*entities.User, error) {
	var m models.User
	if err := r.db.WithContext(ctx).Where("oauth_provider = ? AND oauth_id = ?", provider, oauthID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return userToEntity(&m), nil
}

// GetByVerificationToken gets a user by an unexpired verification token
func (r *UserRepository) GetByVerificationToken(ctx context.Context, token string) (*entities.User, error) {
	var m models.User
	err := r.db.WithContext(ctx).
		Where("verification_token = ? AND verification_expires > ?", token, time.Now()).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return userToEntity(&m), nil
}

// GetByResetToken gets a user by an unexpired reset token
func (r *UserRepository) GetByResetToken(ctx context.Context, token string) (*entities.User, error) {
	var m models.User
	err := r.db.WithContext(ctx).
		Where("reset_token = ? AND reset_expires > ?", token, time.Now()).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return userToEntity(&m), nil
}

// Update persists all mutable user fields
func (r *UserRepository) Update(ctx context.Context, user *entities.User) error {
	updates := map[string]interface{}{
		"name":                 user.Name,
		"company":              user.Company.Ptr(),
		"email_verified":       user.EmailVerified,
		"verification_token":   user.VerificationToken.Ptr(),
		"verification_expires": user.VerificationExpires.Ptr(),
		"reset_token":          user.ResetToken.Ptr(),
		"reset_expires":        user.ResetExpires.Ptr(),
		"password_hash":        user.PasswordHash.Ptr(),
		"last_login":           user.LastLogin.Ptr(),
		"login_attempts":       user.LoginAttempts,
		"locked_until":         user.LockedUntil.Ptr(),
		"status":               string(user.Status),
		"updated_at":           time.Now(),
	}

	result := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// SoftDelete soft deletes a user
func (r *UserRepository) SoftDelete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func userToModel(u *entities.User) *models.User {
	return &models.User{
		ID:                  u.ID,
		Email:               u.Email,
		PasswordHash:        u.PasswordHash.Ptr(),
		OAuthID:             u.OAuthID.Ptr(),
		OAuthProvider:       u.OAuthProvider.Ptr(),
		Name:                u.Name,
		Company:             u.Company.Ptr(),
		EmailVerified:       u.EmailVerified,
		VerificationToken:   u.VerificationToken.Ptr(),
		VerificationExpires: u.VerificationExpires.Ptr(),
		ResetToken:          u.ResetToken.Ptr(),
		ResetExpires:        u.ResetExpires.Ptr(),
		LastLogin:           u.LastLogin.Ptr(),
		LoginAttempts:       u.LoginAttempts,
		LockedUntil:         u.LockedUntil.Ptr(),
		Status:              string(u.Status),
		CreatedAt:           u.CreatedAt,
		UpdatedAt:           u.UpdatedAt,
	}
}

func userToEntity(m *models.User) *entities.User {
	return &entities.User{
		ID:                  m.ID,
		Email:               m.Email,
		PasswordHash:        null.StringFromPtr(m.PasswordHash),
		OAuthID:             null.StringFromPtr(m.OAuthID),
		OAuthProvider:       null.StringFromPtr(m.OAuthProvider),
		Name:                m.Name,
		Company:             null.StringFromPtr(m.Company),
		EmailVerified:       m.EmailVerified,
		VerificationToken:   null.StringFromPtr(m.VerificationToken),
		VerificationExpires: null.TimeFromPtr(m.VerificationExpires),
		ResetToken:          null.StringFromPtr(m.ResetToken),
		ResetExpires:        null.TimeFromPtr(m.ResetExpires),
		LastLogin:           null.TimeFromPtr(m.LastLogin),
		LoginAttempts:       m.LoginAttempts,
		LockedUntil:         null.TimeFromPtr(m.LockedUntil),
		Status:              entities.UserStatus(m.Status),
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}
