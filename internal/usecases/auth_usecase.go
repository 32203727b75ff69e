package usecases

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
	"nexuspay.backend/internal/domain/repositories"
	"nexuspay.backend/internal/infrastructure/email"
	"nexuspay.backend/pkg/crypto"
	"nexuspay.backend/pkg/jwt"
	"nexuspay.backend/pkg/logger"
	"nexuspay.backend/pkg/utils"
)

const (
	verificationTokenTTL = 24 * time.Hour
	resetTokenTTL        = time.Hour
)

// EmailValidator checks deliverability of a registration address
type EmailValidator interface {
	Validate(ctx context.Context, address string) (string, error)
}

// AuthUsecase handles registration, sessions and profile management
type AuthUsecase struct {
	userRepo   repositories.UserRepository
	validator  EmailValidator
	sender     email.Sender
	jwtService *jwt.JWTService
}

// NewAuthUsecase creates a new auth usecase
func NewAuthUsecase(
	userRepo repositories.UserRepository,
	validator EmailValidator,
	sender email.Sender,
	jwtService *jwt.JWTService,
) *AuthUsecase {
	return &AuthUsecase{
		userRepo:   userRepo,
		validator:  validator,
		sender:     sender,
		jwtService: jwtService,
	}
}

// Register creates an unverified account and sends the verification email
func (u *AuthUsecase) Register(ctx context.Context, input *entities.RegisterInput) (*entities.User, error) {
	normalized, err := u.validator.Validate(ctx, input.Email)
	if err != nil {
		return nil, err
	}

	if !crypto.ValidatePasswordComplexity(input.Password) {
		return nil, domainerrors.BadRequest("password must be at least 8 characters with upper, lower, digit and symbol").
			WithField("password")
	}
	if len(input.Name) < 2 {
		return nil, domainerrors.BadRequest("name must be at least 2 characters").WithField("name")
	}

	// Duplicate check
	if _, err := u.userRepo.GetByEmail(ctx, normalized); err == nil {
		return nil, domainerrors.Conflict("an account with this email already exists")
	} else if !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}

	passwordHash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	token, err := crypto.GenerateVerificationToken()
	if err != nil {
		return nil, err
	}

	user := &entities.User{
		ID:                  utils.NewID(utils.PrefixUser),
		Email:               normalized,
		PasswordHash:        null.StringFrom(passwordHash),
		Name:                input.Name,
		Company:             null.NewString(input.Company, input.Company != ""),
		EmailVerified:       false,
		VerificationToken:   null.StringFrom(token),
		VerificationExpires: null.TimeFrom(time.Now().Add(verificationTokenTTL)),
		Status:              entities.UserStatusActive,
	}
	if err := u.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	// Delivery failures are not fatal: the token can be re-sent.
	if err := u.sender.SendVerification(ctx, user.Email, token); err != nil {
		logger.Warn(ctx, "verification email failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	return user, nil
}

// VerifyEmail consumes a verification token
func (u *AuthUsecase) VerifyEmail(ctx context.Context, token string) error {
	user, err := u.userRepo.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return domainerrors.Unauthorized(domainerrors.CodeInvalidToken, "invalid or expired verification token")
		}
		return err
	}

	user.EmailVerified = true
	user.VerificationToken = null.String{}
	user.VerificationExpires = null.Time{}
	return u.userRepo.Update(ctx, user)
}

// Login authenticates with email and password, enforcing the lockout policy
func (u *AuthUsecase) Login(ctx context.Context, input *entities.LoginInput) (*entities.AuthResponse, error) {
	user, err := u.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.Unauthorized(domainerrors.CodeInvalidCredentials, "invalid email or password")
		}
		return nil, err
	}

	if user.IsLocked() {
		return nil, domainerrors.NewAppError(http.StatusForbidden, domainerrors.CodeAccountLocked,
			"account locked after too many failed logins", domainerrors.ErrAccountLocked)
	}
	if user.Status != entities.UserStatusActive {
		return nil, domainerrors.Unauthorized(domainerrors.CodeInvalidCredentials, "invalid email or password")
	}
	if !user.PasswordHash.Valid {
		// OAuth-only account.
		return nil, domainerrors.Unauthorized(domainerrors.CodeInvalidCredentials, "invalid email or password")
	}

	if !crypto.CheckPassword(input.Password, user.PasswordHash.String) {
		user.LoginAttempts++
		if user.LoginAttempts >= entities.MaxLoginAttempts {
			user.LockedUntil = null.TimeFrom(time.Now().Add(entities.LockoutDuration))
		}
		if err := u.userRepo.Update(ctx, user); err != nil {
			logger.Warn(ctx, "login attempt counter update failed", zap.String("user_id", user.ID), zap.Error(err))
		}
		return nil, domainerrors.Unauthorized(domainerrors.CodeInvalidCredentials, "invalid email or password")
	}

	if !user.EmailVerified {
		return nil, domainerrors.NewAppError(http.StatusForbidden, domainerrors.CodeEmailNotVerified,
			"verify your email before logging in", domainerrors.ErrEmailNotVerified)
	}

	user.LoginAttempts = 0
	user.LockedUntil = null.Time{}
	user.LastLogin = null.TimeFrom(time.Now())
	if err := u.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	token, err := u.jwtService.GenerateToken(user.ID, user.Email, user.Name)
	if err != nil {
		return nil, err
	}
	return &entities.AuthResponse{Token: token, User: user}, nil
}

// OAuthSignIn links by oauthId first, then by email; creates otherwise.
// OAuth email is trusted, so accounts arrive verified.
func (u *AuthUsecase) OAuthSignIn(ctx context.Context, input *entities.OAuthSignInInput) (*entities.AuthResponse, error) {
	user, err := u.userRepo.GetByOAuthID(ctx, input.Provider, input.OAuthID)
	if errors.Is(err, domainerrors.ErrNotFound) {
		user, err = u.linkOrCreateOAuthUser(ctx, input)
	}
	if err != nil {
		return nil, err
	}

	if user.Status != entities.UserStatusActive {
		return nil, domainerrors.Unauthorized(domainerrors.CodeInvalidCredentials, "account is not active")
	}

	user.LastLogin = null.TimeFrom(time.Now())
	if err := u.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	token, err := u.jwtService.GenerateToken(user.ID, user.Email, user.Name)
	if err != nil {
		return nil, err
	}
	return &entities.AuthResponse{Token: token, User: user}, nil
}

func (u *AuthUsecase) linkOrCreateOAuthUser(ctx context.Context, input *entities.OAuthSignInInput) (*entities.User, error) {
	// Existing password account with the same email gets linked.
	user, err := u.userRepo.GetByEmail(ctx, input.Email)
	if err == nil {
		user.OAuthID = null.StringFrom(input.OAuthID)
		user.OAuthProvider = null.StringFrom(input.Provider)
		user.EmailVerified = true
		if err := u.userRepo.Update(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	}
	if !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}

	user = &entities.User{
		ID:            utils.NewID(utils.PrefixUser),
		Email:         input.Email,
		OAuthID:       null.StringFrom(input.OAuthID),
		OAuthProvider: null.StringFrom(input.Provider),
		Name:          input.Name,
		EmailVerified: true,
		Status:        entities.UserStatusActive,
	}
	if err := u.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// RequestPasswordReset issues a single-use reset token. Always succeeds from
// the caller's perspective so addresses cannot be probed.
func (u *AuthUsecase) RequestPasswordReset(ctx context.Context, address string) error {
	user, err := u.userRepo.GetByEmail(ctx, address)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil
		}
		return err
	}

	token, err := crypto.GenerateVerificationToken()
	if err != nil {
		return err
	}
	user.ResetToken = null.StringFrom(token)
	user.ResetExpires = null.TimeFrom(time.Now().Add(resetTokenTTL))
	if err := u.userRepo.Update(ctx, user); err != nil {
		return err
	}

	if err := u.sender.SendPasswordReset(ctx, user.Email, token); err != nil {
		logger.Warn(ctx, "reset email failed", zap.String("user_id", user.ID), zap.Error(err))
	}
	return nil
}

// ResetPassword consumes a reset token and sets the new password
func (u *AuthUsecase) ResetPassword(ctx context.Context, input *entities.ResetPasswordInput) error {
	if !crypto.ValidatePasswordComplexity(input.NewPassword) {
		return domainerrors.BadRequest("password must be at least 8 characters with upper, lower, digit and symbol").
			WithField("newPassword")
	}

	user, err := u.userRepo.GetByResetToken(ctx, input.Token)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return domainerrors.Unauthorized(domainerrors.CodeInvalidToken, "invalid or expired reset token")
		}
		return err
	}

	passwordHash, err := crypto.HashPassword(input.NewPassword)
	if err != nil {
		return err
	}

	// Single-use: the token is cleared with the same write, and a reset also
	// clears any lockout.
	user.PasswordHash = null.StringFrom(passwordHash)
	user.ResetToken = null.String{}
	user.ResetExpires = null.Time{}
	user.LoginAttempts = 0
	user.LockedUntil = null.Time{}
	return u.userRepo.Update(ctx, user)
}

// GetProfile returns the authenticated user
func (u *AuthUsecase) GetProfile(ctx context.Context, userID string) (*entities.User, error) {
	return u.userRepo.GetByID(ctx, userID)
}

// UpdateProfile updates name and company
func (u *AuthUsecase) UpdateProfile(ctx context.Context, userID string, input *entities.UpdateProfileInput) (*entities.User, error) {
	user, err := u.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Name != "" {
		if len(input.Name) < 2 {
			return nil, domainerrors.BadRequest("name must be at least 2 characters").WithField("name")
		}
		user.Name = input.Name
	}
	if input.Company != "" {
		user.Company = null.StringFrom(input.Company)
	}
	if err := u.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
