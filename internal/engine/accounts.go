// Package engine - Account Engine
// Handles registration, login, token rotation and user profiles
package engine

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/aethra/krishi/internal/auth"
	"github.com/aethra/krishi/internal/database"
	"github.com/aethra/krishi/internal/errors"
	"github.com/aethra/krishi/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 8

// AccountEngine manages accounts and their profiles
type AccountEngine struct {
	db  *gorm.DB
	jwt *auth.JWTService
	log *zap.Logger
}

// NewAccountEngine creates a new account engine
func NewAccountEngine(db *gorm.DB, jwt *auth.JWTService, log *zap.Logger) *AccountEngine {
	return &AccountEngine{db: db, jwt: jwt, log: log.Named("accounts")}
}

// RegisterInput is the data needed to create an account
type RegisterInput struct {
	Username          string
	Email             string
	Password          string
	FirstName         string
	LastName          string
	PhoneNumber       *string
	PreferredLanguage models.Language
	IsStaff           bool
}

// ProfileUpdate holds the account and profile fields a user may change.
// Nil fields are left as they are.
type ProfileUpdate struct {
	Email             *string
	FirstName         *string
	LastName          *string
	PhoneNumber       *string
	PreferredLanguage *models.Language
}

// AuthResult is returned by register and login
type AuthResult struct {
	User   *models.Account `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
}

// CreateAccount creates an account and its profile in one transaction
func (e *AccountEngine) CreateAccount(ctx context.Context, in RegisterInput) (*models.Account, error) {
	if len(in.Password) < MinPasswordLength {
		return nil, errors.NewValidationError("password", "password must be at least 8 characters")
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	account := &models.Account{
		Username:     in.Username,
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		IsActive:     true,
		IsStaff:      in.IsStaff,
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}

	profile := models.NewUserProfile(uuid.Nil)
	profile.PhoneNumber = in.PhoneNumber
	if in.PreferredLanguage != "" {
		profile.PreferredLanguage = in.PreferredLanguage
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Account{}).Where("username = ?", account.Username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errors.NewConflictError("username")
		}

		if err := tx.Omit("Profile").Create(account).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return errors.NewConflictError("username")
			}
			return err
		}

		// Every account gets exactly one profile
		profile.AccountID = account.ID
		if err := tx.Create(profile).Error; err != nil {
			return err
		}
		account.Profile = profile
		return nil
	})
	if err != nil {
		return nil, storeError(err, "account")
	}

	e.log.Info("account created",
		zap.String("account_id", account.ID.String()),
		zap.String("username", account.Username))
	return account, nil
}

// Register creates an account and signs the caller in
func (e *AccountEngine) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.IsStaff = false
	account, err := e.CreateAccount(ctx, in)
	if err != nil {
		return nil, err
	}
	return e.issue(account)
}

// Login checks credentials and returns fresh tokens
func (e *AccountEngine) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	var account models.Account
	err := e.db.WithContext(ctx).Preload("Profile").
		Where("username = ?", strings.TrimSpace(username)).
		First(&account).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewUnauthorizedError("invalid credentials")
		}
		return nil, errors.NewInternalError(err)
	}

	if !auth.CheckPassword(password, account.PasswordHash) {
		return nil, errors.NewUnauthorizedError("invalid credentials")
	}
	if !account.IsActive {
		return nil, errors.NewUnauthorizedError("account is disabled")
	}

	now := time.Now().UTC()
	if err := e.db.WithContext(ctx).Model(&account).UpdateColumn("last_login_at", now).Error; err != nil {
		e.log.Warn("failed to update last login", zap.String("account_id", account.ID.String()), zap.Error(err))
	}
	account.LastLoginAt = &now

	return e.issue(&account)
}

// Refresh exchanges a refresh token for a new pair. The old refresh token
// is revoked so it can be used only once.
func (e *AccountEngine) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	claims, err := e.jwt.ValidateToken(ctx, refreshToken, auth.KindRefresh)
	if err != nil {
		return nil, errors.NewUnauthorizedError("invalid refresh token")
	}

	account, err := e.GetAccount(ctx, claims.AccountID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewUnauthorizedError("invalid refresh token")
		}
		return nil, err
	}
	if !account.IsActive {
		return nil, errors.NewUnauthorizedError("account is disabled")
	}

	if err := e.jwt.Revoke(ctx, claims); err != nil {
		return nil, errors.NewInternalError(err)
	}
	return e.tokens(account)
}

// Logout revokes the access token described by claims
func (e *AccountEngine) Logout(ctx context.Context, claims *auth.Claims) error {
	if err := e.jwt.Revoke(ctx, claims); err != nil {
		return errors.NewInternalError(err)
	}
	return nil
}

// GetAccount returns an account with its profile
func (e *AccountEngine) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := e.db.WithContext(ctx).Preload("Profile").First(&account, "id = ?", id).Error; err != nil {
		return nil, storeError(err, "account")
	}
	if account.Profile == nil {
		// Accounts created outside CreateAccount get their profile lazily
		profile := models.NewUserProfile(account.ID)
		if err := e.db.WithContext(ctx).Create(profile).Error; err != nil {
			return nil, storeError(err, "profile")
		}
		account.Profile = profile
	}
	return &account, nil
}

// UpdateProfile applies changes to the caller's account and profile
func (e *AccountEngine) UpdateProfile(ctx context.Context, p auth.Principal, upd ProfileUpdate) (*models.Account, error) {
	account, err := e.GetAccount(ctx, p.AccountID)
	if err != nil {
		return nil, err
	}

	accountFields := map[string]interface{}{}
	if upd.Email != nil {
		account.Email = strings.TrimSpace(*upd.Email)
		accountFields["email"] = account.Email
	}
	if upd.FirstName != nil {
		account.FirstName = strings.TrimSpace(*upd.FirstName)
		accountFields["first_name"] = account.FirstName
	}
	if upd.LastName != nil {
		account.LastName = strings.TrimSpace(*upd.LastName)
		accountFields["last_name"] = account.LastName
	}

	profile := account.Profile
	if upd.PhoneNumber != nil {
		phone := *upd.PhoneNumber
		profile.PhoneNumber = &phone
	}
	if upd.PreferredLanguage != nil {
		profile.PreferredLanguage = *upd.PreferredLanguage
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(accountFields) > 0 {
			if err := tx.Model(&models.Account{ID: account.ID}).Updates(accountFields).Error; err != nil {
				return err
			}
		}
		return tx.Save(profile).Error
	})
	if err != nil {
		return nil, storeError(err, "profile")
	}
	return account, nil
}

// ListAccounts returns every account ordered by username
func (e *AccountEngine) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	if err := e.db.WithContext(ctx).Preload("Profile").Order("username ASC").Find(&accounts).Error; err != nil {
		return nil, errors.NewInternalError(err)
	}
	return accounts, nil
}

func (e *AccountEngine) issue(account *models.Account) (*AuthResult, error) {
	tokens, err := e.tokens(account)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: account, Tokens: tokens}, nil
}

func (e *AccountEngine) tokens(account *models.Account) (*auth.TokenPair, error) {
	tokens, err := e.jwt.GenerateTokenPair(auth.Principal{
		AccountID: account.ID,
		Username:  account.Username,
		IsStaff:   account.IsStaff,
	})
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	return tokens, nil
}

// ChangePassword replaces the caller's password after checking the current one
func (e *AccountEngine) ChangePassword(ctx context.Context, p auth.Principal, current, next string) error {
	var account models.Account
	if err := e.db.WithContext(ctx).First(&account, "id = ?", p.AccountID).Error; err != nil {
		return storeError(err, "account")
	}
	if !auth.CheckPassword(current, account.PasswordHash) {
		return errors.NewUnauthorizedError("current password is incorrect")
	}
	if len(next) < MinPasswordLength {
		return errors.NewValidationError("new_password", "new_password must be at least 8 characters")
	}

	hash, err := auth.HashPassword(next)
	if err != nil {
		return errors.NewInternalError(err)
	}
	if err := e.db.WithContext(ctx).Model(&account).UpdateColumn("password_hash", hash).Error; err != nil {
		return errors.NewInternalError(err)
	}
	e.log.Info("password changed", zap.String("account_id", account.ID.String()))
	return nil
}
