// Package api - Authentication and profile handlers
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aethra/krishi/internal/auth"
	"github.com/aethra/krishi/internal/engine"
	"github.com/aethra/krishi/internal/errors"
	"github.com/aethra/krishi/internal/models"
	"github.com/gin-gonic/gin"
)

// Login throttling
const (
	loginMaxAttempts = 5
	loginWindow      = 5 * time.Minute
	loginBlock       = 15 * time.Minute
	loginForget      = 30 * time.Minute
)

// LoginRateLimiter implements rate limiting for login attempts
type LoginRateLimiter struct {
	attempts map[string]*loginAttempt
	mu       sync.Mutex
	now      func() time.Time
}

type loginAttempt struct {
	count     int
	firstTry  time.Time
	blockedAt *time.Time
}

// NewLoginRateLimiter creates a new rate limiter
func NewLoginRateLimiter() *LoginRateLimiter {
	return &LoginRateLimiter{
		attempts: make(map[string]*loginAttempt),
		now:      time.Now,
	}
}

// Allow checks if a login attempt is allowed. It returns the attempts left
// in the current window, or how long the key stays blocked.
func (rl *LoginRateLimiter) Allow(key string) (bool, int, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	attempt, exists := rl.attempts[key]

	if !exists {
		rl.attempts[key] = &loginAttempt{count: 1, firstTry: now}
		return true, loginMaxAttempts - 1, 0
	}

	if attempt.blockedAt != nil {
		if elapsed := now.Sub(*attempt.blockedAt); elapsed < loginBlock {
			return false, 0, loginBlock - elapsed
		}
		// Block expired, reset
		attempt.count = 1
		attempt.firstTry = now
		attempt.blockedAt = nil
		return true, loginMaxAttempts - 1, 0
	}

	if now.Sub(attempt.firstTry) > loginWindow {
		attempt.count = 1
		attempt.firstTry = now
		return true, loginMaxAttempts - 1, 0
	}

	attempt.count++
	if attempt.count > loginMaxAttempts {
		attempt.blockedAt = &now
		return false, 0, loginBlock
	}

	return true, loginMaxAttempts - attempt.count, 0
}

// Reset resets the attempts for a key (on successful login)
func (rl *LoginRateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, key)
}

// Run removes stale entries periodically until ctx is done
func (rl *LoginRateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *LoginRateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key, attempt := range rl.attempts {
		if attempt.blockedAt != nil && now.Sub(*attempt.blockedAt) < loginBlock {
			continue
		}
		if now.Sub(attempt.firstTry) > loginForget {
			delete(rl.attempts, key)
		}
	}
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	accounts    *engine.AccountEngine
	rateLimiter *LoginRateLimiter
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(accounts *engine.AccountEngine, limiter *LoginRateLimiter) *AuthHandler {
	if limiter == nil {
		limiter = NewLoginRateLimiter()
	}
	return &AuthHandler{
		accounts:    accounts,
		rateLimiter: limiter,
	}
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest represents registration data
type RegisterRequest struct {
	Username          string          `json:"username" binding:"required,max=150"`
	Email             string          `json:"email" binding:"required,email"`
	Password          string          `json:"password" binding:"required,min=8"`
	FirstName         string          `json:"first_name" binding:"max=150"`
	LastName          string          `json:"last_name" binding:"max=150"`
	PhoneNumber       *string         `json:"phone_number" binding:"omitempty,max=15"`
	PreferredLanguage models.Language `json:"preferred_language" binding:"omitempty,enum"`
}

// RefreshRequest carries a refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ProfileRequest lists the fields a user may change; absent fields are kept
type ProfileRequest struct {
	Email             *string          `json:"email" binding:"omitempty,email"`
	FirstName         *string          `json:"first_name" binding:"omitempty,max=150"`
	LastName          *string          `json:"last_name" binding:"omitempty,max=150"`
	PhoneNumber       *string          `json:"phone_number" binding:"omitempty,max=15"`
	PreferredLanguage *models.Language `json:"preferred_language" binding:"omitempty,enum"`
}

// ChangePasswordRequest represents a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

type accountResponse struct {
	User    *models.Account     `json:"user"`
	Profile *models.UserProfile `json:"profile"`
	Tokens  *auth.TokenPair     `json:"tokens,omitempty"`
}

func newAccountResponse(account *models.Account, tokens *auth.TokenPair) accountResponse {
	user := *account
	user.Profile = nil
	return accountResponse{User: &user, Profile: account.Profile, Tokens: tokens}
}

// Register creates an account with its profile and signs the caller in
// POST /api/users/register/
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.accounts.Register(c.Request.Context(), engine.RegisterInput{
		Username:          req.Username,
		Email:             req.Email,
		Password:          req.Password,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		PhoneNumber:       req.PhoneNumber,
		PreferredLanguage: req.PreferredLanguage,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newAccountResponse(result.User, result.Tokens))
}

// Login authenticates a user
// POST /api/users/login/
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	key := c.ClientIP() + ":" + strings.ToLower(strings.TrimSpace(req.Username))
	allowed, remaining, retryAfter := h.rateLimiter.Allow(key)
	if !allowed {
		c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "RATE_LIMITED",
			"message":     "too many login attempts, please try again later",
			"retry_after": int(retryAfter.Seconds()),
		})
		return
	}
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

	result, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	h.rateLimiter.Reset(key)
	c.JSON(http.StatusOK, newAccountResponse(result.User, result.Tokens))
}

// Refresh exchanges a refresh token for a new token pair
// POST /api/users/refresh/
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	tokens, err := h.accounts.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Logout revokes the access token of the request
// POST /api/users/logout/
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := claimsOf(c)
	if claims == nil {
		respondError(c, errors.NewUnauthorizedError("authentication credentials were not provided"))
		return
	}

	if err := h.accounts.Logout(c.Request.Context(), claims); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// GetProfile returns the caller's account and profile
// GET /api/users/profile/
func (h *AuthHandler) GetProfile(c *gin.Context) {
	account, err := h.accounts.GetAccount(c.Request.Context(), principal(c).AccountID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newAccountResponse(account, nil))
}

// UpdateProfile changes the caller's account and profile fields
// PUT /api/users/profile/
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req ProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	account, err := h.accounts.UpdateProfile(c.Request.Context(), principal(c), engine.ProfileUpdate{
		Email:             req.Email,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		PhoneNumber:       req.PhoneNumber,
		PreferredLanguage: req.PreferredLanguage,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newAccountResponse(account, nil))
}

// ChangePassword changes the caller's password
// POST /api/users/change-password/
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.accounts.ChangePassword(c.Request.Context(), principal(c), req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}
