package mockapi

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/argscan/argscan/internal/assert"
	"github.com/argscan/argscan/internal/auth"
	"github.com/argscan/argscan/internal/models"
)

const codeTTL = 5 * time.Minute

// EmailRequest carries the address a code is sent to
type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
	Code       string `json:"code" binding:"required"`
}

// RegisterRequest creates an account
type RegisterRequest struct {
	Username string `json:"username" binding:"required,username"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Code     string `json:"code" binding:"required"`
}

// ResetPasswordRequest sets a new password
type ResetPasswordRequest struct {
	Email           string `json:"email" binding:"required,email"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
	Code            string `json:"code" binding:"required"`
}

// UserInfo is the identity returned on login and by /auth/me
type UserInfo struct {
	UserID    int64  `json:"userId"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
	Role      string `json:"role"`
	Status    string `json:"status"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token    string   `json:"token"`
	UserInfo UserInfo `json:"userInfo"`
}

func userInfo(u *models.User) UserInfo {
	return UserInfo{
		UserID:    u.ID,
		Username:  u.Username,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		Role:      u.Role,
		Status:    u.Status,
	}
}

func (s *Server) findUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("email = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// issueCode stores a fresh six digit code, replacing earlier ones
func (s *Server) issueCode(email, purpose string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())
	assert.Length("verification code", code, 6)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ? AND purpose = ?", email, purpose).Delete(&models.VerificationCode{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.VerificationCode{
			Email:     email,
			Purpose:   purpose,
			Code:      code,
			ExpiresAt: s.now().Add(codeTTL),
		}).Error
	})
	if err != nil {
		return "", fmt.Errorf("failed to store code: %w", err)
	}

	// stands in for the email
	s.logger.Info().Str("email", email).Str("purpose", purpose).Str("code", code).Msg("Verification code issued")
	return code, nil
}

// findCode returns a matching unexpired code
func (s *Server) findCode(email, purpose, code string) (*models.VerificationCode, bool) {
	var vc models.VerificationCode
	err := s.db.Where("email = ? AND purpose = ? AND code = ?", email, purpose, code).First(&vc).Error
	if err != nil || s.now().After(vc.ExpiresAt) {
		return nil, false
	}
	return &vc, true
}

// consumeCode checks and deletes a code
func (s *Server) consumeCode(email, purpose, code string) bool {
	vc, found := s.findCode(email, purpose, code)
	if !found {
		return false
	}
	s.db.Delete(vc)
	return true
}

// codeSent answers a code request, returning the code itself when configured to
func (s *Server) codeSent(c *gin.Context, code string) {
	if s.config.ExposeCodes {
		okMessage(c, "verification code sent", code)
		return
	}
	okMessage(c, "verification code sent", "verification code sent, please check your email")
}

func (s *Server) sendRegisterCode(c *gin.Context) {
	var req EmailRequest
	if !bindJSON(c, &req) {
		return
	}
	email := strings.ToLower(req.Email)

	if _, err := s.findUserByEmail(email); err == nil {
		fail(c, "email is already registered")
		return
	}

	code, err := s.issueCode(email, models.PurposeRegister)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to issue code")
		fail(c, "system error, please try again later")
		return
	}
	s.codeSent(c, code)
}

// sendLoginCode returns the code directly, as the service does
func (s *Server) sendLoginCode(c *gin.Context) {
	var req EmailRequest
	if !bindJSON(c, &req) {
		return
	}
	email := strings.ToLower(req.Email)

	if _, err := s.findUserByEmail(email); err != nil {
		fail(c, "email is not registered")
		return
	}

	code, err := s.issueCode(email, models.PurposeLogin)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to issue code")
		fail(c, "system error, please try again later")
		return
	}
	ok(c, code)
}

func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	var user models.User
	identifier := strings.TrimSpace(req.Identifier)
	err := s.db.Where("email = ? OR username = ?", strings.ToLower(identifier), identifier).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fail(c, "login failed: email is not registered")
		return
	} else if err != nil {
		s.logger.Error().Err(err).Msg("Failed to look up user")
		fail(c, "system error, please try again later")
		return
	}

	// the code is spent only by a successful login
	vc, found := s.findCode(user.Email, models.PurposeLogin, req.Code)
	if !found {
		fail(c, "login failed: verification code is invalid or expired")
		return
	}

	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		fail(c, "login failed: incorrect email or password")
		return
	}

	if user.Status == models.StatusBanned {
		fail(c, "login failed: account is banned")
		return
	}

	token, sessionID, err := s.issuer.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		fail(c, "system error, please try again later")
		return
	}

	now := s.now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(vc).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.LoginLog{
			UserID:    user.ID,
			SessionID: sessionID,
			LoginTime: now,
			Status:    "SUCCESS",
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}).Error; err != nil {
			return err
		}
		return tx.Model(&user).Update("last_login_at", now).Error
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to record login")
		fail(c, "system error, please try again later")
		return
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("User logged in")
	ok(c, LoginResponse{Token: token, UserInfo: userInfo(&user)})
}

func (s *Server) register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	email := strings.ToLower(req.Email)

	if !s.consumeCode(email, models.PurposeRegister, req.Code) {
		fail(c, "verification code is invalid or expired")
		return
	}

	var count int64
	s.db.Model(&models.User{}).Where("username = ?", req.Username).Count(&count)
	if count > 0 {
		fail(c, "username already exists")
		return
	}
	s.db.Model(&models.User{}).Where("email = ?", email).Count(&count)
	if count > 0 {
		fail(c, "email is already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		fail(c, "system error, please try again later")
		return
	}

	user := &models.User{
		Username:     req.Username,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		Status:       models.StatusActive,
	}
	if err := s.db.Create(user).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to create user")
		fail(c, "system error, please try again later")
		return
	}

	s.logger.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("User registered")
	okMessage(c, "registration successful", "registration successful")
}

func (s *Server) sendResetCode(c *gin.Context) {
	var req EmailRequest
	if !bindJSON(c, &req) {
		return
	}
	email := strings.ToLower(req.Email)

	if _, err := s.findUserByEmail(email); err != nil {
		fail(c, "email is not registered")
		return
	}

	code, err := s.issueCode(email, models.PurposeReset)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to issue code")
		fail(c, "system error, please try again later")
		return
	}
	s.codeSent(c, code)
}

func (s *Server) resetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	email := strings.ToLower(req.Email)

	if req.NewPassword != req.ConfirmPassword {
		fail(c, "the two new passwords do not match")
		return
	}

	if !s.consumeCode(email, models.PurposeReset, req.Code) {
		fail(c, "verification code is invalid or expired")
		return
	}

	user, err := s.findUserByEmail(email)
	if err != nil {
		fail(c, "email is not registered")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		fail(c, "system error, please try again later")
		return
	}
	if err := s.db.Model(user).Update("password_hash", hash).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to update password")
		fail(c, "system error, please try again later")
		return
	}

	okMessage(c, "password reset successful", "password reset successful")
}

func (s *Server) logout(c *gin.Context) {
	session := mustSession(c)

	now := s.now()
	if err := s.db.Model(&models.LoginLog{}).
		Where("session_id = ?", session.SessionID).
		Update("logout_time", now).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to record logout")
		fail(c, "logout failed")
		return
	}

	ok(c, nil)
}

func (s *Server) getCurrentUser(c *gin.Context) {
	session := mustSession(c)

	var user models.User
	if err := models.FindByID(s.db, session.UserID, &user); err != nil {
		fail(c, "not logged in or login expired")
		return
	}

	ok(c, userInfo(&user))
}
