package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/securewatch/securewatch/internal/auth"
	"github.com/securewatch/securewatch/internal/models"
	"github.com/securewatch/securewatch/internal/rbac"
)

// RegisterRequest represents a sign-up request. Either name or first_name
// must be set.
type RegisterRequest struct {
	Name      string    `json:"name"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email" binding:"required,email"`
	Password  string    `json:"password" binding:"required,min=8"`
	Role      rbac.Role `json:"role"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UserResponse represents user information returned in responses
type UserResponse struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Role            rbac.Role `json:"role"`
	IsActive        bool      `json:"is_active"`
	IsEmailVerified bool      `json:"is_email_verified"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AuthResponse is the payload of a successful login or registration
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        UserResponse `json:"user"`
}

// APIResponse is the envelope every auth endpoint replies with
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func errorBody(message string) APIResponse {
	return APIResponse{Success: false, Message: message}
}

func toUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:              user.ID,
		Email:           user.Email,
		Name:            user.FullName(),
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		Role:            user.Role,
		IsActive:        user.IsActive,
		IsEmailVerified: user.IsEmailVerified,
		CreatedAt:       user.CreatedAt,
		UpdatedAt:       user.UpdatedAt,
	}
}

var (
	errEmailTaken   = errors.New("email already registered")
	errNameRequired = errors.New("name is required")
)

// createUser validates the name, hashes the password and inserts the user
func (s *Server) createUser(req RegisterRequest, role rbac.Role) (*models.User, error) {
	first, last := strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName)
	if first == "" {
		first, last = models.SplitName(req.Name)
	}
	if first == "" {
		return nil, errNameRequired
	}

	var count int64
	if err := s.db.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errEmailTaken
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: passwordHash,
		FirstName:    first,
		LastName:     last,
		Role:         role,
		IsActive:     true,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// respondCreateError maps createUser failures to responses
func (s *Server) respondCreateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errEmailTaken):
		c.JSON(http.StatusConflict, errorBody("User with this email already exists"))
	case errors.Is(err, errNameRequired):
		c.JSON(http.StatusBadRequest, errorBody("Name is required"))
	default:
		s.logger.Error().Err(err).Msg("Failed to create user")
		c.JSON(http.StatusInternalServerError, errorBody("Failed to create user"))
	}
}

func (s *Server) issue(c *gin.Context, status int, message string, user *models.User) {
	token, err := s.tokens.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate token")
		c.JSON(http.StatusInternalServerError, errorBody("Failed to generate token"))
		return
	}

	c.JSON(status, APIResponse{
		Success: true,
		Message: message,
		Data: AuthResponse{
			AccessToken: token,
			TokenType:   "Bearer",
			ExpiresIn:   int64(s.tokens.TTL().Seconds()),
			User:        toUserResponse(user),
		},
	})
}

// register creates a viewer account and signs it in
func (s *Server) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	if req.Role != "" && req.Role != rbac.RoleViewer {
		c.JSON(http.StatusForbidden, errorBody("Only viewer accounts can be self-registered"))
		return
	}

	user, err := s.createUser(req, rbac.RoleViewer)
	if err != nil {
		s.respondCreateError(c, err)
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User registered")
	s.issue(c, http.StatusCreated, "User registered successfully", user)
}

// login authenticates with email and password
func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	var user models.User
	if err := s.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, errorBody("Invalid email or password"))
			return
		}
		s.logger.Error().Err(err).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, errorBody("Internal server error"))
		return
	}

	if err := auth.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		c.JSON(http.StatusUnauthorized, errorBody("Invalid email or password"))
		return
	}

	if !user.IsActive {
		c.JSON(http.StatusForbidden, errorBody("Account is inactive"))
		return
	}

	now := time.Now()
	if err := s.db.Model(&user).Update("last_login_at", now).Error; err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to record last login")
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User logged in")
	s.issue(c, http.StatusOK, "Login successful", &user)
}

// getCurrentUser returns the user owning the bearer token
func (s *Server) getCurrentUser(c *gin.Context) {
	sessionData, exists := GetSessionData(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, errorBody("Unauthorized"))
		return
	}

	var user models.User
	if err := s.db.Where("id = ?", sessionData.UserID).First(&user).Error; err != nil {
		s.logger.Error().Err(err).Str("user_id", sessionData.UserID).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, errorBody("Internal server error"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(&user)})
}
