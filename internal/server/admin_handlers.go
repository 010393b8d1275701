package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/securewatch/securewatch/internal/rbac"
)

// createAccount returns a handler that creates an account with role,
// ignoring any role in the request body
func (s *Server) createAccount(role rbac.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorBody(err.Error()))
			return
		}

		user, err := s.createUser(req, role)
		if err != nil {
			s.respondCreateError(c, err)
			return
		}

		sessionData, _ := GetSessionData(c)
		s.logger.Info().
			Str("user_id", user.ID).
			Str("email", user.Email).
			Str("role", string(role)).
			Str("created_by", sessionData.UserID).
			Msg("Account created")

		c.JSON(http.StatusCreated, APIResponse{
			Success: true,
			Message: accountCreatedMessage(role),
			Data:    gin.H{"user": toUserResponse(user)},
		})
	}
}

func accountCreatedMessage(role rbac.Role) string {
	switch role {
	case rbac.RoleAdmin:
		return "Admin account created successfully"
	case rbac.RolePolice:
		return "Police account created successfully"
	default:
		return "Account created successfully"
	}
}
