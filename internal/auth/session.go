package auth

import "github.com/securewatch/securewatch/internal/rbac"

// SessionData represents the authenticated session context for a request
type SessionData struct {
	UserID string    `json:"user_id"`
	Email  string    `json:"email"`
	Role   rbac.Role `json:"role"`
}
