package session

import (
	"time"

	"github.com/securewatch/securewatch/internal/client"
	"github.com/securewatch/securewatch/internal/rbac"
)

// User is the authenticated identity as reported by the remote service.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Role      rbac.Role `json:"role"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

func userFromDetail(d client.UserDetail) *User {
	return &User{
		ID:        d.ID,
		Name:      d.DisplayName(),
		Email:     d.Email,
		Role:      rbac.Role(d.Role),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// State is the observable session. IsAuthenticated is true exactly when
// User is set, and HasHydrated never goes back to false.
type State struct {
	User            *User  `json:"user"`
	IsAuthenticated bool   `json:"is_authenticated"`
	IsLoading       bool   `json:"is_loading"`
	Error           *Error `json:"error"`
	HasHydrated     bool   `json:"has_hydrated"`
}

// clone returns a copy whose User can be handed to consumers.
func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Phase is the coarse lifecycle position of the machine.
type Phase string

const (
	PhaseUninitialized  Phase = "uninitialized"
	PhaseHydrating      Phase = "hydrating"
	PhaseAnonymous      Phase = "anonymous"
	PhaseAuthenticated  Phase = "authenticated"
	PhaseAuthenticating Phase = "authenticating"
	PhaseRegistering    Phase = "registering"
	PhaseRefreshing     Phase = "refreshing"
)

// Credentials is the login form.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterDetails is the sign-up form. Role is optional; the remote service
// decides what it actually grants.
type RegisterDetails struct {
	Name     string    `json:"name" validate:"required"`
	Email    string    `json:"email" validate:"required,email"`
	Password string    `json:"password" validate:"required,min=8"`
	Role     rbac.Role `json:"role,omitempty" validate:"omitempty,oneof=super_admin admin police viewer"`
}
