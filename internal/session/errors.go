package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/securewatch/securewatch/internal/client"
)

// ErrorKind classifies a failed operation for display.
type ErrorKind string

const (
	InvalidCredentials ErrorKind = "invalid_credentials"
	NetworkFailure     ErrorKind = "network_failure"
	ServerError        ErrorKind = "server_error"
	SessionExpired     ErrorKind = "session_expired"
)

// ErrSuperseded is returned by an operation whose result was discarded
// because a newer login, register or logout committed first. State is left
// as the newer operation set it.
var ErrSuperseded = errors.New("operation superseded by a newer one")

// Error is the classified failure recorded in State.Error.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches another *Error of the same kind, so callers can write
// errors.Is(err, &session.Error{Kind: session.SessionExpired}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

type operation int

const (
	opHydrate operation = iota
	opLogin
	opRegister
	opRefresh
)

func (o operation) String() string {
	switch o {
	case opHydrate:
		return "initialize_auth"
	case opLogin:
		return "login"
	case opRegister:
		return "register"
	default:
		return "get_current_user"
	}
}

// classify turns a transport, status or validation error into an *Error.
// Authentication failures mean bad input for login/register and an expired
// session for profile fetches.
func classify(op operation, err error) *Error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return &Error{Kind: InvalidCredentials, Message: validationMessage(validationErrs), cause: err}
	}

	var statusErr *client.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized && (op == opHydrate || op == opRefresh):
			return &Error{Kind: SessionExpired, Message: "session expired, please log in again", cause: err}
		case (op == opLogin || op == opRegister) && isUserCorrectable(statusErr.StatusCode):
			return &Error{Kind: InvalidCredentials, Message: messageOr(statusErr.Message, "invalid credentials"), cause: err}
		default:
			return &Error{Kind: ServerError, Message: messageOr(statusErr.Message, http.StatusText(statusErr.StatusCode)), cause: err}
		}
	}

	if errors.Is(err, client.ErrMalformedResponse) {
		return &Error{Kind: ServerError, Message: "unexpected response from server", cause: err}
	}

	return &Error{Kind: NetworkFailure, Message: "could not reach the server", cause: err}
}

func isUserCorrectable(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}

func validationMessage(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "email":
			msgs = append(msgs, field+" must be a valid email address")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
