package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/securewatch/securewatch/internal/client"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		op   operation
		err  error
		want ErrorKind
	}{
		{"login 401", opLogin, &client.StatusError{StatusCode: 401}, InvalidCredentials},
		{"register 422", opRegister, &client.StatusError{StatusCode: 422}, InvalidCredentials},
		{"register 409", opRegister, &client.StatusError{StatusCode: 409}, InvalidCredentials},
		{"login 500", opLogin, &client.StatusError{StatusCode: 500}, ServerError},
		{"me 401", opRefresh, &client.StatusError{StatusCode: 401}, SessionExpired},
		{"hydrate 401 wrapped", opHydrate, fmt.Errorf("fetch: %w", &client.StatusError{StatusCode: 401}), SessionExpired},
		{"me 403", opRefresh, &client.StatusError{StatusCode: 403}, ServerError},
		{"malformed", opLogin, fmt.Errorf("%w: missing token", client.ErrMalformedResponse), ServerError},
		{"transport", opRefresh, errors.New("failed to send request: EOF"), NetworkFailure},
		{"deadline", opLogin, context.DeadlineExceeded, NetworkFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.op, tt.err)
			if assert.NotNil(t, got) {
				assert.Equal(t, tt.want, got.Kind)
				assert.NotEmpty(t, got.Message)
				assert.ErrorIs(t, got, tt.err)
			}
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	assert.Nil(t, classify(opLogin, nil))
	assert.NoError(t, classify(opLogin, nil).orNil())
}

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("revalidate: %w", &Error{Kind: SessionExpired, Message: "expired"})

	assert.ErrorIs(t, err, &Error{Kind: SessionExpired})
	assert.NotErrorIs(t, err, &Error{Kind: NetworkFailure})
	assert.True(t, IsSessionExpired(err))
	assert.Equal(t, "session_expired: expired", (&Error{Kind: SessionExpired, Message: "expired"}).Error())
}
