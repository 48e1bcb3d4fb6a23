package auth_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djinn/kashir/internal/auth"
	"github.com/djinn/kashir/internal/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		body string
		want auth.Outcome
		err  error
	}{
		{"form style pending", "error=authorization_pending", auth.OutcomePending, domain.ErrAuthorizationPending},
		{"json pending", `{"error":"authorization_pending","error_description":"AADSTS70016"}`, auth.OutcomePending, domain.ErrAuthorizationPending},
		{"slow down", `{"error":"slow_down"}`, auth.OutcomeSlowDown, domain.ErrSlowDown},
		{"expired", `{"error":"expired_token"}`, auth.OutcomeExpired, domain.ErrExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := auth.Classify(400, tc.body)
			assert.Equal(t, tc.want, c.Outcome)
			assert.True(t, errors.Is(c.Err, tc.err))
		})
	}
}

func TestClassify_UnknownBodyIsProtocolError(t *testing.T) {
	c := auth.Classify(401, `{"error":"invalid_client"}`)
	require.Equal(t, auth.OutcomeProtocol, c.Outcome)

	var perr *domain.ProtocolError
	require.True(t, errors.As(c.Err, &perr))
	assert.Equal(t, 401, perr.Status)
	assert.Equal(t, `{"error":"invalid_client"}`, perr.Body)
}

func TestClassify_EmptyBodyIsProtocolError(t *testing.T) {
	c := auth.Classify(500, "")
	assert.Equal(t, auth.OutcomeProtocol, c.Outcome)
}
