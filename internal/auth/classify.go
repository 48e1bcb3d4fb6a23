package auth

import (
	"strings"

	"github.com/djinn/kashir/internal/domain"
)

// Outcome is the class of a failed token-exchange response.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSlowDown
	OutcomeExpired
	OutcomeProtocol
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSlowDown:
		return "slow_down"
	case OutcomeExpired:
		return "expired"
	default:
		return "protocol"
	}
}

// Classification pairs an Outcome with the error that represents it.
type Classification struct {
	Outcome Outcome
	Err     error
}

// Classify maps a failed device-code exchange to an Outcome by looking for
// the provider's error codes anywhere in the body. The provider only
// guarantees these tokens, not a structured error schema, so the body is
// matched as text. Anything unrecognised is a ProtocolError.
func Classify(status int, body string) Classification {
	switch {
	case strings.Contains(body, "authorization_pending"):
		return Classification{Outcome: OutcomePending, Err: domain.ErrAuthorizationPending}
	case strings.Contains(body, "slow_down"):
		return Classification{Outcome: OutcomeSlowDown, Err: domain.ErrSlowDown}
	case strings.Contains(body, "expired_token"):
		return Classification{Outcome: OutcomeExpired, Err: domain.ErrExpired}
	default:
		return Classification{
			Outcome: OutcomeProtocol,
			Err:     &domain.ProtocolError{Op: domain.OpDevicePoll, Status: status, Body: body},
		}
	}
}
