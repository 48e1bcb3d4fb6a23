package wire

import (
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/djinn/kashir/internal/domain"
)

// DecodeToken decodes an OAuth token endpoint response. The access token is
// required; refresh token, expires_in and token_type are optional.
//
// A 2xx token body carries credentials, so decode failures report only its
// length.
func DecodeToken(resp Response, op string) (*oauth2.Token, error) {
	if !resp.OK() {
		return nil, resp.ProtocolError(op)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(resp.Body, &tok); err != nil {
		return nil, redactedDecodeErr(resp, op, err)
	}
	if tok.AccessToken == "" {
		return nil, redactedDecodeErr(resp, op, fmt.Errorf("missing access_token"))
	}
	return &tok, nil
}

func redactedDecodeErr(resp Response, op string, err error) error {
	return &domain.DecodeError{Op: op, Body: fmt.Sprintf("<redacted, %d bytes>", len(resp.Body)), Err: err}
}
