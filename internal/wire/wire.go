// Package wire performs the single HTTP round-trips used by the auth and
// federation packages and maps their failures onto the domain error kinds:
// transport failures become NetworkError, non-2xx responses ProtocolError,
// and undecodable bodies DecodeError. Nothing here retries.
package wire

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/djinn/kashir/internal/domain"
)

// DefaultTimeout bounds every single round-trip.
const DefaultTimeout = 15 * time.Second

// NewHTTPClient returns the client used when a component is not given one.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status.
func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Text returns the body as a string.
func (r Response) Text() string {
	return string(r.Body)
}

// ProtocolError builds the error describing this response.
func (r Response) ProtocolError(op string) *domain.ProtocolError {
	return &domain.ProtocolError{Op: op, Status: r.Status, Body: r.Text()}
}

// Do sends req and reads the whole body. Only transport failures are
// returned as errors; any HTTP status is a Response.
func Do(client *http.Client, op string, req *http.Request) (Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		return Response{}, &domain.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, &domain.NetworkError{Op: op, Err: fmt.Errorf("reading body: %w", err)}
	}
	return Response{Status: resp.StatusCode, Body: body}, nil
}

// PostForm sends a form-encoded POST.
func PostForm(ctx context.Context, client *http.Client, op, endpoint string, form url.Values) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Response{}, fmt.Errorf("%s: creating request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return Do(client, op, req)
}

// PostJSON sends a JSON POST. Extra headers are applied after the defaults.
func PostJSON(ctx context.Context, client *http.Client, op, endpoint string, payload any, headers map[string]string) (Response, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("%s: encoding request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return Response{}, fmt.Errorf("%s: creating request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return Do(client, op, req)
}

// Get sends a GET. Authentication, if any, is the client's job.
func Get(ctx context.Context, client *http.Client, op, endpoint string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Response{}, fmt.Errorf("%s: creating request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	return Do(client, op, req)
}

// Expect decodes a 2xx JSON body into target, or returns the matching
// ProtocolError / DecodeError.
func Expect(resp Response, op string, target any) error {
	if !resp.OK() {
		return resp.ProtocolError(op)
	}
	return Decode(resp, op, target)
}

// Decode unmarshals the body into target.
func Decode(resp Response, op string, target any) error {
	if err := json.Unmarshal(resp.Body, target); err != nil {
		return &domain.DecodeError{Op: op, Body: resp.Text(), Err: err}
	}
	return nil
}

func decodeErr(resp Response, op, msg string) error {
	return &domain.DecodeError{Op: op, Body: resp.Text(), Err: fmt.Errorf("%s", msg)}
}

// MissingField returns a DecodeError for a well-formed body lacking a
// required field.
func MissingField(resp Response, op, field string) error {
	return decodeErr(resp, op, "missing "+field)
}
