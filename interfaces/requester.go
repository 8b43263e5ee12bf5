package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrNetwork marks every transport-level failure: unreachable agent,
// timeout, non-2xx status or an oversized response. Callers treat it as
// "skip this agent".
var ErrNetwork = errors.New("network error")

// Validation bounds for RequesterConfig.
const (
	MinTimeout = 100 * time.Millisecond
	MaxTimeout = 10 * time.Minute
)

// Signer produces the Authorization header value for a request to agent.
type Signer interface {
	Authorization(agent string) (string, error)
}

// Request is one HTTPS request to an agent.
type Request struct {
	// Method defaults to GET.
	Method string
	URL    string
	// Signer authenticates the request; nil sends it unauthenticated.
	Signer Signer
	Header map[string]string
	Body   []byte
	// MaxLength rejects responses whose body exceeds it. Zero means the
	// requester's default.
	MaxLength int64
}

// Response is a successful (2xx) response.
type Response struct {
	StatusCode int
	// Header keys are lower-case. Repeated headers are joined with ", ".
	Header map[string]string
	Body   []byte
}

// Get returns the value of a response header, case-insensitively.
func (r *Response) Get(name string) string {
	return r.Header[strings.ToLower(name)]
}

// Requester performs HTTPS requests against agents. Implementations must
// be safe for concurrent use.
type Requester interface {
	// Do executes req. Any failure, including a non-2xx status, is returned
	// as an error wrapping ErrNetwork.
	Do(ctx context.Context, req *Request) (*Response, error)

	// IsSimulation returns true if this is a simulation implementation
	IsSimulation() bool
}

// RequesterConfig holds configuration for requester implementations.
type RequesterConfig struct {
	// UseSimulation selects the in-memory agent network.
	UseSimulation bool

	// Timeout bounds each request.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// MaxResponseSize applies when a request sets no MaxLength.
	MaxResponseSize int64
}

// Validate checks the configuration bounds.
func (c *RequesterConfig) Validate() error {
	if c.Timeout < MinTimeout || c.Timeout > MaxTimeout {
		return fmt.Errorf("timeout %s outside [%s, %s]", c.Timeout, MinTimeout, MaxTimeout)
	}
	if c.MaxResponseSize < 0 {
		return fmt.Errorf("max response size must not be negative: %d", c.MaxResponseSize)
	}
	return nil
}

// MethodOf returns the effective method of req.
func MethodOf(req *Request) string {
	if req.Method == "" {
		return http.MethodGet
	}
	return req.Method
}

// StatusError builds the error returned for a non-2xx status.
func StatusError(method, url string, status int) error {
	return fmt.Errorf("%w: %s %s: status %d", ErrNetwork, method, url, status)
}

// IsSuccess reports whether status is 2xx.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
