package real

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/opd-ai/openmail/interfaces"
	"github.com/sirupsen/logrus"
)

// RequesterStats holds request counters.
type RequesterStats struct {
	Requests int64
	Failures int64
}

// HTTPSRequester implements interfaces.Requester over net/http. Only https
// URLs are accepted.
type HTTPSRequester struct {
	client *http.Client
	config interfaces.RequesterConfig

	requests atomic.Int64
	failures atomic.Int64
}

// NewHTTPSRequester creates a requester. A nil client gets a dedicated
// http.Client; the per-request timeout comes from config either way.
func NewHTTPSRequester(config *interfaces.RequesterConfig, client *http.Client) *HTTPSRequester {
	if client == nil {
		client = &http.Client{}
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewHTTPSRequester",
		"timeout":  config.Timeout,
	}).Info("Creating HTTPS requester")

	return &HTTPSRequester{client: client, config: *config}
}

// IsSimulation implements interfaces.Requester.
func (r *HTTPSRequester) IsSimulation() bool { return false }

// Stats returns a snapshot of the request counters.
func (r *HTTPSRequester) Stats() RequesterStats {
	return RequesterStats{Requests: r.requests.Load(), Failures: r.failures.Load()}
}

// Do implements interfaces.Requester.
func (r *HTTPSRequester) Do(ctx context.Context, req *interfaces.Request) (*interfaces.Response, error) {
	r.requests.Add(1)

	resp, err := r.do(ctx, req)
	if err != nil {
		r.failures.Add(1)
		logrus.WithFields(logrus.Fields{
			"function":      "HTTPSRequester.Do",
			"method":        interfaces.MethodOf(req),
			"url":           req.URL,
			"authenticated": req.Signer != nil,
			"error":         err.Error(),
		}).Debug("Request failed")
		return nil, err
	}
	return resp, nil
}

func (r *HTTPSRequester) do(ctx context.Context, req *interfaces.Request) (*interfaces.Response, error) {
	method := interfaces.MethodOf(req)

	parsed, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrNetwork, err)
	}
	if parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: refusing non-https url %q", interfaces.ErrNetwork, req.URL)
	}

	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrNetwork, err)
	}

	if r.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", r.config.UserAgent)
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}
	if req.Signer != nil {
		agent := parsed.Hostname()
		if agent == "" {
			return nil, fmt.Errorf("%w: no host in %q", interfaces.ErrNetwork, req.URL)
		}
		auth, err := req.Signer.Authorization(agent)
		if err != nil {
			return nil, fmt.Errorf("%w: authorization: %w", interfaces.ErrNetwork, err)
		}
		httpReq.Header.Set("Authorization", auth)
	}

	httpResp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", interfaces.ErrNetwork, err)
	}
	defer httpResp.Body.Close()

	if !interfaces.IsSuccess(httpResp.StatusCode) {
		return nil, interfaces.StatusError(method, req.URL, httpResp.StatusCode)
	}

	maxLength := req.MaxLength
	if maxLength == 0 {
		maxLength = r.config.MaxResponseSize
	}
	if maxLength > 0 && httpResp.ContentLength > maxLength {
		return nil, fmt.Errorf("%w: content length %d exceeds %d", interfaces.ErrNetwork, httpResp.ContentLength, maxLength)
	}

	reader := io.Reader(httpResp.Body)
	if maxLength > 0 {
		reader = io.LimitReader(httpResp.Body, maxLength+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", interfaces.ErrNetwork, err)
	}
	if maxLength > 0 && int64(len(data)) > maxLength {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", interfaces.ErrNetwork, maxLength)
	}

	return &interfaces.Response{
		StatusCode: httpResp.StatusCode,
		Header:     flattenHeader(httpResp.Header),
		Body:       data,
	}, nil
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, values := range h {
		out[strings.ToLower(k)] = strings.Join(values, ", ")
	}
	return out
}
