// Package client is a Go client of the accumulator HTTP API.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/odyzzey/zk-accumulator-demo/api"
	"github.com/odyzzey/zk-accumulator-demo/log"
)

const (
	// DefaultRetries is the number of attempts of a request whose
	// connection fails.
	DefaultRetries = 3
	// DefaultTimeout bounds each attempt of a request.
	DefaultTimeout = 10 * time.Second

	retryDelay = 500 * time.Millisecond
	// bodies logged at debug level are cut to this length
	maxLoggedBody = 512
)

// Error is a non 200 answer of the API.
type Error struct {
	Status  int
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error: status %d, code %d: %s", e.Status, e.Code, e.Message)
}

// HTTPclient is the accumulator API HTTP client.
type HTTPclient struct {
	c       *http.Client
	base    *url.URL
	retries int
}

// New returns a client of the API served at host, once it answers the ping
// endpoint.
func New(host string) (*HTTPclient, error) {
	base, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid host: %w", err)
	}
	c := &HTTPclient{
		c: &http.Client{
			Transport: &http.Transport{IdleConnTimeout: DefaultTimeout},
			Timeout:   DefaultTimeout,
		},
		base:    base,
		retries: DefaultRetries,
	}
	if err := c.Ping(); err != nil {
		return nil, err
	}
	log.Debugw("api client ready", "host", base.String())
	return c, nil
}

// Ping checks the API is up.
func (c *HTTPclient) Ping() error {
	return c.call(http.MethodGet, nil, nil, api.PingEndpoint)
}

// SetRetries sets the number of attempts of a request whose connection
// fails. Values below one mean a single attempt.
func (c *HTTPclient) SetRetries(n int) {
	c.retries = max(n, 1)
}

// SetTimeout sets the timeout of each attempt of a request.
func (c *HTTPclient) SetTimeout(d time.Duration) {
	c.c.Timeout = d
}

// Request sends body, encoded as JSON if not nil, to the endpoint built by
// joining urlPath, and returns the raw answer with its status code. Only
// connection failures are retried, any answer of the server is returned.
func (c *HTTPclient) Request(method string, body any, urlPath ...string) ([]byte, int, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, 0, fmt.Errorf("encode request: %w", err)
		}
	}
	endpoint := c.endpoint(urlPath...)
	log.Debugw("api request", "method", method, "url", endpoint, "body", truncate(payload))

	resp, err := c.send(method, endpoint, payload)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

// call performs the request and decodes a 200 answer into out, if not nil.
// Any other status is returned as an *Error.
func (c *HTTPclient) call(method string, body, out any, urlPath ...string) error {
	data, status, err := c.Request(method, body, urlPath...)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return newError(status, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// send makes up to c.retries attempts, building a new request each time.
func (c *HTTPclient) send(method, endpoint string, payload []byte) (*http.Response, error) {
	var errs []error
	for attempt := 1; attempt <= c.retries; attempt++ {
		req, err := http.NewRequest(method, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.c.Do(req)
		if err == nil {
			return resp, nil
		}
		log.Warnw("api request failed", "url", endpoint, "attempt", attempt, "error", err.Error())
		errs = append(errs, err)
		if attempt < c.retries {
			time.Sleep(retryDelay)
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", len(errs), errors.Join(errs...))
}

func (c *HTTPclient) endpoint(urlPath ...string) string {
	u := *c.base
	u.Path = path.Join(append([]string{u.Path}, urlPath...)...)
	return u.String()
}

// newError decodes an error answer. Bodies that are not an API error are
// kept as the message.
func newError(status int, data []byte) *Error {
	var resp api.ErrorResponse
	if err := json.Unmarshal(data, &resp); err != nil || resp.Error == "" {
		return &Error{Status: status, Message: string(bytes.TrimSpace(data))}
	}
	return &Error{Status: status, Code: resp.Code, Message: resp.Error}
}

func truncate(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "..."
	}
	return string(b)
}
