// Package daemon talks to the server-management daemons running on nodes.
package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pterodactyl/panel/internal/model"
)

// DefaultTimeout bounds every call to a daemon.
const DefaultTimeout = 5 * time.Second

// maxErrorBody caps how much of a failed response is kept for the error.
const maxErrorBody = 512

// Client sends key notifications to node daemons. It implements
// daemonkey.Notifier.
type Client struct {
	http      *http.Client
	timeout   time.Duration
	userAgent string
}

// NewClient creates a Client. A zero timeout uses DefaultTimeout.
func NewClient(timeout time.Duration, version string) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		timeout:   timeout,
		userAgent: "pterodactyl-panel/" + version,
	}
}

// keyRequest is the body of POST /v1/keys.
type keyRequest struct {
	Key       string    `json:"key"`
	Server    string    `json:"server"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NotifyKeyIssued tells the daemon to accept secret for the endpoint's server
// until expiresAt.
func (c *Client) NotifyKeyIssued(ctx context.Context, ep model.DaemonEndpoint, secret string, expiresAt time.Time) error {
	body, err := json.Marshal(keyRequest{Key: secret, Server: ep.ServerUUID, ExpiresAt: expiresAt.UTC()})
	if err != nil {
		return fmt.Errorf("encode key request: %w", err)
	}
	return c.do(ctx, ep, http.MethodPost, "/v1/keys", body)
}

// NotifyKeyRevoked tells the daemon to stop accepting secret.
func (c *Client) NotifyKeyRevoked(ctx context.Context, ep model.DaemonEndpoint, secret string) error {
	return c.do(ctx, ep, http.MethodDelete, "/v1/keys/"+url.PathEscape(secret), nil)
}

func (c *Client) do(ctx context.Context, ep model.DaemonEndpoint, method, path string, body []byte) error {
	if ep.URL == "" {
		return fmt.Errorf("node %d has no daemon url", ep.NodeID)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := strings.TrimRight(ep.URL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build daemon request: %w", err)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+ep.Token)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		// *url.Error repeats the full request URL in its message.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = redactKey(urlErr.URL)
		}
		return fmt.Errorf("%s %s: %w", method, redactKey(target), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method: method,
			URL:    redactKey(target),
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(msg)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// StatusError is returned when a daemon answers with a non-2xx status.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("daemon %s %s: status %d", e.Method, e.URL, e.Code)
	}
	return fmt.Sprintf("daemon %s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// redactKey strips the secret from a revoke URL before it reaches logs.
func redactKey(target string) string {
	if i := strings.Index(target, "/v1/keys/"); i >= 0 {
		return target[:i] + "/v1/keys/[redacted]"
	}
	return target
}
