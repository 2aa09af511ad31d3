// Package apiclient is the storefront's REST client. Every failure is
// classified into the failure taxonomy: 503 is transient, 401/422 on an
// authenticated call is unauthorized, other non-2xx responses are
// rejections, and transport errors are network failures.
package apiclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/munchify/internal/failure"
	"github.com/xenking/munchify/internal/wire"
)

const maxBodySize = 4 << 20

// Client talks to the Munchify backend.
type Client struct {
	base *url.URL
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		base: u,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type call struct {
	method string
	path   string
	token  string
	body   wire.Encoder
	out    wire.Decoder
}

func (c *Client) do(ctx context.Context, r call) error {
	op := r.method + " " + r.path
	lg := zctx.From(ctx)

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(wire.Marshal(r.body))
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.base.JoinPath(r.path).String(), body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrap(ctxErr, op)
		}
		return &failure.NetworkError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &failure.NetworkError{Op: op, Err: errors.Wrap(err, "read response")}
	}

	lg.Debug("API call",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		if r.out == nil || len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := wire.Unmarshal(data, r.out); err != nil {
			return errors.Wrapf(err, "%s: bad response", op)
		}
		return nil
	case code == http.StatusServiceUnavailable:
		return errors.Wrap(failure.ErrTransient, op)
	case r.token != "" && (code == http.StatusUnauthorized || code == http.StatusUnprocessableEntity):
		return errors.Wrap(failure.ErrUnauthorized, op)
	default:
		var reply wire.Reply
		_ = wire.Unmarshal(data, &reply)
		msg := reply.Error
		if msg == "" {
			msg = reply.Message
		}
		return &failure.RejectionError{Status: code, Message: msg}
	}
}
