package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"

	"github.com/xenking/munchify/internal/domain/order"
	"github.com/xenking/munchify/internal/domain/promo"
	"github.com/xenking/munchify/internal/failure"
	"github.com/xenking/munchify/internal/wire"
)

// Register creates an account and returns the server's message.
func (c *Client) Register(ctx context.Context, creds wire.Credentials) (string, error) {
	var reply wire.Reply
	if err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/register",
		body:   &creds,
		out:    &reply,
	}); err != nil {
		return "", err
	}
	return reply.Message, nil
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (wire.AuthToken, error) {
	var tok wire.AuthToken
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   &wire.Credentials{Email: email, Password: password},
		out:    &tok,
	})
	if err == nil && tok.AccessToken == "" {
		err = errors.New("login response without access token")
	}
	return tok, err
}

// Me returns the account behind token.
func (c *Client) Me(ctx context.Context, token string) (wire.Me, error) {
	var me wire.Me
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/auth/me",
		token:  token,
		out:    &me,
	})
	return me, err
}

// UpdateAccount changes username and/or password.
func (c *Client) UpdateAccount(ctx context.Context, token string, upd wire.AccountUpdate) (string, error) {
	var reply wire.Reply
	if err := c.do(ctx, call{
		method: http.MethodPatch,
		path:   "/auth/update",
		token:  token,
		body:   &upd,
		out:    &reply,
	}); err != nil {
		return "", err
	}
	return reply.Message, nil
}

// DeleteAccount removes the account behind token.
func (c *Client) DeleteAccount(ctx context.Context, token string) (string, error) {
	var reply wire.Reply
	if err := c.do(ctx, call{
		method: http.MethodDelete,
		path:   "/auth/delete",
		token:  token,
		out:    &reply,
	}); err != nil {
		return "", err
	}
	return reply.Message, nil
}

// FetchOrders returns the user's past orders, newest first.
func (c *Client) FetchOrders(ctx context.Context, token string) ([]order.Order, error) {
	var orders wire.Orders
	if err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/orders",
		token:  token,
		out:    &orders,
	}); err != nil {
		return nil, err
	}
	return orders, nil
}

// SubmitOrder places an order.
func (c *Client) SubmitOrder(ctx context.Context, token string, req order.Request) (*order.Receipt, error) {
	var receipt wire.Receipt
	if err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/orders",
		token:  token,
		body:   (*wire.OrderRequest)(&req),
		out:    &receipt,
	}); err != nil {
		return nil, err
	}
	return (*order.Receipt)(&receipt), nil
}

// Promo looks up a promo code. Unknown codes yield promo.ErrInvalidCode.
func (c *Client) Promo(ctx context.Context, code string) (*promo.Rule, error) {
	var rule wire.Promo
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/promos/" + url.PathEscape(promo.NormalizeCode(code)),
		out:    &rule,
	})
	var rej *failure.RejectionError
	if errors.As(err, &rej) && rej.Status == http.StatusNotFound {
		return nil, errors.Wrap(promo.ErrInvalidCode, code)
	}
	if err != nil {
		return nil, err
	}
	return (*promo.Rule)(&rule), nil
}
