package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenking/munchify/internal/domain/order"
	"github.com/xenking/munchify/internal/domain/promo"
	"github.com/xenking/munchify/internal/domain/user"
	"github.com/xenking/munchify/internal/server/auth"
	"github.com/xenking/munchify/internal/server/handler"
	"github.com/xenking/munchify/internal/server/notify"
	"github.com/xenking/munchify/internal/storage/memory"
	"github.com/xenking/munchify/internal/wire"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type env struct {
	mux    *http.ServeMux
	store  *memory.Store
	tokens *auth.Tokens
	mailer *recordingMailer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store, err := memory.New()
	require.NoError(t, err)
	tokens, err := auth.NewTokens("test-secret", time.Hour)
	require.NoError(t, err)

	mailer := &recordingMailer{}
	h := handler.New(handler.Config{
		Users:  user.NewService(store, user.WithBcryptCost(bcrypt.MinCost)),
		Orders: order.NewService(store.Orders(), promo.NewRepoRedeemer(store), notify.NewConfirmations(mailer, "")),
		Promos: store,
		Tokens: tokens,
	})
	mux := http.NewServeMux()
	h.Register(mux)
	return &env{mux: mux, store: store, tokens: tokens, mailer: mailer}
}

func (e *env) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func reply(t *testing.T, w *httptest.ResponseRecorder) wire.Reply {
	t.Helper()
	var r wire.Reply
	require.NoError(t, wire.Unmarshal(w.Body.Bytes(), &r), w.Body.String())
	return r
}

// signup registers alice and returns her token.
func (e *env) signup(t *testing.T) string {
	t.Helper()
	w := e.do(http.MethodPost, "/auth/register", "",
		`{"username":"alice","email":"alice@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(http.MethodPost, "/auth/login", "", `{"email":"ALICE@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tok wire.AuthToken
	require.NoError(t, wire.Unmarshal(w.Body.Bytes(), &tok))
	assert.Equal(t, "alice", tok.Username)
	return tok.AccessToken
}

const orderBody = `{
	"contact_info": {
		"firstName": "Alice", "lastName": "Smith", "email": "alice@example.com",
		"street": "1 Main St", "city": "Nairobi", "county": "Nairobi",
		"zip": "00100", "country": "Kenya", "phone": "+254700000000"
	},
	"items": [
		{"id": 1, "name": "Burger", "quantity": 2, "price": 5.50},
		{"id": "2", "name": "Soda", "quantity": 1, "price": 1.25}
	],
	"total": 14.25%s
}`

func TestRegister(t *testing.T) {
	e := newEnv(t)

	for _, tt := range []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{"MissingUsername", `{"email":"a@example.com","password":"secret1"}`, 400, "Username is required"},
		{"BadEmail", `{"username":"a","email":"nope","password":"secret1"}`, 400, "Invalid email address"},
		{"ShortPassword", `{"username":"a","email":"a@example.com","password":"123"}`, 400, "Password must be at least 6 characters long."},
		{"BadJSON", `{"username":`, 400, "Invalid JSON body"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(http.MethodPost, "/auth/register", "", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.msg, reply(t, w).Error)
		})
	}

	w := e.do(http.MethodPost, "/auth/register", "", `{"username":"bob","email":"bob@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "User registered successfully", reply(t, w).Message)

	w = e.do(http.MethodPost, "/auth/register", "", `{"username":"bob2","email":"BOB@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Username or email already exists", reply(t, w).Error)
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	e.signup(t)

	w := e.do(http.MethodPost, "/auth/login", "", `{"email":"alice@example.com","password":"wrong!!"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", reply(t, w).Error)

	w = e.do(http.MethodPost, "/auth/login", "", `{"email":"nobody@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(http.MethodPost, "/auth/login", "", `{"email":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthentication(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodGet, "/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Missing Authorization Header", reply(t, w).Error)

	w = e.do(http.MethodGet, "/auth/me", "garbage", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "Invalid token", reply(t, w).Error)

	expired, err := auth.NewTokens("test-secret", time.Nanosecond)
	require.NoError(t, err)
	token, err := expired.Issue(1)
	require.NoError(t, err)
	time.Sleep(time.Second)
	w = e.do(http.MethodGet, "/orders", token, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token has expired", reply(t, w).Error)
}

func TestAccount(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t)

	w := e.do(http.MethodGet, "/auth/me", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var me wire.Me
	require.NoError(t, wire.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "alice", me.Username)
	assert.Equal(t, "alice@example.com", me.Email)

	w = e.do(http.MethodPatch, "/auth/update", token, `{"email":"new@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email cannot be changed", reply(t, w).Error)

	w = e.do(http.MethodPost, "/auth/register", "", `{"username":"bob","email":"bob@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	w = e.do(http.MethodPatch, "/auth/update", token, `{"username":"bob"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Username already taken", reply(t, w).Error)

	w = e.do(http.MethodPatch, "/auth/update", token, `{"username":"alicia","password":"newpass"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User updated successfully", reply(t, w).Message)
	w = e.do(http.MethodPost, "/auth/login", "", `{"email":"alice@example.com","password":"newpass"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodDelete, "/auth/delete", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "User deleted successfully", reply(t, w).Message)

	w = e.do(http.MethodGet, "/auth/me", token, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", reply(t, w).Error)
}

func TestOrders(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t)

	w := e.do(http.MethodGet, "/orders", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = e.do(http.MethodPost, "/orders", token, strings.Replace(orderBody, "%s", "", 1))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var receipt wire.Receipt
	require.NoError(t, wire.Unmarshal(w.Body.Bytes(), &receipt))
	assert.Equal(t, "Order placed successfully and email sent", receipt.Message)
	assert.True(t, decimal.RequireFromString("14.25").Equal(receipt.Total), receipt.Total.String())

	require.Len(t, e.mailer.sent, 1)
	assert.Equal(t, []string{"alice@example.com"}, e.mailer.sent[0].To)
	assert.Contains(t, e.mailer.sent[0].Body, "Total: $14.25")

	w = e.do(http.MethodGet, "/orders", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var orders wire.Orders
	require.NoError(t, wire.Unmarshal(w.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, receipt.ID, orders[0].ID)
	assert.Len(t, orders[0].Items, 2)
	assert.Equal(t, "1", orders[0].Items[0].ID)
}

func TestOrders_Rejected(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t)
	yesterday := time.Now().Add(-24 * time.Hour)
	require.NoError(t, e.store.PutPromos(context.Background(),
		promo.Rule{Code: "OLD", Kind: promo.KindFixed, Value: decimal.NewFromInt(1), ValidUntil: &yesterday},
		promo.Rule{Code: "ONCE", Kind: promo.KindFixed, Value: decimal.NewFromInt(1), MaxUses: 1, Uses: 1},
	))

	for _, tt := range []struct {
		name string
		body string
		msg  string
	}{
		{"Empty", `{"contact_info":{},"items":[],"total":0}`, "Invalid order: cart is empty or total is zero."},
		{"MissingContact", `{"contact_info":{"firstName":"A"},"items":[{"id":"1","quantity":1,"price":2}],"total":4}`, ""},
		{"UnknownPromo", strings.Replace(orderBody, "%s", `,"promo_code":"nope"`, 1), "Invalid promo code."},
		{"ExpiredPromo", strings.Replace(orderBody, "%s", `,"promo_code":"old"`, 1), "This promo code has expired."},
		{"UsedUpPromo", strings.Replace(orderBody, "%s", `,"promo_code":"ONCE"`, 1), "This promo code is no longer available."},
	} {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(http.MethodPost, "/orders", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			if tt.msg != "" {
				assert.Equal(t, tt.msg, reply(t, w).Error)
			} else {
				assert.Contains(t, reply(t, w).Error, "Please check the following fields")
			}
		})
	}
	assert.Empty(t, e.mailer.sent)
}

func TestOrders_DeletedUser(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t)
	ctx := context.Background()
	require.NoError(t, e.store.PutPromos(ctx,
		promo.Rule{Code: "ONCE", Kind: promo.KindFixed, Value: decimal.NewFromInt(1), MaxUses: 1},
	))

	w := e.do(http.MethodDelete, "/auth/delete", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	// The token is still valid but its owner is gone.
	w = e.do(http.MethodPost, "/orders", token, strings.Replace(orderBody, "%s", `,"promo_code":"ONCE"`, 1))
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	assert.Equal(t, "User not found", reply(t, w).Error)
	assert.Empty(t, e.mailer.sent)

	rule, err := e.store.FindByCode(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, 0, rule.Uses)
}

func TestOrders_MailFailure(t *testing.T) {
	e := newEnv(t)
	token := e.signup(t)
	e.mailer.err = errors.New("smtp down")

	w := e.do(http.MethodPost, "/orders", token, strings.Replace(orderBody, "%s", "", 1))
	require.Equal(t, http.StatusCreated, w.Code)
	var receipt wire.Receipt
	require.NoError(t, wire.Unmarshal(w.Body.Bytes(), &receipt))
	assert.Equal(t, "Order placed successfully", receipt.Message)
}

func TestPromos(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.store.PutPromos(context.Background(), promo.Rule{
		Code: "HAPPY10", Kind: promo.KindPercentage, Value: decimal.NewFromInt(10), Description: "10% off",
	}))

	w := e.do(http.MethodGet, "/promos/happy10", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rule wire.Promo
	require.NoError(t, wire.Unmarshal(w.Body.Bytes(), &rule))
	assert.Equal(t, "HAPPY10", rule.Code)
	assert.Equal(t, promo.KindPercentage, rule.Kind)

	w = e.do(http.MethodGet, "/promos/NOPE", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBodyLimit(t *testing.T) {
	e := newEnv(t)
	body := `{"username":"` + strings.Repeat("a", handler.MaxBodyBytes) + `"}`
	w := e.do(http.MethodPost, "/auth/register", "", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
