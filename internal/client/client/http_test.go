package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/sirchcoins/internal/client/models"
	"github.com/dmitrijs2005/sirchcoins/internal/common"
)

/*************
 * helpers
 *************/

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) AccessToken(context.Context) (string, error) { return s.token, s.err }

func makeJWT(t *testing.T, sub, email string, exp time.Time) string {
	t.Helper()
	claims := accessClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

type captured struct {
	method string
	path   string
	query  string
	header http.Header
	body   map[string]any
}

func newServer(t *testing.T, status int, response string, got *captured) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			got.method = r.Method
			got.path = r.URL.Path
			got.query = r.URL.RawQuery
			got.header = r.Header.Clone()
			b, _ := io.ReadAll(r.Body)
			if len(b) > 0 {
				_ = json.Unmarshal(b, &got.body)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(srv.URL, "anon-key")
	require.NoError(t, err)
	c.SetTokenSource(staticTokens{token: "user-token"})
	return c
}

/*************
 * construction
 *************/

func TestNewHTTPClient_Validation(t *testing.T) {
	_, err := NewHTTPClient("ftp://x", "k")
	require.Error(t, err)

	_, err = NewHTTPClient("https://wallet.example", " ")
	require.Error(t, err)

	c, err := NewHTTPClient("https://wallet.example/", "k", WithTimeout(time.Second), WithRateLimit(5, 0), WithClientInfo("test"))
	require.NoError(t, err)
	assert.Equal(t, time.Second, c.httpClient.Timeout)
	assert.NotNil(t, c.limiter)
	assert.Equal(t, "test", c.clientInfo)
	require.NoError(t, c.Close())
}

/*************
 * auth
 *************/

func TestSignInWithPassword_ParsesSessionFromJWT(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	access := makeJWT(t, "u1", "ada@example.com", exp)

	var got captured
	c := newServer(t, http.StatusOK, `{"access_token":"`+access+`","refresh_token":"r1","token_type":"bearer","expires_in":3600}`, &got)

	s, err := c.SignInWithPassword(context.Background(), "ada@example.com", []byte("secret-pw"))
	require.NoError(t, err)

	assert.Equal(t, "u1", s.UserID)
	assert.Equal(t, "ada@example.com", s.Email)
	assert.Equal(t, "r1", s.RefreshToken)
	assert.True(t, s.ExpiresAt.Equal(exp))

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/auth/v1/token", got.path)
	assert.Equal(t, "grant_type=password", got.query)
	assert.Equal(t, "anon-key", got.header.Get("apikey"))
	assert.Equal(t, "Bearer anon-key", got.header.Get("Authorization"), "token grant is not user-authenticated")
	assert.Equal(t, "secret-pw", got.body["password"])
}

func TestSignInWithPassword_InvalidCredentials(t *testing.T) {
	c := newServer(t, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`, nil)

	_, err := c.SignInWithPassword(context.Background(), "ada@example.com", []byte("nope"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.ErrorIs(t, err, ErrRemote)
	assert.NotErrorIs(t, err, ErrUnauthorized)

	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "Invalid login credentials", re.Message)
}

func TestParseSession_Malformed(t *testing.T) {
	_, err := ParseSession("", "r", "bearer", 0, 0)
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = ParseSession("not.a.jwt", "r", "bearer", 0, 0)
	assert.ErrorIs(t, err, ErrMalformedResponse)

	noSub := makeJWT(t, "", "x@example.com", time.Now().Add(time.Hour))
	_, err = ParseSession(noSub, "r", "bearer", 0, 0)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestParseSession_ExpiryFallbacks(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	s, err := ParseSession(tok, "", "bearer", 0, 1_900_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1_900_000_000), s.ExpiresAt.Unix())

	fixed := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	orig := nowFunc
	nowFunc = func() time.Time { return fixed }
	t.Cleanup(func() { nowFunc = orig })

	s, err = ParseSession(tok, "", "bearer", 60, 0)
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(time.Minute), s.ExpiresAt)
}

func TestSignUp_WithoutSessionWhenConfirmationRequired(t *testing.T) {
	var got captured
	c := newServer(t, http.StatusOK, `{"id":"u9","email":"new@example.com"}`, &got)

	s, err := c.SignUp(context.Background(), models.SignUpForm{
		Email: "new@example.com", Password: "longenough", FullName: "New User", UserHandle: "new-user",
	})
	require.NoError(t, err)
	assert.Nil(t, s)

	data, ok := got.body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "new-user", data["user_handle"])
}

func TestSignOut_UsesGivenToken(t *testing.T) {
	var got captured
	c := newServer(t, http.StatusNoContent, ``, &got)

	require.NoError(t, c.SignOut(context.Background(), "tok-1"))
	assert.Equal(t, "Bearer tok-1", got.header.Get("Authorization"))
	assert.Equal(t, "/auth/v1/logout", got.path)
}

func TestUpdatePassword_RequiresSession(t *testing.T) {
	c := newServer(t, http.StatusOK, `{}`, nil)
	c.SetTokenSource(staticTokens{err: common.ErrNotSignedIn})

	err := c.UpdatePassword(context.Background(), []byte("new-password"))
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, err, common.ErrNotSignedIn)
}

/*************
 * data store
 *************/

func TestFetchUserProfile(t *testing.T) {
	var got captured
	c := newServer(t, http.StatusOK, `[{"user_id":"u1","full_name":"Ada Lovelace","user_handle":"ada-lovelace","email":"ada@example.com"}]`, &got)

	p, err := c.FetchUserProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", p.FullName)
	assert.Equal(t, "/rest/v1/users", got.path)
	assert.Contains(t, got.query, "user_id=eq.u1")
	assert.Equal(t, "Bearer user-token", got.header.Get("Authorization"))
}

func TestFetchUserProfile_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"no rows", `[]`, ErrNotFound},
		{"two rows", `[{"user_id":"u1","user_handle":"a"},{"user_id":"u1","user_handle":"b"}]`, ErrMalformedResponse},
		{"other user", `[{"user_id":"u2","user_handle":"bob"}]`, ErrMalformedResponse},
		{"missing handle", `[{"user_id":"u1"}]`, ErrMalformedResponse},
		{"not an array", `{"user_id":"u1"}`, ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newServer(t, http.StatusOK, tt.body, nil)
			_, err := c.FetchUserProfile(context.Background(), "u1")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFetchBalance(t *testing.T) {
	c := newServer(t, http.StatusOK, `[{"user_id":"u1","balance":120}]`, nil)

	b, err := c.FetchBalance(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, b.Balance.Equal(decimal.NewFromInt(120)))
}

func TestFetchBalance_NegativeIsMalformed(t *testing.T) {
	c := newServer(t, http.StatusOK, `[{"user_id":"u1","balance":-3}]`, nil)

	_, err := c.FetchBalance(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestFetchBalance_MissingIsMalformed(t *testing.T) {
	for _, body := range []string{
		`[{"user_id":"u1"}]`,
		`[{"user_id":"u1","balance":null}]`,
	} {
		c := newServer(t, http.StatusOK, body, nil)

		b, err := c.FetchBalance(context.Background(), "u1")
		assert.ErrorIs(t, err, ErrMalformedResponse, body)
		assert.Nil(t, b, body)
	}
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusTooManyRequests, ErrUnavailable},
		{http.StatusBadGateway, ErrUnavailable},
	}
	for _, tt := range tests {
		c := newServer(t, tt.status, `{"message":"nope"}`, nil)
		_, err := c.FetchBalance(context.Background(), "u1")
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
		assert.ErrorIs(t, err, ErrRemote)
	}
}

func TestNetworkFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewHTTPClient(url, "k")
	require.NoError(t, err)
	c.SetTokenSource(staticTokens{token: "t"})

	_, err = c.FetchBalance(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestListTransactions(t *testing.T) {
	var got captured
	c := newServer(t, http.StatusOK, `[{"id":"t1","sender_id":"u1","recipient_id":"u2","amount":"5","memo":"lunch"}]`, &got)

	txs, err := c.ListTransactions(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.KindTransfer, txs[0].Kind)
	assert.Contains(t, got.query, "limit=20")
	assert.Contains(t, got.query, "order=created_at.desc")

	q, err := url.ParseQuery(got.query)
	require.NoError(t, err)
	assert.Equal(t, `(sender_id.eq."u1",recipient_id.eq."u1")`, q.Get("or"))
}

func TestListTransactions_QuotesUserID(t *testing.T) {
	var got captured
	c := newServer(t, http.StatusOK, `[]`, &got)

	_, err := c.ListTransactions(context.Background(), `u1,recipient_id.neq."x"`, 5)
	require.NoError(t, err)

	q, err := url.ParseQuery(got.query)
	require.NoError(t, err)
	assert.Equal(t, `(sender_id.eq."u1,recipient_id.neq.\"x\"",recipient_id.eq."u1,recipient_id.neq.\"x\"")`, q.Get("or"))
}

/*************
 * functions
 *************/

func TestLookupRecipients(t *testing.T) {
	var got captured
	c := newServer(t, http.StatusOK, `{"users":[{"user_id":"u2","user_handle":"ada-l","full_name":"Ada L"},{"user_id":"u3","user_handle":"ada-b"}]}`, &got)

	users, err := c.LookupRecipients(context.Background(), "ada")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "/functions/v1/lookup-user", got.path)
	assert.Equal(t, "ada", got.body["search_text"])
}

func TestLookupRecipients_RejectsMalformedShapes(t *testing.T) {
	for _, body := range []string{`{}`, `{"users":[{"user_handle":"x"}]}`, `[]`} {
		c := newServer(t, http.StatusOK, body, nil)
		_, err := c.LookupRecipients(context.Background(), "x")
		assert.ErrorIs(t, err, ErrMalformedResponse, body)
	}
}

func TestSubmitTransfer(t *testing.T) {
	var got captured
	c := newServer(t, http.StatusOK, `{"success":true,"transaction_id":"t1"}`, &got)

	res, err := c.SubmitTransfer(context.Background(), models.TransferRequest{
		SenderID: "u1", RecipientID: "u2", Amount: decimal.NewFromInt(50), Memo: "thanks", IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", res.TransactionID)
	assert.Equal(t, "key-1", got.header.Get("Idempotency-Key"))
	assert.Equal(t, "u2", got.body["recipient_id"])
	assert.Equal(t, "50", got.body["amount"])
	_, leaked := got.body["IdempotencyKey"]
	assert.False(t, leaked)
}

func TestSubmitTransfer_RejectedByServer(t *testing.T) {
	c := newServer(t, http.StatusOK, `{"success":false,"message":"insufficient funds"}`, nil)

	_, err := c.SubmitTransfer(context.Background(), models.TransferRequest{SenderID: "u1", RecipientID: "u2", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrTransferRejected)
}

func TestSubmitTransfer_NotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(srv.URL, "k")
	require.NoError(t, err)
	c.SetTokenSource(staticTokens{token: "t"})

	_, err = c.SubmitTransfer(context.Background(), models.TransferRequest{SenderID: "u1", RecipientID: "u2", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.EqualValues(t, 1, calls.Load())
}

func TestGetPurchaseQuote(t *testing.T) {
	c := newServer(t, http.StatusOK, `{"price_per_coin":"0.10","currency":"USD","minimum_purchase":50,"last_updated":"2026-10-01T00:00:00Z"}`, nil)

	q, err := c.GetPurchaseQuote(context.Background(), "stripe")
	require.NoError(t, err)
	assert.Equal(t, int64(50), q.MinimumPurchase)
	assert.Equal(t, "0.1", q.PricePerCoin.String())
}

func TestGetPurchaseQuote_Malformed(t *testing.T) {
	for _, body := range []string{
		`{"price_per_coin":0,"currency":"USD","minimum_purchase":1}`,
		`{"price_per_coin":1,"currency":"","minimum_purchase":1}`,
		`{"price_per_coin":1,"currency":"USD","minimum_purchase":0}`,
	} {
		c := newServer(t, http.StatusOK, body, nil)
		_, err := c.GetPurchaseQuote(context.Background(), "stripe")
		assert.ErrorIs(t, err, ErrMalformedResponse, body)
	}
}

func TestPaymentIntentLifecycle(t *testing.T) {
	var got captured
	c := newServer(t, http.StatusOK, `{"payment_intent_id":"pi_1","client_secret":"pi_1_secret","amount":"5","currency":"usd"}`, &got)

	pi, err := c.CreatePaymentIntent(context.Background(), "u1", "ada@example.com", 50, "idem")
	require.NoError(t, err)
	assert.Equal(t, "pi_1", pi.ID)
	assert.Equal(t, int64(50), pi.CoinCount)
	assert.Equal(t, "idem", got.header.Get("Idempotency-Key"))

	c = newServer(t, http.StatusOK, `{"success":false,"message":"payment pending"}`, nil)
	_, err = c.ValidatePayment(context.Background(), "u1", "pi_1")
	assert.ErrorIs(t, err, ErrPaymentNotVerified)

	c = newServer(t, http.StatusOK, `{"success":true,"coins_credited":50}`, nil)
	v, err := c.ValidatePayment(context.Background(), "u1", "pi_1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), v.CoinsCredited)

	c = newServer(t, http.StatusOK, ``, &got)
	require.NoError(t, c.CancelPaymentIntent(context.Background(), "pi_1"))
	assert.Equal(t, "/functions/v1/cancel-payment-intent", got.path)
}

func TestEmptyBodyWhenPayloadExpected(t *testing.T) {
	c := newServer(t, http.StatusOK, ` `, nil)
	_, err := c.GetPurchaseQuote(context.Background(), "stripe")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestRateLimitHonorsContext(t *testing.T) {
	c := newServer(t, http.StatusOK, `{"users":[]}`, nil)
	WithRateLimit(0.001, 1)(c)

	_, err := c.LookupRecipients(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.LookupRecipients(ctx, "b")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "rate") || errors.Is(err, context.DeadlineExceeded))
}
