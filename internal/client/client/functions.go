package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/sirchcoins/internal/client/models"
)

func fn(name string) string {
	return "/functions/v1/" + name
}

type lookupResponse struct {
	Users *[]models.RecipientCandidate `json:"users"`
}

// LookupRecipients fuzzy-matches users by name, e-mail or handle.
func (c *HTTPClient) LookupRecipients(ctx context.Context, searchText string) ([]models.RecipientCandidate, error) {
	var resp lookupResponse
	err := c.do(ctx, request{
		method:        http.MethodPost,
		path:          fn("lookup-user"),
		body:          map[string]string{"search_text": searchText},
		authenticated: true,
		function:      true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Users == nil {
		return nil, malformed("lookup response without users")
	}

	users := *resp.Users
	for i := range users {
		if err := c.validator.Validate(users[i]); err != nil {
			return nil, malformed("candidate %d: %v", i, err)
		}
	}
	return users, nil
}

// SubmitTransfer sends one transfer request. It is never retried here.
func (c *HTTPClient) SubmitTransfer(ctx context.Context, req models.TransferRequest) (*models.TransferResult, error) {
	var resp models.TransferResult
	err := c.do(ctx, request{
		method:         http.MethodPost,
		path:           fn("send-coins"),
		body:           req,
		authenticated:  true,
		function:       true,
		idempotencyKey: req.IdempotencyKey,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return &resp, fmt.Errorf("%w: %s", ErrTransferRejected, resp.Message)
	}
	return &resp, nil
}

// GetPurchaseQuote returns the current price per coin from provider.
func (c *HTTPClient) GetPurchaseQuote(ctx context.Context, provider string) (*models.Quote, error) {
	var q models.Quote
	err := c.do(ctx, request{
		method:        http.MethodPost,
		path:          fn("get-quote"),
		body:          map[string]string{"provider": provider},
		authenticated: true,
		function:      true,
	}, &q)
	if err != nil {
		return nil, err
	}
	if err := c.validator.Validate(q); err != nil {
		return nil, malformed("quote: %v", err)
	}
	if !q.PricePerCoin.IsPositive() {
		return nil, malformed("quote price %s", q.PricePerCoin)
	}
	return &q, nil
}

// CreatePaymentIntent opens a purchase of coinCount coins.
func (c *HTTPClient) CreatePaymentIntent(ctx context.Context, userID, email string, coinCount int64, idempotencyKey string) (*models.PaymentIntent, error) {
	var pi models.PaymentIntent
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   fn("create-payment-intent"),
		body: map[string]any{
			"user_id":    userID,
			"email":      email,
			"coin_count": coinCount,
		},
		authenticated:  true,
		function:       true,
		idempotencyKey: idempotencyKey,
	}, &pi)
	if err != nil {
		return nil, err
	}
	if err := c.validator.Validate(pi); err != nil {
		return nil, malformed("payment intent: %v", err)
	}
	if pi.CoinCount == 0 {
		pi.CoinCount = coinCount
	}
	return &pi, nil
}

// CancelPaymentIntent abandons a pending purchase.
func (c *HTTPClient) CancelPaymentIntent(ctx context.Context, paymentIntentID string) error {
	return c.do(ctx, request{
		method:        http.MethodPost,
		path:          fn("cancel-payment-intent"),
		body:          map[string]string{"payment_intent_id": paymentIntentID},
		authenticated: true,
		function:      true,
	}, nil)
}

// ValidatePayment asks the backend to confirm a completed purchase and
// credit the coins.
func (c *HTTPClient) ValidatePayment(ctx context.Context, userID, paymentIntentID string) (*models.PaymentValidation, error) {
	var v models.PaymentValidation
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   fn("validate-payment"),
		body: map[string]string{
			"user_id":           userID,
			"payment_intent_id": paymentIntentID,
		},
		authenticated: true,
		function:      true,
	}, &v)
	if err != nil {
		return nil, err
	}
	if !v.Success {
		return &v, fmt.Errorf("%w: %s", ErrPaymentNotVerified, v.Message)
	}
	return &v, nil
}

// DeleteAccount removes the user and all of their data server-side.
func (c *HTTPClient) DeleteAccount(ctx context.Context, userID string) error {
	return c.do(ctx, request{
		method:        http.MethodPost,
		path:          fn("delete-user"),
		body:          map[string]string{"user_id": userID},
		authenticated: true,
		function:      true,
	}, nil)
}

// InviteUser e-mails an invitation on behalf of inviterID.
func (c *HTTPClient) InviteUser(ctx context.Context, email, inviterID string) error {
	return c.do(ctx, request{
		method:        http.MethodPost,
		path:          fn("invite-user"),
		body:          map[string]string{"email": email, "inviter_id": inviterID},
		authenticated: true,
		function:      true,
	}, nil)
}
