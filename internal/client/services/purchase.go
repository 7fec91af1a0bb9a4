package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmitrijs2005/sirchcoins/internal/client/client"
	"github.com/dmitrijs2005/sirchcoins/internal/client/models"
	"github.com/dmitrijs2005/sirchcoins/internal/common"
	"github.com/dmitrijs2005/sirchcoins/internal/logging"
)

var ErrBelowMinimumPurchase = errors.New("amount is below the minimum purchase")

// SessionReader exposes the current session.
type SessionReader interface {
	Session() *models.Session
}

// QuoteSource yields purchase quotes, possibly from a cache.
type QuoteSource interface {
	Get(ctx context.Context) (*models.Quote, error)
	Refresh(ctx context.Context) (*models.Quote, error)
}

// BalanceRefresher re-reads the balance of the signed-in user.
type BalanceRefresher interface {
	RefreshUserBalance(ctx context.Context) (decimal.Decimal, error)
}

// PurchaseService drives the buy-coins handshake with the payment processor.
type PurchaseService interface {
	Quote(ctx context.Context) (*models.Quote, error)
	RefreshQuote(ctx context.Context) (*models.Quote, error)
	StartPurchase(ctx context.Context, coinCount int64) (*models.PaymentIntent, error)
	ConfirmPayment(ctx context.Context, paymentIntentID string) (*models.PaymentValidation, error)
	CancelPayment(ctx context.Context, paymentIntentID string) error
}

type purchaseService struct {
	client   client.Client
	sessions SessionReader
	quotes   QuoteSource
	balance  BalanceRefresher
	logger   logging.Logger
	newKey   func() string
}

func NewPurchaseService(c client.Client, sessions SessionReader, quotes QuoteSource, balance BalanceRefresher, logger logging.Logger) PurchaseService {
	return &purchaseService{
		client:   c,
		sessions: sessions,
		quotes:   quotes,
		balance:  balance,
		logger:   logger.With("component", "purchase"),
		newKey:   uuid.NewString,
	}
}

func (p *purchaseService) Quote(ctx context.Context) (*models.Quote, error) {
	return p.quotes.Get(ctx)
}

func (p *purchaseService) RefreshQuote(ctx context.Context) (*models.Quote, error) {
	return p.quotes.Refresh(ctx)
}

// StartPurchase checks coinCount against the current quote and creates a
// payment intent for it.
func (p *purchaseService) StartPurchase(ctx context.Context, coinCount int64) (*models.PaymentIntent, error) {
	s := p.sessions.Session()
	if s == nil {
		return nil, common.ErrNotSignedIn
	}

	q, err := p.quotes.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("get quote: %w", err)
	}
	if coinCount < q.MinimumPurchase {
		return nil, fmt.Errorf("%w: %d < %d", ErrBelowMinimumPurchase, coinCount, q.MinimumPurchase)
	}

	intent, err := p.client.CreatePaymentIntent(ctx, s.UserID, s.Email, coinCount, p.newKey())
	if err != nil {
		p.logger.Error(ctx, "create payment intent failed", "coins", coinCount, "error", err)
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	p.logger.Info(ctx, "payment intent created", "payment_intent_id", intent.ID, "coins", coinCount)
	return intent, nil
}

// ConfirmPayment asks the backend to validate a completed payment and, when
// coins were credited, refreshes the balance.
func (p *purchaseService) ConfirmPayment(ctx context.Context, paymentIntentID string) (*models.PaymentValidation, error) {
	s := p.sessions.Session()
	if s == nil {
		return nil, common.ErrNotSignedIn
	}
	if paymentIntentID == "" {
		return nil, fmt.Errorf("%w: payment intent id is required", client.ErrPaymentNotVerified)
	}

	v, err := p.client.ValidatePayment(ctx, s.UserID, paymentIntentID)
	if err != nil {
		p.logger.Error(ctx, "validate payment failed", "payment_intent_id", paymentIntentID, "error", err)
		return nil, fmt.Errorf("validate payment: %w", err)
	}
	if !v.Success {
		return v, fmt.Errorf("%w: %s", client.ErrPaymentNotVerified, v.Message)
	}
	if _, err := p.balance.RefreshUserBalance(ctx); err != nil {
		p.logger.Warn(ctx, "balance refresh after purchase failed", "error", err)
	}
	return v, nil
}

func (p *purchaseService) CancelPayment(ctx context.Context, paymentIntentID string) error {
	if paymentIntentID == "" {
		return nil
	}
	if err := p.client.CancelPaymentIntent(ctx, paymentIntentID); err != nil {
		return fmt.Errorf("cancel payment intent: %w", err)
	}
	return nil
}
