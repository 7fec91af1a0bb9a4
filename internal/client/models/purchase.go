package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the current price and minimum for buying coins.
type Quote struct {
	PricePerCoin    decimal.Decimal `json:"price_per_coin"`
	Currency        string          `json:"currency" validate:"required,len=3"`
	MinimumPurchase int64           `json:"minimum_purchase" validate:"gte=1"`
	LastUpdated     time.Time       `json:"last_updated"`
}

// Total returns the price of coins at this quote.
func (q *Quote) Total(coins int64) decimal.Decimal {
	return q.PricePerCoin.Mul(decimal.NewFromInt(coins))
}

// PaymentIntent is the processor handle of a pending purchase.
type PaymentIntent struct {
	ID           string          `json:"payment_intent_id" validate:"required"`
	ClientSecret string          `json:"client_secret" validate:"required"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	CoinCount    int64           `json:"coin_count"`
}

// PaymentValidation is the result of confirming a completed purchase.
type PaymentValidation struct {
	Success       bool   `json:"success"`
	CoinsCredited int64  `json:"coins_credited"`
	Message       string `json:"message"`
}
