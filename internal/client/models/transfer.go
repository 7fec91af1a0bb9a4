package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecipientCandidate is one result of a recipient lookup.
type RecipientCandidate struct {
	UserID     string `json:"user_id" validate:"required"`
	UserHandle string `json:"user_handle" validate:"required"`
	FullName   string `json:"full_name"`
}

func (c RecipientCandidate) String() string {
	if c.FullName == "" {
		return "@" + c.UserHandle
	}
	return c.FullName + " (@" + c.UserHandle + ")"
}

// TransferRequest is sent once per confirmed transfer. IdempotencyKey is
// generated per confirmation and travels as a header, not in the body.
type TransferRequest struct {
	SenderID       string          `json:"sender_id"`
	RecipientID    string          `json:"recipient_id"`
	Amount         decimal.Decimal `json:"amount"`
	Memo           string          `json:"memo,omitempty"`
	IdempotencyKey string          `json:"-"`
}

// TransferResult is the server's verdict on a transfer.
type TransferResult struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id"`
}

// TransactionKind distinguishes history rows.
type TransactionKind string

const (
	KindTransfer TransactionKind = "transfer"
	KindPurchase TransactionKind = "purchase"
)

// Transaction is one row of the wallet history.
type Transaction struct {
	ID              string          `json:"id" validate:"required"`
	Kind            TransactionKind `json:"kind"`
	SenderID        string          `json:"sender_id"`
	RecipientID     string          `json:"recipient_id" validate:"required"`
	SenderHandle    string          `json:"sender_handle"`
	RecipientHandle string          `json:"recipient_handle"`
	Amount          decimal.Decimal `json:"amount"`
	Memo            string          `json:"memo"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Direction reports "in" or "out" relative to userID.
func (t Transaction) Direction(userID string) string {
	if t.RecipientID == userID && t.SenderID != userID {
		return "in"
	}
	return "out"
}
