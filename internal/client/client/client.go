package client

import (
	"context"

	"github.com/dmitrijs2005/sirchcoins/internal/client/models"
)

// TokenSource yields the access token for authenticated calls. It returns
// common.ErrNotSignedIn when there is no session.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

type Client interface {
	Close() error

	SignInWithPassword(ctx context.Context, email string, password []byte) (*models.Session, error)
	SignUp(ctx context.Context, form models.SignUpForm) (*models.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	RecoverPassword(ctx context.Context, email string) error
	VerifyRecovery(ctx context.Context, email, token string) (*models.Session, error)
	UpdatePassword(ctx context.Context, password []byte) error

	FetchUserProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	UpdatePrivacy(ctx context.Context, userID string, settings models.PrivacySettings) (*models.UserProfile, error)
	FetchBalance(ctx context.Context, userID string) (*models.Balance, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error)

	LookupRecipients(ctx context.Context, searchText string) ([]models.RecipientCandidate, error)
	SubmitTransfer(ctx context.Context, req models.TransferRequest) (*models.TransferResult, error)
	GetPurchaseQuote(ctx context.Context, provider string) (*models.Quote, error)
	CreatePaymentIntent(ctx context.Context, userID, email string, coinCount int64, idempotencyKey string) (*models.PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, paymentIntentID string) error
	ValidatePayment(ctx context.Context, userID, paymentIntentID string) (*models.PaymentValidation, error)
	DeleteAccount(ctx context.Context, userID string) error
	InviteUser(ctx context.Context, email, inviterID string) error
}
