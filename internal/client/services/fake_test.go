package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/sirchcoins/internal/client/models"
	"github.com/dmitrijs2005/sirchcoins/internal/client/repositories/metadata"

	_ "modernc.org/sqlite"
)

// ---- helpers ----

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := metadata.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func getMeta(t *testing.T, db *sql.DB, k string) []byte {
	t.Helper()
	v, err := metadata.NewSQLiteRepository(db).Get(context.Background(), k)
	require.NoError(t, err)
	return v
}

func testSession(id string, expiresIn time.Duration) *models.Session {
	return &models.Session{
		AccessToken:  "access-" + id,
		RefreshToken: "refresh-" + id,
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(expiresIn),
		UserID:       id,
		Email:        id + "@example.com",
	}
}

// eventRecorder collects auth events in delivery order.
type eventRecorder struct {
	mu     sync.Mutex
	events []models.AuthEvent
}

func (r *eventRecorder) record(ev models.AuthEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) types() []models.AuthEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.AuthEventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

// ---- fake client ----

// fakeClient implements client.Client; unset funcs return zero values.
type fakeClient struct {
	mu    sync.Mutex
	calls map[string]int

	SignInFn        func(email string, password []byte) (*models.Session, error)
	SignUpFn        func(form models.SignUpForm) (*models.Session, error)
	RefreshFn       func(refreshToken string) (*models.Session, error)
	SignOutErr      error
	RecoverErr      error
	VerifyFn        func(email, token string) (*models.Session, error)
	UpdatePassErr   error
	UpdatePrivacyFn func(userID string, s models.PrivacySettings) (*models.UserProfile, error)
	ListTxFn        func(userID string, limit int) ([]models.Transaction, error)
	CreateIntentFn  func(userID, email string, coins int64, key string) (*models.PaymentIntent, error)
	CancelIntentErr error
	ValidateFn      func(userID, id string) (*models.PaymentValidation, error)
	DeleteErr       error
	InviteErr       error

	LastPassword []byte
	LastInvite   [2]string
}

func (f *fakeClient) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
}

func (f *fakeClient) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) SignInWithPassword(_ context.Context, email string, password []byte) (*models.Session, error) {
	f.hit("SignIn")
	f.LastPassword = append([]byte(nil), password...)
	return f.SignInFn(email, password)
}

func (f *fakeClient) SignUp(_ context.Context, form models.SignUpForm) (*models.Session, error) {
	f.hit("SignUp")
	return f.SignUpFn(form)
}

func (f *fakeClient) RefreshSession(_ context.Context, refreshToken string) (*models.Session, error) {
	f.hit("Refresh")
	return f.RefreshFn(refreshToken)
}

func (f *fakeClient) SignOut(context.Context, string) error {
	f.hit("SignOut")
	return f.SignOutErr
}

func (f *fakeClient) RecoverPassword(context.Context, string) error {
	f.hit("Recover")
	return f.RecoverErr
}

func (f *fakeClient) VerifyRecovery(_ context.Context, email, token string) (*models.Session, error) {
	f.hit("Verify")
	return f.VerifyFn(email, token)
}

func (f *fakeClient) UpdatePassword(_ context.Context, password []byte) error {
	f.hit("UpdatePassword")
	f.LastPassword = append([]byte(nil), password...)
	return f.UpdatePassErr
}

func (f *fakeClient) FetchUserProfile(context.Context, string) (*models.UserProfile, error) {
	f.hit("FetchUserProfile")
	return nil, nil
}

func (f *fakeClient) UpdatePrivacy(_ context.Context, userID string, s models.PrivacySettings) (*models.UserProfile, error) {
	f.hit("UpdatePrivacy")
	return f.UpdatePrivacyFn(userID, s)
}

func (f *fakeClient) FetchBalance(context.Context, string) (*models.Balance, error) {
	f.hit("FetchBalance")
	return &models.Balance{Balance: decimal.Zero}, nil
}

func (f *fakeClient) ListTransactions(_ context.Context, userID string, limit int) ([]models.Transaction, error) {
	f.hit("ListTransactions")
	return f.ListTxFn(userID, limit)
}

func (f *fakeClient) LookupRecipients(context.Context, string) ([]models.RecipientCandidate, error) {
	f.hit("LookupRecipients")
	return nil, nil
}

func (f *fakeClient) SubmitTransfer(context.Context, models.TransferRequest) (*models.TransferResult, error) {
	f.hit("SubmitTransfer")
	return nil, nil
}

func (f *fakeClient) GetPurchaseQuote(context.Context, string) (*models.Quote, error) {
	f.hit("GetPurchaseQuote")
	return nil, nil
}

func (f *fakeClient) CreatePaymentIntent(_ context.Context, userID, email string, coins int64, key string) (*models.PaymentIntent, error) {
	f.hit("CreatePaymentIntent")
	return f.CreateIntentFn(userID, email, coins, key)
}

func (f *fakeClient) CancelPaymentIntent(context.Context, string) error {
	f.hit("CancelPaymentIntent")
	return f.CancelIntentErr
}

func (f *fakeClient) ValidatePayment(_ context.Context, userID, id string) (*models.PaymentValidation, error) {
	f.hit("ValidatePayment")
	return f.ValidateFn(userID, id)
}

func (f *fakeClient) DeleteAccount(context.Context, string) error {
	f.hit("DeleteAccount")
	return f.DeleteErr
}

func (f *fakeClient) InviteUser(_ context.Context, email, inviterID string) error {
	f.hit("InviteUser")
	f.LastInvite = [2]string{email, inviterID}
	return f.InviteErr
}
