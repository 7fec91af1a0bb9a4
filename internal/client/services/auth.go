// Package services contains application services for the wallet client.
// This file defines the authentication service: sign-in and sign-up against
// the identity provider, session restore and refresh, password recovery and
// the auth state change stream the rest of the client listens to.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/sirchcoins/internal/client/client"
	"github.com/dmitrijs2005/sirchcoins/internal/client/models"
	"github.com/dmitrijs2005/sirchcoins/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/sirchcoins/internal/common"
	"github.com/dmitrijs2005/sirchcoins/internal/dbx"
	"github.com/dmitrijs2005/sirchcoins/internal/logging"
	"github.com/dmitrijs2005/sirchcoins/internal/validation"
)

// RefreshMargin is how close to expiry an access token may get before it is
// exchanged ahead of the next call.
const RefreshMargin = 30 * time.Second

// MinPasswordLength applies to sign-up and password change alike.
const MinPasswordLength = 8

var ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)

// AuthService defines authentication operations for the CLI.
//
// Every state change is announced to the listeners registered with
// OnAuthStateChange, in the order it happened. AccessToken makes the service a
// client.TokenSource.
type AuthService interface {
	SignIn(ctx context.Context, email string, password []byte) (*models.Session, error)
	SignUp(ctx context.Context, form models.SignUpForm) (*models.Session, error)
	SignOut(ctx context.Context) error
	Restore(ctx context.Context) (*models.Session, error)
	RecoverPassword(ctx context.Context, email string) error
	VerifyRecovery(ctx context.Context, email, code string) (*models.Session, error)
	UpdatePassword(ctx context.Context, password []byte) error
	NotifyUserUpdated(ctx context.Context)

	Session() *models.Session
	AccessToken(ctx context.Context) (string, error)
	OnAuthStateChange(fn func(models.AuthEvent)) (unsubscribe func())
}

type listener struct {
	id int
	fn func(models.AuthEvent)
}

type authService struct {
	client    client.Client
	db        *sql.DB
	logger    logging.Logger
	validator *validation.Validator
	now       func() time.Time

	mu        sync.RWMutex
	session   *models.Session
	listeners []listener
	nextID    int

	// serialises refreshes and event emission
	refreshMu sync.Mutex
	emitMu    sync.Mutex
}

// NewAuthService constructs an AuthService bound to the given API client and
// the local storage database holding the refresh token.
func NewAuthService(c client.Client, db *sql.DB, logger logging.Logger) AuthService {
	return &authService{
		client:    c,
		db:        db,
		logger:    logger.With("component", "auth"),
		validator: validation.Default,
		now:       time.Now,
	}
}

func (a *authService) getMetadataRepo() metadata.Repository {
	return metadata.NewSQLiteRepository(a.db)
}

// OnAuthStateChange registers fn and returns the function releasing it.
func (a *authService) OnAuthStateChange(fn func(models.AuthEvent)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.nextID++
	id := a.nextID
	a.listeners = append(a.listeners, listener{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			for i, l := range a.listeners {
				if l.id == id {
					a.listeners = append(a.listeners[:i], a.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (a *authService) Session() *models.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session.Clone()
}

// adopt stores s as the current session and announces ev.
func (a *authService) adopt(ctx context.Context, ev models.AuthEventType, s *models.Session) {
	a.emitMu.Lock()
	defer a.emitMu.Unlock()

	a.mu.Lock()
	a.session = s.Clone()
	ls := make([]listener, len(a.listeners))
	copy(ls, a.listeners)
	a.mu.Unlock()

	a.logger.Debug(ctx, "auth state changed", "event", ev)
	for _, l := range ls {
		l.fn(models.AuthEvent{Type: ev, Session: s.Clone()})
	}
}

func (a *authService) saveTokens(ctx context.Context, s *models.Session) error {
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, metadata.KeyRefreshToken, []byte(s.RefreshToken)); err != nil {
			return err
		}
		return repo.Set(ctx, metadata.KeyLastEmail, []byte(s.Email))
	})
}

func (a *authService) forgetTokens(ctx context.Context) error {
	return a.getMetadataRepo().Delete(ctx, metadata.KeyRefreshToken)
}

// SignIn authenticates with e-mail and password. The password buffer is
// wiped whatever the outcome.
func (a *authService) SignIn(ctx context.Context, email string, password []byte) (*models.Session, error) {
	defer common.WipeByteArray(password)

	if err := a.validator.Var("email", email, "required,email"); err != nil {
		return nil, err
	}
	if len(password) == 0 {
		return nil, client.ErrInvalidCredentials
	}

	s, err := a.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign in error: %w", err)
	}
	if err := a.saveTokens(ctx, s); err != nil {
		a.logger.Warn(ctx, "session not persisted", "error", err)
	}
	a.adopt(ctx, models.EventSignedIn, s)
	return s.Clone(), nil
}

// SignUp validates the form and creates the account. It returns a nil
// session when the provider wants the e-mail confirmed first.
func (a *authService) SignUp(ctx context.Context, form models.SignUpForm) (*models.Session, error) {
	form.Email = common.NormalizeEmail(form.Email)
	form.UserHandle = common.NormalizeHandle(form.UserHandle)
	if err := a.validator.Validate(form); err != nil {
		return nil, err
	}

	s, err := a.client.SignUp(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("sign up error: %w", err)
	}
	if s == nil {
		return nil, nil
	}
	if err := a.saveTokens(ctx, s); err != nil {
		a.logger.Warn(ctx, "session not persisted", "error", err)
	}
	a.adopt(ctx, models.EventSignedIn, s)
	return s.Clone(), nil
}

// SignOut revokes the session at the provider when possible and always ends
// it locally.
func (a *authService) SignOut(ctx context.Context) error {
	if s := a.Session(); s != nil {
		if err := a.client.SignOut(ctx, s.AccessToken); err != nil {
			a.logger.Warn(ctx, "remote sign out failed", "error", err)
		}
	}
	err := a.forgetTokens(ctx)
	a.adopt(ctx, models.EventSignedOut, nil)
	if err != nil {
		return fmt.Errorf("forget session: %w", err)
	}
	return nil
}

// Restore exchanges the stored refresh token for a session and announces
// INITIAL_SESSION, with a nil session when there is nothing to restore.
func (a *authService) Restore(ctx context.Context) (*models.Session, error) {
	raw, err := a.getMetadataRepo().Get(ctx, metadata.KeyRefreshToken)
	if err != nil {
		a.adopt(ctx, models.EventInitialSession, nil)
		return nil, fmt.Errorf("read stored session: %w", err)
	}
	if len(raw) == 0 {
		a.adopt(ctx, models.EventInitialSession, nil)
		return nil, nil
	}

	s, err := a.client.RefreshSession(ctx, string(raw))
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) || errors.Is(err, client.ErrInvalidCredentials) {
			// the stored token is dead, drop it
			if ferr := a.forgetTokens(ctx); ferr != nil {
				a.logger.Warn(ctx, "stale session not removed", "error", ferr)
			}
			a.adopt(ctx, models.EventInitialSession, nil)
			return nil, nil
		}
		a.adopt(ctx, models.EventInitialSession, nil)
		return nil, fmt.Errorf("restore session: %w", err)
	}
	if err := a.saveTokens(ctx, s); err != nil {
		a.logger.Warn(ctx, "session not persisted", "error", err)
	}
	a.adopt(ctx, models.EventInitialSession, s)
	return s.Clone(), nil
}

func (a *authService) RecoverPassword(ctx context.Context, email string) error {
	email = common.NormalizeEmail(email)
	if err := a.validator.Var("email", email, "required,email"); err != nil {
		return err
	}
	if err := a.client.RecoverPassword(ctx, email); err != nil {
		return fmt.Errorf("recover password: %w", err)
	}
	return nil
}

// VerifyRecovery trades an e-mailed recovery code for a session and
// announces PASSWORD_RECOVERY.
func (a *authService) VerifyRecovery(ctx context.Context, email, code string) (*models.Session, error) {
	email = common.NormalizeEmail(email)
	if err := a.validator.Var("email", email, "required,email"); err != nil {
		return nil, err
	}
	if err := a.validator.Var("code", code, "required"); err != nil {
		return nil, err
	}

	s, err := a.client.VerifyRecovery(ctx, email, code)
	if err != nil {
		return nil, fmt.Errorf("verify recovery: %w", err)
	}
	if err := a.saveTokens(ctx, s); err != nil {
		a.logger.Warn(ctx, "session not persisted", "error", err)
	}
	a.adopt(ctx, models.EventPasswordRecovery, s)
	return s.Clone(), nil
}

// UpdatePassword changes the password of the signed-in user. The buffer is
// wiped afterwards.
func (a *authService) UpdatePassword(ctx context.Context, password []byte) error {
	defer common.WipeByteArray(password)

	s := a.Session()
	if s == nil {
		return common.ErrNotSignedIn
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if err := a.client.UpdatePassword(ctx, password); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	a.adopt(ctx, models.EventUserUpdated, a.Session())
	return nil
}

// NotifyUserUpdated announces USER_UPDATED for the current session, so that
// listeners re-resolve the profile.
func (a *authService) NotifyUserUpdated(ctx context.Context) {
	if s := a.Session(); s != nil {
		a.adopt(ctx, models.EventUserUpdated, s)
	}
}

// AccessToken returns a usable access token, refreshing it first when it is
// about to expire.
func (a *authService) AccessToken(ctx context.Context) (string, error) {
	s := a.Session()
	if s == nil {
		return "", common.ErrNotSignedIn
	}
	if !s.ExpiresWithin(a.now(), RefreshMargin) {
		return s.AccessToken, nil
	}

	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	// another caller may have refreshed while we waited
	s = a.Session()
	if s == nil {
		return "", common.ErrNotSignedIn
	}
	if !s.ExpiresWithin(a.now(), RefreshMargin) {
		return s.AccessToken, nil
	}
	if s.RefreshToken == "" {
		return "", common.ErrTokenExpired
	}

	fresh, err := a.client.RefreshSession(ctx, s.RefreshToken)
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) || errors.Is(err, client.ErrInvalidCredentials) {
			a.logger.Info(ctx, "session expired, signing out")
			if ferr := a.forgetTokens(ctx); ferr != nil {
				a.logger.Warn(ctx, "stale session not removed", "error", ferr)
			}
			a.adopt(ctx, models.EventSignedOut, nil)
			return "", common.ErrTokenExpired
		}
		return "", fmt.Errorf("refresh session: %w", err)
	}
	if err := a.saveTokens(ctx, fresh); err != nil {
		a.logger.Warn(ctx, "session not persisted", "error", err)
	}
	a.adopt(ctx, models.EventTokenRefreshed, fresh)
	return fresh.AccessToken, nil
}
