package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/sirchcoins/internal/client/client"
	"github.com/dmitrijs2005/sirchcoins/internal/client/models"
	"github.com/dmitrijs2005/sirchcoins/internal/common"
	"github.com/dmitrijs2005/sirchcoins/internal/logging"
	"github.com/dmitrijs2005/sirchcoins/internal/validation"
)

// ProfileService covers the account screens: privacy flags, account
// deletion and invitations.
type ProfileService interface {
	UpdatePrivacy(ctx context.Context, settings models.PrivacySettings) (*models.UserProfile, error)
	DeleteAccount(ctx context.Context) error
	Invite(ctx context.Context, email string) error
}

type profileService struct {
	client    client.Client
	auth      AuthService
	logger    logging.Logger
	validator *validation.Validator
}

func NewProfileService(c client.Client, auth AuthService, logger logging.Logger) ProfileService {
	return &profileService{
		client:    c,
		auth:      auth,
		logger:    logger.With("component", "profile"),
		validator: validation.Default,
	}
}

// UpdatePrivacy writes the flags and announces USER_UPDATED so that the
// profile is re-resolved.
func (p *profileService) UpdatePrivacy(ctx context.Context, settings models.PrivacySettings) (*models.UserProfile, error) {
	s := p.auth.Session()
	if s == nil {
		return nil, common.ErrNotSignedIn
	}
	prof, err := p.client.UpdatePrivacy(ctx, s.UserID, settings)
	if err != nil {
		return nil, fmt.Errorf("update privacy: %w", err)
	}
	p.auth.NotifyUserUpdated(ctx)
	return prof, nil
}

// DeleteAccount removes the account on the backend and ends the session.
func (p *profileService) DeleteAccount(ctx context.Context) error {
	s := p.auth.Session()
	if s == nil {
		return common.ErrNotSignedIn
	}
	if err := p.client.DeleteAccount(ctx, s.UserID); err != nil {
		p.logger.Error(ctx, "delete account failed", "user_id", s.UserID, "error", err)
		return fmt.Errorf("delete account: %w", err)
	}
	p.logger.Info(ctx, "account deleted", "user_id", s.UserID)
	return p.auth.SignOut(ctx)
}

func (p *profileService) Invite(ctx context.Context, email string) error {
	s := p.auth.Session()
	if s == nil {
		return common.ErrNotSignedIn
	}
	email = common.NormalizeEmail(email)
	if err := p.validator.Var("email", email, "required,email"); err != nil {
		return err
	}
	if err := p.client.InviteUser(ctx, email, s.UserID); err != nil {
		return fmt.Errorf("invite user: %w", err)
	}
	return nil
}
