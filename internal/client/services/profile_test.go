package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/sirchcoins/internal/client/client"
	"github.com/dmitrijs2005/sirchcoins/internal/client/models"
	"github.com/dmitrijs2005/sirchcoins/internal/common"
	"github.com/dmitrijs2005/sirchcoins/internal/logging"
)

func signedIn(t *testing.T, fc *fakeClient) (*authService, *eventRecorder) {
	t.Helper()
	fc.SignInFn = func(string, []byte) (*models.Session, error) { return testSession("u1", time.Hour), nil }
	a, rec := newAuth(t, fc)
	_, err := a.SignIn(context.Background(), "u1@example.com", []byte("password1"))
	require.NoError(t, err)
	return a, rec
}

func TestUpdatePrivacy_EmitsUserUpdated(t *testing.T) {
	fc := &fakeClient{UpdatePrivacyFn: func(userID string, s models.PrivacySettings) (*models.UserProfile, error) {
		assert.Equal(t, "u1", userID)
		assert.True(t, s.IsEmailPrivate)
		return &models.UserProfile{UserID: userID, UserHandle: "ada", IsEmailPrivate: true}, nil
	}}
	a, rec := signedIn(t, fc)
	p := NewProfileService(fc, a, logging.NewNop())

	prof, err := p.UpdatePrivacy(context.Background(), models.PrivacySettings{IsEmailPrivate: true})
	require.NoError(t, err)
	assert.True(t, prof.IsEmailPrivate)
	assert.Equal(t, []models.AuthEventType{models.EventSignedIn, models.EventUserUpdated}, rec.types())
}

func TestUpdatePrivacy_NotSignedIn(t *testing.T) {
	a, _ := newAuth(t, &fakeClient{})
	_, err := NewProfileService(&fakeClient{}, a, logging.NewNop()).UpdatePrivacy(context.Background(), models.PrivacySettings{})
	require.ErrorIs(t, err, common.ErrNotSignedIn)
}

func TestDeleteAccount_SignsOut(t *testing.T) {
	fc := &fakeClient{}
	a, rec := signedIn(t, fc)
	p := NewProfileService(fc, a, logging.NewNop())

	require.NoError(t, p.DeleteAccount(context.Background()))
	assert.Nil(t, a.Session())
	assert.Equal(t, []models.AuthEventType{models.EventSignedIn, models.EventSignedOut}, rec.types())
}

func TestDeleteAccount_FailureKeepsSession(t *testing.T) {
	fc := &fakeClient{DeleteErr: client.ErrUnavailable}
	a, _ := signedIn(t, fc)
	p := NewProfileService(fc, a, logging.NewNop())

	require.ErrorIs(t, p.DeleteAccount(context.Background()), client.ErrUnavailable)
	assert.NotNil(t, a.Session())
}

func TestInvite(t *testing.T) {
	fc := &fakeClient{}
	a, _ := signedIn(t, fc)
	p := NewProfileService(fc, a, logging.NewNop())

	require.Error(t, p.Invite(context.Background(), "nope"))
	assert.Zero(t, fc.count("InviteUser"))

	require.NoError(t, p.Invite(context.Background(), " Friend@Example.com"))
	assert.Equal(t, [2]string{"friend@example.com", "u1"}, fc.LastInvite)
}
