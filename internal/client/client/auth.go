package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/sirchcoins/internal/client/models"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
}

// accessClaims is the part of the identity provider's JWT the client reads.
type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

var nowFunc = time.Now

// ParseSession builds a Session from a token response. The access token is
// decoded without signature verification: the client only needs the subject,
// e-mail and expiry, and the backend verifies the token on every call.
func ParseSession(accessToken, refreshToken, tokenType string, expiresIn, expiresAt int64) (*models.Session, error) {
	if accessToken == "" {
		return nil, malformed("access token missing")
	}

	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return nil, malformed("access token: %v", err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, malformed("access token has no subject")
	}

	s := &models.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    tokenType,
		UserID:       claims.Subject,
		Email:        claims.Email,
	}
	switch {
	case claims.ExpiresAt != nil:
		s.ExpiresAt = claims.ExpiresAt.Time
	case expiresAt > 0:
		s.ExpiresAt = time.Unix(expiresAt, 0)
	case expiresIn > 0:
		s.ExpiresAt = nowFunc().Add(time.Duration(expiresIn) * time.Second)
	}
	return s, nil
}

func (t *tokenResponse) session() (*models.Session, error) {
	return ParseSession(t.AccessToken, t.RefreshToken, t.TokenType, t.ExpiresIn, t.ExpiresAt)
}

func (c *HTTPClient) tokenGrant(ctx context.Context, grant string, body any) (*models.Session, error) {
	var resp tokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {grant}},
		body:   body,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.session()
}

// SignInWithPassword exchanges e-mail and password for a session.
func (c *HTTPClient) SignInWithPassword(ctx context.Context, email string, password []byte) (*models.Session, error) {
	return c.tokenGrant(ctx, "password", map[string]string{
		"email":    email,
		"password": string(password),
	})
}

// RefreshSession exchanges a refresh token for a new session.
func (c *HTTPClient) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	return c.tokenGrant(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
}

type signUpResponse struct {
	tokenResponse
	ID string `json:"id"`
}

// SignUp creates the identity and its profile metadata. The returned session
// is nil when the provider requires e-mail confirmation first.
func (c *HTTPClient) SignUp(ctx context.Context, form models.SignUpForm) (*models.Session, error) {
	body := map[string]any{
		"email":    form.Email,
		"password": form.Password,
		"data": map[string]any{
			"full_name":        form.FullName,
			"user_handle":      form.UserHandle,
			"is_email_private": form.IsEmailPrivate,
			"is_name_private":  form.IsNamePrivate,
		},
	}

	var resp signUpResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/signup", body: body}, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		if resp.ID == "" {
			return nil, malformed("sign-up response has neither session nor user")
		}
		return nil, nil
	}
	return resp.session()
}

// SignOut revokes the session identified by accessToken.
func (c *HTTPClient) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/logout", bearer: accessToken}, nil)
}

// RecoverPassword asks the provider to e-mail a recovery code.
func (c *HTTPClient) RecoverPassword(ctx context.Context, email string) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/recover", body: map[string]string{"email": email}}, nil)
}

// VerifyRecovery exchanges the e-mailed recovery code for a session.
func (c *HTTPClient) VerifyRecovery(ctx context.Context, email, token string) (*models.Session, error) {
	var resp tokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/verify",
		body:   map[string]string{"type": "recovery", "email": email, "token": token},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.session()
}

// UpdatePassword changes the password of the signed-in user.
func (c *HTTPClient) UpdatePassword(ctx context.Context, password []byte) error {
	return c.do(ctx, request{
		method:        http.MethodPut,
		path:          "/auth/v1/user",
		body:          map[string]string{"password": string(password)},
		authenticated: true,
	}, nil)
}
