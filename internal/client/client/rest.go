package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dmitrijs2005/sirchcoins/internal/client/models"
)

// quoteFilter makes v a single PostgREST filter value, so commas, dots and
// parentheses in it cannot change the filter.
func quoteFilter(v string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) + `"`
}

func eq(v string) string {
	return "eq." + v
}

// FetchUserProfile loads the profile row of userID.
func (c *HTTPClient) FetchUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var rows []models.UserProfile
	err := c.do(ctx, request{
		method:        http.MethodGet,
		path:          "/rest/v1/users",
		query:         url.Values{"user_id": {eq(userID)}, "select": {"*"}},
		authenticated: true,
	}, &rows)
	if err != nil {
		return nil, err
	}
	return c.singleProfile(rows, userID)
}

// UpdatePrivacy writes the privacy flags of userID and returns the new row.
func (c *HTTPClient) UpdatePrivacy(ctx context.Context, userID string, settings models.PrivacySettings) (*models.UserProfile, error) {
	var rows []models.UserProfile
	err := c.do(ctx, request{
		method:        http.MethodPatch,
		path:          "/rest/v1/users",
		query:         url.Values{"user_id": {eq(userID)}},
		body:          settings,
		authenticated: true,
		headers:       map[string]string{"Prefer": "return=representation"},
	}, &rows)
	if err != nil {
		return nil, err
	}
	return c.singleProfile(rows, userID)
}

func (c *HTTPClient) singleProfile(rows []models.UserProfile, userID string) (*models.UserProfile, error) {
	switch len(rows) {
	case 0:
		return nil, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	case 1:
	default:
		return nil, malformed("%d profile rows for one user", len(rows))
	}

	p := rows[0]
	if err := c.validator.Validate(p); err != nil {
		return nil, malformed("profile: %v", err)
	}
	if p.UserID != userID {
		return nil, malformed("profile for %q returned for %q", p.UserID, userID)
	}
	return &p, nil
}

// balanceRow keeps a missing or null balance apart from zero.
type balanceRow struct {
	UserID  string           `json:"user_id"`
	Balance *decimal.Decimal `json:"balance"`
}

// FetchBalance loads the coin balance of userID.
func (c *HTTPClient) FetchBalance(ctx context.Context, userID string) (*models.Balance, error) {
	var rows []balanceRow
	err := c.do(ctx, request{
		method:        http.MethodGet,
		path:          "/rest/v1/balances",
		query:         url.Values{"user_id": {eq(userID)}, "select": {"user_id,balance"}},
		authenticated: true,
	}, &rows)
	if err != nil {
		return nil, err
	}

	switch len(rows) {
	case 0:
		return nil, fmt.Errorf("balance %s: %w", userID, ErrNotFound)
	case 1:
	default:
		return nil, malformed("%d balance rows for one user", len(rows))
	}

	row := rows[0]
	if row.UserID != "" && row.UserID != userID {
		return nil, malformed("balance for %q returned for %q", row.UserID, userID)
	}
	if row.Balance == nil {
		return nil, malformed("balance missing")
	}
	if row.Balance.IsNegative() {
		return nil, malformed("negative balance %s", row.Balance)
	}
	return &models.Balance{UserID: userID, Balance: *row.Balance}, nil
}

// ListTransactions returns the newest transactions touching userID.
func (c *HTTPClient) ListTransactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []models.Transaction
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/rest/v1/transactions",
		query: url.Values{
			"or":     {fmt.Sprintf("(sender_id.eq.%[1]s,recipient_id.eq.%[1]s)", quoteFilter(userID))},
			"order":  {"created_at.desc"},
			"limit":  {strconv.Itoa(limit)},
			"select": {"*"},
		},
		authenticated: true,
	}, &rows)
	if err != nil {
		return nil, err
	}

	for i := range rows {
		if err := c.validator.Validate(rows[i]); err != nil {
			return nil, malformed("transaction %d: %v", i, err)
		}
		if rows[i].Kind == "" {
			rows[i].Kind = models.KindTransfer
		}
	}
	return rows, nil
}
