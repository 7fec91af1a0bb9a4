// Package common contains shared constants and sentinel errors used across
// Sirch Coins client components.
package common

// Header names understood by the backend gateway.
const (
	APIKeyHeaderName         = "apikey"
	AuthorizationHeaderName  = "Authorization"
	IdempotencyKeyHeaderName = "Idempotency-Key"
	ClientInfoHeaderName     = "X-Client-Info"
)

// CoinUnit is the display name of the wallet currency.
const CoinUnit = "coins"
