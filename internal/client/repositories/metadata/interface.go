// Package metadata is the client's key/value storage: a persistent sqlite
// store (the "local" scope, survives restarts) and an in-memory store (the
// "session" scope, lives as long as the process). Both are wiped on sign-out.
package metadata

import (
	"context"
)

// Repository is a key/value store. Get returns (nil, nil) for a missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}

// Keys used by the client.
const (
	KeyAccessToken  = "session.access_token"
	KeyRefreshToken = "session.refresh_token"
	KeyLastEmail    = "ui.last_email"
	KeyLastSearch   = "ui.last_search"
)
