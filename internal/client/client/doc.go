// Package client talks to the wallet backend-as-a-service.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) covering
//     the identity provider (sign in/up/out, refresh, recovery), the data
//     store (profile, balance, history) and the function endpoints
//     (recipient lookup, transfer, quote, payment intents, account deletion).
//  2. A JSON/HTTPS implementation (see HTTPClient) that attaches the project
//     API key and the caller's access token, throttles function calls, and
//     decodes every payload into a typed schema that is validated before it
//     is returned.
//
// # Error Handling
//
// Transport and status failures map to sentinel errors that callers match
// with errors.Is: ErrUnavailable, ErrUnauthorized, ErrInvalidCredentials,
// ErrNotFound, ErrMalformedResponse, ErrRemote. Non-2xx responses are
// returned as *RemoteError, which carries the server message for logging.
//
// # Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. All operations accept
// context.Context and honor cancellation. Nothing is retried: a transfer
// reaches the server at most once per call.
package client
