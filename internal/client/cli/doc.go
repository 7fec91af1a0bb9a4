// Package cli provides the interactive Sirch Coins wallet client.
//
// It wires configuration, local storage, the backend client, the services and
// the account synchronizer, then runs a REPL on stdin. Typical flow: restore
// the previous session, log in if needed, and execute wallet commands.
//
// Key features:
//   - Register / Login / Logout, password recovery and change
//   - Balance, history and profile with privacy settings
//   - Send coins with recipient search and a confirmation step
//   - Buy coins at the current quote
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, runREPL and the transfer package for details.
package cli
