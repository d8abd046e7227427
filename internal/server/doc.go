// Package server runs the temporary localhost HTTP listener for the OAuth2
// authorization-code flow.
//
// # Callback Handler
//
// [CallbackHandler] validates the state parameter (CSRF protection), hands the
// request to a [TokenExchanger] for the code-for-token exchange, and delivers
// the result through a channel. It only processes one callback to prevent
// replay attacks.
//
// # Usage
//
// When the user runs an authentication command, [WaitForCallback] starts a
// server on the host and port of the configured redirect URI, serves exactly
// one callback, and shuts down after the token arrives or the context ends.
package server
