// Package auth provides bearer-token authentication for the pipeline host.
//
// The server side validates HMAC-signed JWTs with JWTAuthenticator and guards
// handlers with Middleware. The client side mints tokens with TokenIssuer,
// which satisfies the token source expected by outbound HTTP operations.
package auth
