// Package auth authenticates users with a password grant and authorizes
// requests with short lived HS256 bearer tokens.
//
// The pieces compose bottom-up:
//   - Hasher creates and checks password digests. New digests use argon2id;
//     bcrypt digests from older systems still verify.
//   - UserDirectory is the read-only store of accounts. Backends live under
//     directory/ (memory, SQL via bun, Redis and bbolt).
//   - Authenticator checks an identifier and secret against the directory.
//     Unknown identifiers and wrong secrets fail the same way and take the
//     same time.
//   - TokenService mints and verifies signed tokens. Verification does no I/O.
//   - Resolver verifies a token and reloads its subject so disabled or
//     deleted accounts stop working without a revocation list.
//
// Service wires all of them from a Config. The httpauth package exposes it
// over HTTP as an OAuth2 password grant token endpoint plus a bearer
// middleware.
//
// Activity sinks:
//   - ActivitySink receives login, resolve and directory events. Sinks run
//     best-effort (errors are logged) so forwarding to an error tracker never
//     blocks authentication.
//
// Claims decoration:
//   - ClaimsDecorator is invoked before tokens are signed. Decorators may add
//     metadata while protected claims (sub, iss, aud, exp, scopes) remain
//     immutable.
package auth
