// Package auth is the authentication core of the storefront: password
// hashing, session tokens, cookie sessions, role checks and the account
// lifecycle.
//
// Accounts:
//   - AccountService registers, logs in, changes passwords and updates
//     profiles. The first account ever created becomes admin. The claim goes
//     through a BootstrapClaimer marker so concurrent registrations on an
//     empty store produce exactly one admin.
//   - Stores implement AccountStore. MemoryAccounts lives here, the Mongo
//     and SQL stores live in the repository package.
//
// Sessions:
//   - TokenService signs HS256 tokens carrying the public TokenUser.
//     SessionCarrier writes and clears the HttpOnly "token" cookie.
//   - RouteAuthenticator guards fiber routes through middleware/jwtware and
//     stores the validated claims in the fiber locals and the user context.
//
// Activity sinks:
//   - ActivitySink receives an ActivityEvent for every lifecycle action.
//     Sinks run best effort; errors are logged and never fail a request.
package auth
