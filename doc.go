// Package accounts implements the credential lifecycle for end users: password
// hashing, JWT issuance backed by an externally stored signing key, one-time
// email verification codes, and one-time password reset tokens.
//
// Secret handling:
//   - SecretCache is an explicitly constructed, injectable TTL cache over a
//     SecretSource. Concurrent requests for the same secret collapse into a
//     single origin fetch; failed fetches are never cached. Construct one per
//     process and share it between the token service and your DB bootstrap.
//
// Flows:
//   - VerificationFlow drives the Unverified -> CodeIssued -> Verified state
//     machine. Codes are six digits, expire after 24h, and are cleared
//     atomically with the ValidatedAt timestamp on success.
//   - PasswordResetFlow issues opaque one-hour reset tokens and swaps the
//     password hash atomically with token invalidation.
//
// The Accounts service composes both flows with the token service and exposes
// the operations a transport layer (HTTP, GraphQL) needs: SignUp, SignIn,
// SendVerificationEmail, VerifyEmail, RequestPasswordReset, ResetPassword.
// Persistence lives behind the UserStore interface; repo_users.go ships a
// Bun-backed reference implementation.
package accounts
