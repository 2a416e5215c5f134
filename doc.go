// Package auth is the identity core of the storefront API: password and
// Google sign in, role scoped JWT issuance, a per request role guard, and
// OTP based password recovery.
//
// Tokens:
//   - Every role signs with its own secret (RoleSecrets). Verification picks
//     the secret from the role the caller expects, never from the unverified
//     token, so a leaked user secret can not mint admin tokens.
//   - Access, refresh and reset tokens share the format and differ by the
//     purpose claim.
//
// Recovery:
//   - RecoveryService.RequestCode answers the same way for known and unknown
//     emails.
//   - VerifyCode clears the code and stores the reset ticket in one
//     conditional update; ResetPassword consumes the stored ticket the same
//     way, so a superseded ticket never works.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the flows. Sinks
//     run best-effort (errors are logged) so you can forward to a database or
//     queue without blocking authentication.
package auth
