// Package auth implements the authentication and session lifecycle core for
// the saddle-fitting platform: credential verification with time-boxed
// account lockout, access/refresh token pairs bound to rotating session
// hashes, purpose-scoped tokens (email confirmation, password reset), and
// on-demand role resolution.
//
// Sessions and replay protection:
//   - Every login creates a Session row carrying an opaque hash. The refresh
//     token embeds that hash; refreshing compares it against the live value
//     and rotates it in a single conditional UPDATE. A refresh token issued
//     before the rotation is rejected, which makes each refresh token
//     single-use.
//
// Role resolution:
//   - Accounts never store a role column. RoleResolver derives the effective
//     role from the account's userType/isSupervisor attributes plus fitter
//     roster membership on every login and who-am-I call, so attribute
//     changes take effect immediately.
//
// Activity sinks:
//   - ActivitySink is a best-effort audit emitter for login, refresh, and
//     logout events. AsyncActivitySink dispatches through a bounded queue so
//     recording never blocks or fails an authentication request.
package auth
