package auth

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced to API clients. Login failures stay coarse on purpose:
// a caller can never tell "no such account" apart from "wrong password"
// beyond these codes, and token failures never reveal expired vs forged.
const (
	TextCodeNotFound          = "notFound"
	TextCodeWrongProvider     = "wrongProvider"
	TextCodeAccountLocked     = "accountLocked"
	TextCodeInvalidCreds      = "incorrectPassword"
	TextCodeInvalidHash       = "invalidHash"
	TextCodeEmailExists       = "emailExists"
	TextCodeSessionNotFound   = "sessionNotFound"
	TextCodeRefreshRejected   = "refreshRejected"
	TextCodeTokenExpired      = "TOKEN_EXPIRED"
	TextCodeTokenMalformed    = "TOKEN_MALFORMED"
	TextCodeEmptyPassword     = "EMPTY_PASSWORD"
	TextCodeRoleUnresolvable  = "ROLE_UNRESOLVABLE"
	TextCodeUnableToDecodeJWT = "UNABLE_TO_DECODE_JWT"
)

// ErrAccountNotFound is returned when no account matches the identifier on
// flows that may disclose existence (purpose-token flows, who-am-I).
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrWrongProvider rejects password logins for accounts owned by an external
// identity provider. Metadata carries the provider tag for the response body.
var ErrWrongProvider = goerrors.New("account must sign in through its identity provider", goerrors.CategoryValidation).
	WithTextCode(TextCodeWrongProvider).
	WithCode(goerrors.CodeConflict)

// ErrAccountLocked rejects logins while a lockout window is active,
// regardless of password correctness.
var ErrAccountLocked = goerrors.New("account is temporarily locked", goerrors.CategoryConflict).
	WithTextCode(TextCodeAccountLocked).
	WithCode(goerrors.CodeConflict)

// ErrMismatchedHashAndPassword covers wrong password and missing password
// hash alike, so social-only accounts are indistinguishable from typos.
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidPurposeToken is the single error every purpose-token
// verification failure collapses into: bad signature, expired, malformed,
// or wrong purpose all look the same to callers.
var ErrInvalidPurposeToken = goerrors.New("invalid or expired token", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidHash).
	WithCode(goerrors.CodeBadRequest)

// ErrSessionNotFound is returned when a refresh or logout names a session
// that no longer exists.
var ErrSessionNotFound = goerrors.New("session not found", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(goerrors.CodeUnauthorized)

// ErrRefreshRejected is the replay guard result: the refresh token's hash
// lost the compare-and-swap against the session's live hash.
var ErrRefreshRejected = goerrors.New("refresh token is no longer valid", goerrors.CategoryAuth).
	WithTextCode(TextCodeRefreshRejected).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailExists is returned when a registration or email change collides
// with an existing account.
var ErrEmailExists = goerrors.New("email is already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailExists).
	WithCode(goerrors.CodeConflict)

// ErrTokenExpired marks an expired signed token. Purpose-token flows
// normalize it into ErrInvalidPurposeToken before it reaches a caller.
var ErrTokenExpired = goerrors.New("token has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed marks a token that failed signature or structural
// validation.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrUnableToDecodeSession is returned when middleware locals do not contain
// usable claims.
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnableToDecodeJWT).
	WithCode(goerrors.CodeUnauthorized)

// IsTokenExpiredError checks for expired tokens, including errors coming out
// of the raw JWT parser.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError checks for structurally invalid tokens.
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
