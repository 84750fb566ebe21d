package auth

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/saddlefit/go-auth/middleware/jwtware"
)

// RouteAuthenticator glues the Authenticator to go-router: route protection
// via the JWT middleware and the wire format for auth failures.
type RouteAuthenticator struct {
	auth         Authenticator
	cfg          Config
	validator    TokenValidator
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, validator TokenValidator, cfg Config) (*RouteAuthenticator, error) {
	a := &RouteAuthenticator{
		cfg:       cfg,
		auth:      auther,
		validator: validator,
		Logger:    defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

// ProtectedRoute guards a route group with access-token validation. Claims
// land in the router locals under the configured context key and in the
// request context for downstream handlers.
func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return jwtware.New(jwtware.Config{
			ErrorHandler:   errorHandler,
			SuccessHandler: hf,
			SigningKey: jwtware.SigningKey{
				Key:    []byte(cfg.GetTokenConfig().AccessSecret),
				JWTAlg: "HS256",
			},
			AuthScheme:     cfg.GetAuthScheme(),
			ContextKey:     cfg.GetContextKey(),
			TokenLookup:    cfg.GetTokenLookup(),
			TokenValidator: jwtValidatorAdapter{validator: a.validator},
			ContextEnricher: func(ctx context.Context, claims jwtware.AuthClaims) context.Context {
				if ac, ok := claims.(AuthClaims); ok {
					return WithClaimsContext(ctx, ac)
				}
				return ctx
			},
		})(hf)
	}
}

// MakeClientRouteAuthErrorHandler normalizes middleware token failures. With
// optional set, a failed check falls through to the handler unauthenticated.
func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *goerrors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = goerrors.Wrap(err, goerrors.CategoryAuth, "Invalid authentication token").
				WithCode(goerrors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("optional auth failed, proceeding: %s", richErr.Message)
			return ctx.Next()
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	return WriteError(c, err, a.Logger)
}

// WriteError renders err as the wire format clients consume: a status code
// plus `{"errors": {field: reasonCode}}`.
func WriteError(c router.Context, err error, logger Logger) error {
	if logger == nil {
		logger = defLogger{}
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	logger.Info(
		"request error %s (%s) %s",
		richErr.Message,
		richErr.Category,
		print.MaybePrettyJSON(richErr.Metadata),
	)

	status := richErr.Code
	if status == 0 {
		status = router.StatusInternalServerError
	}

	return c.JSON(status, map[string]any{
		"errors": reasonCodes(richErr),
	})
}

// reasonCodes maps a rich error onto the field to reason-code body. Login
// failures keep their deliberately coarse codes; anything unrecognized
// surfaces as a generic error entry.
func reasonCodes(richErr *goerrors.Error) map[string]string {
	switch richErr.TextCode {
	case TextCodeNotFound:
		return map[string]string{"identifier": "notFound"}
	case TextCodeWrongProvider:
		provider := "unknown"
		if p, ok := richErr.Metadata["provider"].(string); ok && p != "" {
			provider = p
		}
		return map[string]string{"identifier": "needLoginViaProvider:" + provider}
	case TextCodeAccountLocked:
		return map[string]string{"account": "locked"}
	case TextCodeInvalidCreds:
		return map[string]string{"password": "incorrectPassword"}
	case TextCodeInvalidHash:
		return map[string]string{"hash": "invalidHash"}
	case TextCodeEmailExists:
		return map[string]string{"email": "emailExists"}
	case TextCodeSessionNotFound, TextCodeRefreshRejected, TextCodeTokenExpired, TextCodeTokenMalformed:
		return map[string]string{"token": "unauthorized"}
	}

	code := richErr.TextCode
	if code == "" {
		code = strings.ToLower(string(richErr.Category))
	}

	return map[string]string{"error": code}
}

// jwtValidatorAdapter bridges the root TokenValidator into the middleware's
// import-cycle-free interface.
type jwtValidatorAdapter struct {
	validator TokenValidator
}

func (a jwtValidatorAdapter) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := a.validator.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
