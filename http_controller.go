package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-router"
)

// RegisterAuthRoutes mounts the authentication API on the given router.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Login, controller.Login).
		SetName("auth.login")
	app.Post(controller.Routes.Refresh, controller.Refresh).
		SetName("auth.refresh")
	app.Post(controller.Routes.Logout, controller.Logout).
		SetName("auth.logout")
	app.Post(controller.Routes.Register, controller.Register).
		SetName("auth.register")
	app.Post(controller.Routes.ConfirmEmail, controller.ConfirmEmail).
		SetName("auth.confirm-email")
	app.Post(controller.Routes.ConfirmNewEmail, controller.ConfirmNewEmail).
		SetName("auth.confirm-new-email")
	app.Post(controller.Routes.ForgotPassword, controller.ForgotPassword).
		SetName("auth.forgot-password")
	app.Post(controller.Routes.ResetPassword, controller.ResetPassword).
		SetName("auth.reset-password")

	protected := controller.HTTP.ProtectedRoute(
		controller.Config,
		controller.HTTP.MakeClientRouteAuthErrorHandler(false),
	)
	app.Get(controller.Routes.Me, protected(controller.Me)).
		SetName("auth.me")
}

type AuthControllerRoutes struct {
	Login           string
	Refresh         string
	Logout          string
	Register        string
	Me              string
	ConfirmEmail    string
	ConfirmNewEmail string
	ForgotPassword  string
	ResetPassword   string
}

type AuthController struct {
	Logger   Logger
	Repo     RepositoryManager
	Auther   Authenticator
	Purposes *PurposeTokenService
	HTTP     *RouteAuthenticator
	Config   Config
	Routes   *AuthControllerRoutes
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Login:           "/auth/login",
			Refresh:         "/auth/refresh",
			Logout:          "/auth/logout",
			Register:        "/auth/register",
			Me:              "/auth/me",
			ConfirmEmail:    "/auth/confirm-email",
			ConfirmNewEmail: "/auth/confirm-new-email",
			ForgotPassword:  "/auth/forgot-password",
			ResetPassword:   "/auth/reset-password",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Purposes == nil {
		panic("Missing PurposeTokenService in auth controller...")
	}

	if c.HTTP == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	return c
}

// WithAuthenticator sets the Authenticator used by the controller.
func WithAuthenticator(auther Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

// WithRepositoryManager sets the repository manager.
func WithRepositoryManager(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

// WithPurposeTokens sets the purpose-token service.
func WithPurposeTokens(purposes *PurposeTokenService) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Purposes = purposes
		return c
	}
}

// WithRouteAuthenticator sets the HTTP glue used for protected routes.
func WithRouteAuthenticator(http *RouteAuthenticator, cfg Config) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.HTTP = http
		c.Config = cfg
		return c
	}
}

// WithControllerLogger overrides the controller logger.
func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		// identifier can be a username, so no email rule here
		validation.Field(
			&r.Identifier,
			validation.Required,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) Login(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "form", "invalidPayload")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	result, err := a.Auther.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("login error: %v", err)
		return WriteError(ctx, err, a.Logger)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"accessToken":            result.Pair.AccessToken,
		"refreshToken":           result.Pair.RefreshToken,
		"accessTokenExpiresAtMs": result.Pair.ExpiresAtMs,
		"account":                result.Account,
		"role":                   result.Role,
	})
}

// RefreshRequest payload
type RefreshRequest struct {
	RefreshToken string `form:"refreshToken" json:"refreshToken"`
}

// Validate will run validation rules
func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

func (a *AuthController) Refresh(ctx router.Context) error {
	payload := new(RefreshRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "form", "invalidPayload")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	pair, err := a.Auther.Refresh(ctx.Context(), payload.RefreshToken)
	if err != nil {
		return WriteError(ctx, err, a.Logger)
	}

	return ctx.JSON(router.StatusOK, pair)
}

// LogoutRequest payload
type LogoutRequest struct {
	SessionID string `form:"sessionId" json:"sessionId"`
}

// Validate will run validation rules
func (r LogoutRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SessionID, validation.Required, is.UUID),
	)
}

func (a *AuthController) Logout(ctx router.Context) error {
	payload := new(LogoutRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "form", "invalidPayload")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	if err := a.Auther.Logout(ctx.Context(), payload.SessionID); err != nil {
		return WriteError(ctx, err, a.Logger)
	}

	return ctx.Status(router.StatusNoContent).Send(nil)
}

// Me returns the account behind the access token with a freshly resolved
// role, so clients see role changes without waiting for a refresh.
func (a *AuthController) Me(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.Config.GetContextKey())
	if !ok {
		return WriteError(ctx, ErrUnableToDecodeSession, a.Logger)
	}

	account, role, err := a.Auther.WhoAmI(ctx.Context(), claims.AccountID())
	if err != nil {
		return WriteError(ctx, err, a.Logger)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"account": account,
		"role":    role,
	})
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Username        string `form:"username" json:"username"`
	Email           string `form:"email" json:"email"`
	Phone           string `form:"phone_number" json:"phone_number"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Username, validation.Length(0, 100)),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) Register(ctx router.Context) error {
	payload := new(RegisterRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "form", "invalidPayload")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	var account *Account
	msg := RegisterAccountMessage{
		Username: payload.Username,
		Email:    payload.Email,
		Phone:    payload.Phone,
		Password: payload.Password,
		OnResponse: func(a *Account) {
			account = a
		},
	}

	handler := NewRegisterAccountHandler(a.Repo, a.Purposes).WithLogger(a.Logger)
	if err := handler.Execute(ctx.Context(), msg); err != nil {
		a.Logger.Error("register error: %v", err)
		return WriteError(ctx, err, a.Logger)
	}

	return ctx.JSON(router.StatusCreated, map[string]any{
		"account": account,
	})
}

// PurposeTokenRequest carries the signed hash of a confirm or reset link.
type PurposeTokenRequest struct {
	Hash string `form:"hash" json:"hash"`
}

// Validate will run validation rules
func (r PurposeTokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Hash, validation.Required),
	)
}

func (a *AuthController) ConfirmEmail(ctx router.Context) error {
	return a.redeemPurposeToken(ctx, a.Purposes.ConfirmEmail)
}

func (a *AuthController) ConfirmNewEmail(ctx router.Context) error {
	return a.redeemPurposeToken(ctx, a.Purposes.ConfirmNewEmail)
}

func (a *AuthController) redeemPurposeToken(ctx router.Context, redeem func(context.Context, string) error) error {
	payload := new(PurposeTokenRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "form", "invalidPayload")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	if err := redeem(ctx.Context(), payload.Hash); err != nil {
		return WriteError(ctx, err, a.Logger)
	}

	return ctx.Status(router.StatusNoContent).Send(nil)
}

// ForgotPasswordRequest payload
type ForgotPasswordRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
}

// Validate will run validation rules
func (r ForgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
	)
}

func (a *AuthController) ForgotPassword(ctx router.Context) error {
	payload := new(ForgotPasswordRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "form", "invalidPayload")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	if err := a.Purposes.RequestPasswordReset(ctx.Context(), payload.Identifier); err != nil {
		return WriteError(ctx, err, a.Logger)
	}

	return ctx.Status(router.StatusNoContent).Send(nil)
}

// ResetPasswordRequest payload
type ResetPasswordRequest struct {
	Hash            string `form:"hash" json:"hash"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will run validation rules
func (r ResetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Hash, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) ResetPassword(ctx router.Context) error {
	payload := new(ResetPasswordRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.badRequest(ctx, "form", "invalidPayload")
	}

	if err := payload.Validate(); err != nil {
		return a.validationError(ctx, err)
	}

	if err := a.Purposes.ResetPassword(ctx.Context(), payload.Hash, payload.Password); err != nil {
		return WriteError(ctx, err, a.Logger)
	}

	return ctx.Status(router.StatusNoContent).Send(nil)
}

func (a *AuthController) badRequest(ctx router.Context, field, code string) error {
	return ctx.JSON(router.StatusBadRequest, map[string]any{
		"errors": map[string]string{field: code},
	})
}

func (a *AuthController) validationError(ctx router.Context, err error) error {
	return ctx.JSON(router.StatusBadRequest, map[string]any{
		"errors": FormatValidationErrorToMap(err),
	})
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return validation.NewError("validation_match", "values must match")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into the wire
// error map.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	if verr, ok := err.(validation.Errors); ok {
		for field, ferr := range verr {
			out[field] = ferr.Error()
		}
		return out
	}

	out["validation"] = err.Error()

	return out
}
