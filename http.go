package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"

	"github.com/goliatone/go-shop-auth/middleware/jwtware"
)

// RouteAuthenticator guards fiber routes with the session cookie
type RouteAuthenticator struct {
	carrier          *SessionCarrier
	listeners        []ValidationListener
	Logger           Logger
	AuthErrorHandler func(c *fiber.Ctx, err error) error
}

// NewHTTPAuthenticator creates a route guard backed by carrier
func NewHTTPAuthenticator(carrier *SessionCarrier, listeners ...ValidationListener) *RouteAuthenticator {
	a := &RouteAuthenticator{
		carrier:   carrier,
		listeners: listeners,
		Logger:    defLogger{},
	}
	a.AuthErrorHandler = a.defaultAuthErrHandler
	return a
}

// ProtectedRoute rejects requests without a valid session. When roles
// are given the session role must be one of them.
func (a *RouteAuthenticator) ProtectedRoute(roles ...Role) fiber.Handler {
	cfg := jwtware.Config{
		ContextKey:      UserLocalsKey,
		TokenLookup:     "cookie:" + a.carrier.CookieName(),
		TokenValidator:  tokenValidator{tokens: a.carrier.Tokens()},
		Authorizer:      rolesAuthorizer(roles...),
		ContextEnricher: ContextEnricherAdapter,
		ErrorHandler:    a.AuthErrorHandler,
	}
	RegisterValidationListeners(&cfg, a.listeners...)
	return jwtware.New(cfg)
}

// AuthorizeRoles is a standalone role gate for routes already behind
// ProtectedRoute
func (a *RouteAuthenticator) AuthorizeRoles(roles ...Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFromFiber(c)
		if !ok {
			return a.AuthErrorHandler(c, ErrUnauthenticated)
		}
		if err := RequireRoles(claims.Role(), roles...); err != nil {
			return a.AuthErrorHandler(c, err)
		}
		return c.Next()
	}
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c *fiber.Ctx, err error) error {
	var richErr *errors.Error

	switch {
	case errors.Is(err, jwtware.ErrJWTMissingOrMalformed):
		richErr = WithMessage(ErrUnauthenticated, ErrUnauthenticated.Message, map[string]any{
			"reason": TextCodeSessionNotFound,
		})
	case IsAuthorizationError(err):
		errors.As(err, &richErr)
	case errors.As(err, &richErr) && richErr.Category == errors.CategoryAuth:
		richErr = WithMessage(ErrUnauthenticated, ErrUnauthenticated.Message, map[string]any{
			"reason": richErr.TextCode,
		})
	default:
		richErr = errors.Wrap(err, errors.CategoryAuth, ErrUnauthenticated.Message).
			WithTextCode(TextCodeUnauthenticated).
			WithCode(errors.CodeUnauthorized)
	}

	a.Logger.Info(
		"Authentication error",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	return richErr
}

// NewErrorHandler renders every error as {"msg", "code"} with the status
// carried by the error. Unknown errors become a generic 500.
func NewErrorHandler(logger Logger) fiber.ErrorHandler {
	logger = normalizeLogger(logger)

	return func(c *fiber.Ctx, err error) error {
		richErr := toRichError(err)
		status := statusOf(richErr)

		message := richErr.Message
		if status >= http.StatusInternalServerError {
			logger.Error(
				"Request error",
				"path", c.OriginalURL(),
				"error", err,
				"details", print.MaybePrettyJSON(richErr.Metadata),
			)
			message = "An unexpected server error occurred"
		} else {
			logger.Debug(
				"Request rejected",
				"path", c.OriginalURL(),
				"status", status,
				"text_code", richErr.TextCode,
			)
		}

		return c.Status(status).JSON(fiber.Map{
			"msg":  message,
			"code": richErr.TextCode,
		})
	}
}

// StatusCode returns the HTTP status err maps to
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return statusOf(toRichError(err))
}

func statusOf(richErr *errors.Error) int {
	status := richErr.Code
	if status < http.StatusBadRequest || status > 599 {
		return http.StatusInternalServerError
	}
	return status
}

func toRichError(err error) *errors.Error {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		category := errors.CategoryInternal
		switch {
		case fiberErr.Code == http.StatusNotFound:
			category = errors.CategoryNotFound
		case fiberErr.Code < http.StatusInternalServerError:
			category = errors.CategoryBadInput
		}
		return errors.New(fiberErr.Message, category).WithCode(fiberErr.Code)
	}

	return errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
		WithCode(errors.CodeInternal)
}
