package auth

import (
	"net/http"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeValidation         = "VALIDATION_ERROR"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodePasswordTooLong    = "PASSWORD_TOO_LONG"
	TextCodeEmailTaken         = "EMAIL_TAKEN"
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeUnauthenticated    = "UNAUTHENTICATED"
	TextCodeSessionNotFound    = "SESSION_NOT_FOUND"
	TextCodeTokenInvalid       = "TOKEN_INVALID"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenRevoked       = "TOKEN_REVOKED"
	TextCodeForbidden          = "FORBIDDEN"
	TextCodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	TextCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	TextCodeMissingSigningKey  = "MISSING_SIGNING_KEY"
	TextCodeInvalidRole        = "INVALID_ROLE"
	TextCodeBootstrapViolation = "BOOTSTRAP_VIOLATION"
)

// ErrValidation is the base error for client correctable input problems
var ErrValidation = errors.New("invalid request payload", errors.CategoryValidation).
	WithTextCode(TextCodeValidation).
	WithCode(errors.CodeBadRequest)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// ErrPasswordTooLong bcrypt only considers the first 72 bytes
var ErrPasswordTooLong = errors.New("password must be at most 72 bytes", errors.CategoryValidation).
	WithTextCode(TextCodePasswordTooLong).
	WithCode(errors.CodeBadRequest)

// ErrEmailTaken is returned when registering or updating to an email in use
var ErrEmailTaken = errors.New("email is already taken", errors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(errors.CodeConflict)

// ErrMismatchedHashAndPassword is returned by the hasher on mismatch
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidCredentials is returned by login and password change for
// unknown emails and wrong passwords alike
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrUnauthenticated is returned when a request carries no valid session
var ErrUnauthenticated = errors.New("authentication invalid", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToFindSession is the error when our request has no cookie
var ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(errors.CodeUnauthorized)

// ErrTokenInvalid covers tampered, malformed or wrongly signed tokens
var ErrTokenInvalid = errors.New("token is malformed or has an invalid signature", errors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned for tokens past their expiration
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenRevoked is returned for tokens whose id was revoked on logout
var ErrTokenRevoked = errors.New("token has been revoked", errors.CategoryAuth).
	WithTextCode(TextCodeTokenRevoked).
	WithCode(errors.CodeUnauthorized)

// ErrForbidden is the permission evaluator denial
var ErrForbidden = errors.New("not authorized to access this route", errors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(errors.CodeForbidden)

// ErrAccountNotFound is returned by repositories
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(errors.CodeNotFound)

// ErrTooManyRequests is returned by the rate limiter
var ErrTooManyRequests = errors.New("too many requests, try again later", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyRequests).
	WithCode(http.StatusTooManyRequests)

// ErrMissingSigningKey is a configuration error, fatal at startup
var ErrMissingSigningKey = errors.New("token signing key is not configured", errors.CategoryInternal).
	WithTextCode(TextCodeMissingSigningKey).
	WithCode(errors.CodeInternal)

// ErrInvalidRole is returned when a stored or presented role is unknown
var ErrInvalidRole = errors.New("unknown or invalid role", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidRole).
	WithCode(errors.CodeBadRequest)

// ErrBootstrapViolation is returned when a repository sees a second bootstrap admin
var ErrBootstrapViolation = errors.New("bootstrap admin already claimed", errors.CategoryConflict).
	WithTextCode(TextCodeBootstrapViolation).
	WithCode(errors.CodeConflict)

// WithMessage returns a copy of base carrying a different message while
// keeping base reachable through errors.Is
func WithMessage(base *errors.Error, message string, metadata ...map[string]any) *errors.Error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	clone.Message = message
	clone.Source = base
	for _, m := range metadata {
		clone = clone.WithMetadata(m)
	}
	return clone
}

// IsValidationError reports client correctable input errors
func IsValidationError(err error) bool {
	return hasCategory(err, errors.CategoryValidation, errors.CategoryBadInput)
}

// IsConflictError reports duplicate resources
func IsConflictError(err error) bool {
	return hasCategory(err, errors.CategoryConflict)
}

// IsUnauthenticatedError reports missing or invalid credentials and sessions
func IsUnauthenticatedError(err error) bool {
	return hasCategory(err, errors.CategoryAuth)
}

// IsAuthorizationError reports permission evaluator denials
func IsAuthorizationError(err error) bool {
	return hasCategory(err, errors.CategoryAuthz)
}

func hasCategory(err error, categories ...errors.Category) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	for _, c := range categories {
		if richErr.Category == c {
			return true
		}
	}
	return false
}
