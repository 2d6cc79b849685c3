package auth_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-shop-auth"
)

func TestErrorCategories(t *testing.T) {
	assert.True(t, auth.IsValidationError(auth.ErrValidation))
	assert.True(t, auth.IsConflictError(auth.ErrEmailTaken))
	assert.True(t, auth.IsUnauthenticatedError(auth.ErrInvalidCredentials))
	assert.True(t, auth.IsAuthorizationError(auth.ErrForbidden))

	wrapped := fmt.Errorf("outer: %w", auth.ErrEmailTaken)
	assert.True(t, auth.IsConflictError(wrapped))

	assert.False(t, auth.IsValidationError(nil))
	assert.False(t, auth.IsConflictError(fmt.Errorf("plain")))
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{nil, http.StatusOK},
		{auth.ErrValidation, http.StatusBadRequest},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{auth.ErrUnauthenticated, http.StatusUnauthorized},
		{auth.ErrForbidden, http.StatusForbidden},
		{auth.ErrAccountNotFound, http.StatusNotFound},
		{auth.ErrEmailTaken, http.StatusConflict},
		{auth.ErrTooManyRequests, http.StatusTooManyRequests},
		{auth.ErrMissingSigningKey, http.StatusInternalServerError},
		{fiber.ErrNotFound, http.StatusNotFound},
		{fiber.ErrUnprocessableEntity, http.StatusUnprocessableEntity},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, auth.StatusCode(tt.err), fmt.Sprint(tt.err))
	}
}

func TestNewValidationError(t *testing.T) {
	assert.NoError(t, auth.NewValidationError("x", nil))

	err := auth.NewValidationError("", validation.Errors{
		"name":  fmt.Errorf("cannot be blank"),
		"email": fmt.Errorf("cannot be blank"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrValidation)

	var richErr *errors.Error
	require.True(t, errors.As(err, &richErr))
	assert.Equal(t, "email: cannot be blank; name: cannot be blank", richErr.Message)
	fields, ok := richErr.Metadata["fields"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "cannot be blank", fields["name"])
}

func TestFormatValidationErrorToMap(t *testing.T) {
	assert.Empty(t, auth.FormatValidationErrorToMap(nil))
	assert.Equal(t, map[string]string{"_": "plain"}, auth.FormatValidationErrorToMap(fmt.Errorf("plain")))
}

func TestErrorHandlerRendersJSON(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: auth.NewErrorHandler(auth.NopLogger{})})
	app.Get("/taken", func(c *fiber.Ctx) error { return auth.ErrEmailTaken })
	app.Get("/boom", func(c *fiber.Ctx) error { return fmt.Errorf("db password is hunter2") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/taken", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, auth.ErrEmailTaken.Message, body["msg"])
	assert.Equal(t, auth.TextCodeEmailTaken, body["code"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body = decodeBody(t, resp)
	assert.Equal(t, "An unexpected server error occurred", body["msg"])
	assert.NotContains(t, fmt.Sprint(body), "hunter2")
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}

func TestWithMessageKeepsBase(t *testing.T) {
	err := auth.WithMessage(auth.ErrAccountNotFound, "no account with id: 42", map[string]any{"id": "42"})

	assert.Equal(t, "no account with id: 42", err.Message)
	assert.Equal(t, "42", err.Metadata["id"])
	assert.True(t, errors.Is(err, auth.ErrAccountNotFound))
	assert.Equal(t, http.StatusNotFound, auth.StatusCode(err))
	assert.Equal(t, "account not found", auth.ErrAccountNotFound.Message)
}
