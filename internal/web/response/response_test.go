package response

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdr-platform/settings-service/internal/apperror"
)

func TestErrorHandler(t *testing.T) {
	testCases := []struct {
		name    string
		err     error
		status  int
		message string
		fields  int
	}{
		{
			name:    "validation",
			err:     apperror.Validation("bad", apperror.FieldError{Field: "name", ErrorType: apperror.KindRequired}),
			status:  http.StatusBadRequest,
			message: "bad",
			fields:  1,
		},
		{
			name:    "not found",
			err:     apperror.NotFound("Setting 'x' not found"),
			status:  http.StatusNotFound,
			message: "Setting 'x' not found",
		},
		{
			name:    "fiber error",
			err:     fiber.NewError(fiber.StatusMethodNotAllowed, "nope"),
			status:  http.StatusMethodNotAllowed,
			message: "nope",
		},
		{
			name:    "anything else",
			err:     errors.New("boom"),
			status:  http.StatusInternalServerError,
			message: "boom",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
			app.Get("/", func(_ *fiber.Ctx) error { return tc.err })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)

			raw, err := io.ReadAll(resp.Body)
			require.NoError(t, err)

			var env map[string]any
			require.NoError(t, json.Unmarshal(raw, &env))

			assert.Equal(t, float64(tc.status), env["statusCode"])
			assert.Equal(t, Version, env["version"])
			assert.Equal(t, tc.message, env["message"])
			assert.Nil(t, env["result"])
			assert.Contains(t, env, "result")

			if tc.fields == 0 {
				assert.NotContains(t, env, "validationErrors")
			} else {
				assert.Len(t, env["validationErrors"], tc.fields)
			}
		})
	}
}

func TestOK(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return OK(c, Paged{Records: []string{"a"}, TotalCount: 1}) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"statusCode":200,"version":"1.0.0.0","message":"Request successful","result":{"records":["a"],"totalCount":1}}`,
		string(raw))
}
