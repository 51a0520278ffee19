package fiber_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdr-platform/settings-service/internal/logger"
	adapter "github.com/mdr-platform/settings-service/internal/logger/adapter/fiber"
)

type accessLine struct {
	IP            string  `json:"IP"`
	Status        int     `json:"status"`
	XPerformance  float64 `json:"X-Performance"`
	URI           string  `json:"URI"`
	Method        string  `json:"method"`
	Host          string  `json:"host"`
	CorrelationID string  `json:"correlationId"`
	UserID        string  `json:"userId"`
	Error         string  `json:"error"`
}

func newApp(cfg adapter.Config) *fiber.App {
	app := fiber.New(fiber.Config{CaseSensitive: true, Immutable: true})
	app.Use(adapter.New(cfg))

	app.Get("/healthcheck", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	app.Get("/settings", func(c *fiber.Ctx) error {
		c.Set("X-Correlation-Id", "corr-1")
		return c.JSON([]string{})
	})

	app.Get("/settings/name/:name", func(_ *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Setting 'x' not found")
	})

	return app
}

func TestAccessLog(t *testing.T) {
	testCases := []struct {
		name    string
		target  string
		userID  string
		disable bool
		want    *accessLine
	}{
		{
			name:   "settings with correlation id",
			target: "/settings?isAdmin=true",
			want:   &accessLine{Status: 200, URI: "/settings?isAdmin=true", CorrelationID: "corr-1"},
		},
		{
			name:   "caller is logged",
			target: "/settings",
			userID: "u1",
			want:   &accessLine{Status: 200, URI: "/settings", CorrelationID: "corr-1", UserID: "u1"},
		},
		{
			name:   "handler error keeps its status",
			target: "/settings/name/x",
			want:   &accessLine{Status: 404, URI: "/settings/name/x", CorrelationID: logger.NoCorrelationID, Error: "Setting 'x' not found"},
		},
		{
			name:   "unknown route",
			target: "/nothing",
			want:   &accessLine{Status: 404, URI: "/nothing", CorrelationID: logger.NoCorrelationID, Error: "Cannot GET /nothing"},
		},
		{
			name:   "check alive is logged unless disabled",
			target: "/healthcheck",
			want:   &accessLine{Status: 200, URI: "/healthcheck", CorrelationID: logger.NoCorrelationID},
		},
		{
			name:    "check alive disabled",
			target:  "/healthcheck",
			disable: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer

			app := newApp(adapter.Config{
				Config:        logger.Log{DisableCheckAlive: tc.disable},
				Output:        &out,
				CheckAliveURI: "/healthcheck",
			})

			req := httptest.NewRequest(fiber.MethodGet, tc.target, nil)
			if tc.userID != "" {
				req.Header.Set("X-User-Id", tc.userID)
			}

			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.NotEmpty(t, resp.Header.Get(adapter.HeaderPerformance))

			if tc.want == nil {
				assert.Empty(t, out.String())
				return
			}

			var got accessLine
			require.NoError(t, json.Unmarshal(out.Bytes(), &got), out.String())

			assert.Equal(t, tc.want.Status, resp.StatusCode)
			assert.Equal(t, tc.want.Status, got.Status)
			assert.Equal(t, tc.want.URI, got.URI)
			assert.Equal(t, fiber.MethodGet, got.Method)
			assert.Equal(t, "example.com", got.Host)
			assert.Equal(t, "0.0.0.0", got.IP)
			assert.Equal(t, tc.want.CorrelationID, got.CorrelationID)
			assert.Equal(t, tc.want.UserID, got.UserID)
			assert.Equal(t, tc.want.Error, got.Error)
			assert.GreaterOrEqual(t, got.XPerformance, 0.0)
		})
	}
}

func TestAccessLogNext(t *testing.T) {
	var out bytes.Buffer

	app := newApp(adapter.Config{
		Output: &out,
		Next:   func(c *fiber.Ctx) bool { return c.Path() == "/settings" },
	})

	_, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/settings", nil), -1)
	require.NoError(t, err)
	assert.Empty(t, out.String())
}
