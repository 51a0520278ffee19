package openapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRender(t *testing.T) {
	t.Run("unchanged without options", func(t *testing.T) {
		assert.Equal(t, document, Render(document, Options{}))
	})

	t.Run("servers and title", func(t *testing.T) {
		out := Render(document, Options{ServerURL: "https://settings.example.net", Title: "Settings"})

		var doc struct {
			Info struct {
				Title   string `yaml:"title"`
				Version string `yaml:"version"`
			} `yaml:"info"`
			Servers []struct {
				URL string `yaml:"url"`
			} `yaml:"servers"`
			Paths map[string]any `yaml:"paths"`
		}

		require.NoError(t, yaml.Unmarshal(out, &doc))
		assert.Equal(t, "Settings", doc.Info.Title)
		assert.Equal(t, "1.0.0.0", doc.Info.Version)
		require.Len(t, doc.Servers, 1)
		assert.Equal(t, "https://settings.example.net", doc.Servers[0].URL)
		assert.Contains(t, doc.Paths, "/settings/aggregate")
	})

	t.Run("invalid document is kept", func(t *testing.T) {
		broken := []byte("openapi: [")
		assert.Equal(t, broken, Render(broken, Options{Title: "x"}))
	})
}
