// Package openapi serves the embedded API description.
package openapi

import (
	_ "embed" // for go:embed

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mdr-platform/settings-service/internal/web/handler"
)

// Path is the route of the API description.
const Path = handler.RootPath + "openapi.yaml"

//go:embed openapi.yaml
var document []byte

// Options controls the served document.
type Options struct {
	// ServerURL replaces the servers section when set.
	ServerURL string

	// Title replaces info.title when set.
	Title string
}

// Service serves the API description.
type Service struct {
	doc []byte
}

var _ handler.Service[Options] = (*Service)(nil)

// Init renders the document once and registers the route.
func (s *Service) Init(app *fiber.App, opts Options) error {
	if app == nil {
		return handler.ErrNilDependency
	}

	s.doc = Render(document, opts)

	app.Get(Path, func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "application/yaml")
		return c.Send(s.doc)
	})

	return nil
}

// Render points the servers section at this instance. The document is
// returned unchanged when it can not be rewritten.
func Render(doc []byte, opts Options) []byte {
	if opts.ServerURL == "" && opts.Title == "" {
		return doc
	}

	var full map[string]any
	if err := yaml.Unmarshal(doc, &full); err != nil {
		log.Warn().Err(err).Msg("openapi: keep embedded document")
		return doc
	}

	if opts.ServerURL != "" {
		full["servers"] = []map[string]any{
			{
				"url":         opts.ServerURL,
				"description": "This instance",
			},
		}
	}

	if info, ok := full["info"].(map[string]any); ok && opts.Title != "" {
		info["title"] = opts.Title
	}

	res, err := yaml.Marshal(full)
	if err != nil {
		return doc
	}

	return res
}
