package httpapi

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/blackswan-cache/filecache/internal/requestid"
)

// NewFiberApp builds the fasthttp-backed transport adapter selected when
// --debug is off: recover middleware, request-id stamping, request
// logging, then the route table.
func NewFiberApp(api *API) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          fiberErrorHandler(api.log),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))

	app.Use(func(c *fiber.Ctx) error {
		ctx, reqID := requestid.New(c.UserContext())
		c.SetUserContext(ctx)
		c.Set("X-Request-ID", reqID)
		c.Locals("request_id", reqID)
		return c.Next()
	})

	app.Use(func(c *fiber.Ctx) error {
		err := c.Next()
		api.log.Info().
			Str("request_id", fiberRequestID(c)).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("request")
		return err
	})

	app.Get("/products/metadata", func(c *fiber.Ctx) error {
		return writeFiberResult(c, api.metadata())
	})
	app.Get("/help", func(c *fiber.Ctx) error {
		return writeFiberResult(c, api.help())
	})
	app.Post("/products/:product/:version/:platform/:key/add_alias/:keyAlias", func(c *fiber.Ctx) error {
		res := api.addAlias(c.Params("product"), c.Params("version"), c.Params("platform"), c.Params("key"), c.Params("keyAlias"))
		return writeFiberResult(c, res)
	})
	app.Post("/products/:product/:version/:platform/:key", func(c *fiber.Ctx) error {
		res := api.upload(c.Params("product"), c.Params("version"), c.Params("platform"), c.Params("key"), c.Body())
		return writeFiberResult(c, res)
	})
	app.Get("/products/:product/:version/:platform/:key", func(c *fiber.Ctx) error {
		res := api.download(c.Params("product"), c.Params("version"), c.Params("platform"), c.Params("key"))
		return writeFiberResult(c, res)
	})

	return app
}

func fiberRequestID(c *fiber.Ctx) string {
	if v, ok := c.Locals("request_id").(string); ok {
		return v
	}
	return ""
}

func writeFiberResult(c *fiber.Ctx, res result) error {
	if res.contentType != "" {
		c.Set("Content-Type", res.contentType)
	}
	return c.Status(res.status).Send(res.body)
}

// fiberErrorHandler mirrors fiber's customErrorHandler pattern: convert
// unhandled errors/panics into the service's own JSON error envelope
// rather than fiber's default plaintext body.
func fiberErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if fe, ok := err.(*fiber.Error); ok {
			code = fe.Code
		}
		log.Error().Err(err).Str("path", c.Path()).Msg("unhandled request error")
		return writeFiberResult(c, jsonError(code, err.Error()))
	}
}
