// Package httpapi is the HTTP boundary: a pure translation layer between
// the service's wire routes and the cachefs coordinator. Core request
// handling is framework-agnostic; two thin adapters (adapter_net.go,
// adapter_fiber.go) wire it to net/http and fiber respectively, selected
// by --debug at process bring-up.
package httpapi

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/blackswan-cache/filecache/internal/cachefs"
)

// Cache is the subset of *cachefs.Cache the boundary depends on.
type Cache interface {
	Upload(product, version, platform, key string, payload []byte) error
	Download(product, version, platform, key string) ([]byte, error)
	AddAlias(product, version, platform, key, keyAlias string) error
	Dump() map[string]map[string]map[string]cachefs.DumpEntry
}

// API holds the cache dependency shared by both transport adapters.
type API struct {
	cache Cache
	log   zerolog.Logger
}

// New builds the framework-agnostic handler core.
func New(cache Cache, log zerolog.Logger) *API {
	return &API{cache: cache, log: log}
}

// result is a transport-agnostic response: a status code, a pre-encoded
// body, and the content type to send it with (left unset when empty).
type result struct {
	status      int
	body        []byte
	contentType string
}

func jsonMessage(status int, message string) result {
	b, _ := json.Marshal(map[string]string{"message": message})
	return result{status: status, body: b, contentType: "application/json"}
}

func jsonError(status int, message string) result {
	b, _ := json.Marshal(map[string]string{"error": message})
	return result{status: status, body: b, contentType: "application/json"}
}

// upload handles POST /products/<product>/<version>/<platform>/<key>.
func (a *API) upload(product, version, platform, key string, body []byte) result {
	err := a.cache.Upload(product, version, platform, key, body)
	if err == nil {
		return jsonMessage(201, "stored")
	}
	if _, ok := err.(*cachefs.ErrAlreadyExists); ok {
		return jsonError(409, "already exists")
	}
	a.log.Error().Err(err).Str("product", product).Str("platform", platform).Msg("upload failed")
	return jsonError(500, "internal error")
}

// download handles GET /products/<product>/<version>/<platform>/<key>.
func (a *API) download(product, version, platform, key string) result {
	payload, err := a.cache.Download(product, version, platform, key)
	if err == nil {
		return result{status: 200, body: payload, contentType: "application/octet-stream"}
	}
	if _, ok := err.(*cachefs.ErrNotFound); ok {
		return jsonError(404, "not found")
	}
	a.log.Error().Err(err).Str("product", product).Str("platform", platform).Msg("download failed")
	return jsonError(500, "internal error")
}

// addAlias handles POST .../add_alias/<keyAlias>. Both a missing source and
// a colliding alias map to 409, since an alias follows the same existence
// rules as the entry it names.
func (a *API) addAlias(product, version, platform, key, keyAlias string) result {
	err := a.cache.AddAlias(product, version, platform, key, keyAlias)
	if err == nil {
		return jsonMessage(201, "alias created")
	}
	switch err.(type) {
	case *cachefs.ErrNotFound:
		return jsonError(409, "source not found")
	case *cachefs.ErrAlreadyExists:
		return jsonError(409, "alias already exists")
	default:
		a.log.Error().Err(err).Str("product", product).Str("platform", platform).Msg("add_alias failed")
		return jsonError(500, "internal error")
	}
}

// metadata handles GET /products/metadata.
func (a *API) metadata() result {
	dump := a.cache.Dump()
	if dump == nil {
		dump = map[string]map[string]map[string]cachefs.DumpEntry{}
	}
	b, err := json.Marshal(dump)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to marshal metadata dump")
		return jsonError(500, "internal error")
	}
	return result{status: 200, body: b, contentType: "application/json"}
}

// help handles GET /help: a static usage text. helpText is written by hand
// and is kept in sync with the adapters' route tables by hand.
func (a *API) help() result {
	return result{status: 200, body: []byte(helpText), contentType: "text/plain; charset=utf-8"}
}

const helpText = `file cache service

  POST /products/<product>/<version>/<platform>/<key>
      store the request body as a new cache entry
      201 on success, 409 if the tuple already exists

  POST /products/<product>/<version>/<platform>/<key>/add_alias/<keyAlias>
      create keyAlias as an alias of key within the same (product, version, platform)
      201 on success, 409 if the source is absent or the alias already exists

  GET /products/<product>/<version>/<platform>/<key>
      return the body of the resolved entry, crediting a usage touch
      200 on success, 404 if not present

  GET /products/metadata
      return a JSON dump of every entry and alias

  GET /help
      this text

flags:
  --port int   server port (default 8801)
  --debug      select the net/http transport engine instead of fiber (default off)
`
