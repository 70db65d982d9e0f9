package httpapi

import (
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/blackswan-cache/filecache/internal/requestid"
)

// NewNetHTTPHandler builds the net/http transport adapter selected by
// --debug. It favors straightforward debugging over throughput: verbose
// per-request logging, no connection pooling tricks, the standard
// library's own router.
func NewNetHTTPHandler(api *API) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /products/metadata", methodNotAllowed)
	mux.HandleFunc("GET /products/metadata", func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, api.metadata())
	})
	mux.HandleFunc("GET /help", func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, api.help())
	})
	mux.HandleFunc("POST /products/{product}/{version}/{platform}/{key}/add_alias/{keyAlias}", func(w http.ResponseWriter, r *http.Request) {
		res := api.addAlias(r.PathValue("product"), r.PathValue("version"), r.PathValue("platform"), r.PathValue("key"), r.PathValue("keyAlias"))
		writeResult(w, res)
	})
	mux.HandleFunc("POST /products/{product}/{version}/{platform}/{key}", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeResult(w, jsonError(400, "could not read request body"))
			return
		}
		res := api.upload(r.PathValue("product"), r.PathValue("version"), r.PathValue("platform"), r.PathValue("key"), body)
		writeResult(w, res)
	})
	mux.HandleFunc("GET /products/{product}/{version}/{platform}/{key}", func(w http.ResponseWriter, r *http.Request) {
		res := api.download(r.PathValue("product"), r.PathValue("version"), r.PathValue("platform"), r.PathValue("key"))
		writeResult(w, res)
	})

	return requestLogger(api.log, mux)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeResult(w, jsonError(405, "method not allowed"))
}

func writeResult(w http.ResponseWriter, res result) {
	if res.contentType != "" {
		w.Header().Set("Content-Type", res.contentType)
	}
	w.WriteHeader(res.status)
	_, _ = w.Write(res.body)
}

// requestLogger stamps a request ID and logs every request at completion.
func requestLogger(log zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, reqID := requestid.New(r.Context())
		w.Header().Set("X-Request-ID", reqID)

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info().
			Str("request_id", reqID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
