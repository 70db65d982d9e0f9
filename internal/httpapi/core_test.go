package httpapi

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackswan-cache/filecache/internal/cachefs"
)

// fakeCache is a minimal in-memory double for Cache, letting httpapi tests
// exercise status-code mapping without a real filesystem.
type fakeCache struct {
	uploadErr   error
	downloadErr error
	payload     []byte
	aliasErr    error
	dump        map[string]map[string]map[string]cachefs.DumpEntry
}

func (f *fakeCache) Upload(product, version, platform, key string, payload []byte) error {
	return f.uploadErr
}

func (f *fakeCache) Download(product, version, platform, key string) ([]byte, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return f.payload, nil
}

func (f *fakeCache) AddAlias(product, version, platform, key, keyAlias string) error {
	return f.aliasErr
}

func (f *fakeCache) Dump() map[string]map[string]map[string]cachefs.DumpEntry {
	return f.dump
}

func TestUpload_Success(t *testing.T) {
	api := New(&fakeCache{}, zerolog.Nop())
	res := api.upload("p", "1.0", "linux", "k", []byte("hello"))
	assert.Equal(t, 201, res.status)
}

func TestUpload_AlreadyExists(t *testing.T) {
	api := New(&fakeCache{uploadErr: &cachefs.ErrAlreadyExists{Path: "x"}}, zerolog.Nop())
	res := api.upload("p", "1.0", "linux", "k", []byte("hello"))
	assert.Equal(t, 409, res.status)

	var body map[string]string
	require.NoError(t, json.Unmarshal(res.body, &body))
	assert.Contains(t, body, "error")
}

func TestDownload_Success(t *testing.T) {
	api := New(&fakeCache{payload: []byte("hello")}, zerolog.Nop())
	res := api.download("p", "1.0", "linux", "k")
	assert.Equal(t, 200, res.status)
	assert.Equal(t, []byte("hello"), res.body)
	assert.Equal(t, "application/octet-stream", res.contentType)
}

func TestDownload_NotFound(t *testing.T) {
	api := New(&fakeCache{downloadErr: &cachefs.ErrNotFound{Path: "x"}}, zerolog.Nop())
	res := api.download("p", "1.0", "linux", "k")
	assert.Equal(t, 404, res.status)
}

func TestAddAlias_SourceNotFound(t *testing.T) {
	api := New(&fakeCache{aliasErr: &cachefs.ErrNotFound{Path: "x"}}, zerolog.Nop())
	res := api.addAlias("p", "1.0", "linux", "k", "k2")
	assert.Equal(t, 409, res.status)
}

func TestAddAlias_AlreadyExists(t *testing.T) {
	api := New(&fakeCache{aliasErr: &cachefs.ErrAlreadyExists{Path: "x"}}, zerolog.Nop())
	res := api.addAlias("p", "1.0", "linux", "k", "k2")
	assert.Equal(t, 409, res.status)
}

func TestMetadata_EmptyDump(t *testing.T) {
	api := New(&fakeCache{}, zerolog.Nop())
	res := api.metadata()
	assert.Equal(t, 200, res.status)
	assert.JSONEq(t, "{}", string(res.body))
}

func TestHelp_ListsAllRoutes(t *testing.T) {
	api := New(&fakeCache{}, zerolog.Nop())
	res := api.help()
	assert.Equal(t, 200, res.status)
	assert.Contains(t, string(res.body), "POST /products/<product>/<version>/<platform>/<key>\n")
	assert.Contains(t, string(res.body), "add_alias")
	assert.Contains(t, string(res.body), "GET /products/<product>/<version>/<platform>/<key>\n")
	assert.Contains(t, string(res.body), "/products/metadata")
	assert.Contains(t, string(res.body), "GET /help")
}
