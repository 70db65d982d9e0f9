package cachefs

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Recorder receives cache events for metrics instrumentation. Cache accepts
// one optionally; cachefs never imports the metrics package directly, so
// the two can be tested independently.
type Recorder interface {
	RecordUpload(product, platform string)
	RecordUploadRejected(product, platform string)
	RecordDownload(product, platform string, hit bool)
	RecordAliasCreated(product, platform string)
	RecordAliasRejected(product, platform string)
	RecordEviction(product, platform, rule string)
	ObserveSlotSize(product, platform string, n int)
}

type noopRecorder struct{}

func (noopRecorder) RecordUpload(string, string)           {}
func (noopRecorder) RecordUploadRejected(string, string)   {}
func (noopRecorder) RecordDownload(string, string, bool)   {}
func (noopRecorder) RecordAliasCreated(string, string)     {}
func (noopRecorder) RecordAliasRejected(string, string)    {}
func (noopRecorder) RecordEviction(string, string, string) {}
func (noopRecorder) ObserveSlotSize(string, string, int)   {}

// Cache is the request coordinator: a single process-wide mutex guards
// every read and write of the in-memory index and every filesystem
// mutation performed on its behalf.
type Cache struct {
	mu       sync.Mutex
	idx      *index
	root     string
	log      zerolog.Logger
	recorder Recorder
	now      func() time.Time // injectable for tests
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithRecorder attaches a metrics Recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Cache) { c.recorder = r }
}

// WithClock overrides the time source (tests only).
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New builds a Cache rooted at root, performing an initial recovery pass
// exactly like every subsequent maintenance pass.
func New(root string, log zerolog.Logger, opts ...Option) (*Cache, error) {
	c := &Cache{
		root:     root,
		log:      log,
		recorder: noopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	idx, err := rebuild(root, c.now(), log, c.recorder)
	if err != nil {
		return nil, err
	}
	c.idx = idx
	return c, nil
}

// Upload stores payload as a new entry for (product, version, platform,
// key). Returns ErrAlreadyExists if the tuple already resolves to a live
// entry.
func (c *Cache) Upload(product, version, platform, key string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e := newEntry(now)

	canonical, err := c.idx.createEntry(product, platform, version, key, e)
	if err != nil {
		c.recorder.RecordUploadRejected(product, platform)
		return err
	}

	if writeErr := writeEntry(canonical, payload, e); writeErr != nil {
		// Roll back the in-memory placement and remove whatever partial
		// directory writeEntry left behind; the write never committed.
		c.idx.evictCanonical(product, platform, canonical)
		if removeErr := removeEntryDir(canonical); removeErr != nil {
			c.log.Warn().Err(removeErr).Str("path", canonical).Msg("failed to remove orphaned entry directory after write failure")
		}
		return writeErr
	}

	c.recorder.RecordUpload(product, platform)
	c.log.Info().Str("product", product).Str("platform", platform).Str("version", version).Str("key", key).Msg("stored new cache item")

	evictSlotIn(c.idx, product, platform, now, Cap, c.log, c.recorder)
	if s, ok := c.idx.lookupSlot(product, platform); ok {
		c.recorder.ObserveSlotSize(product, platform, len(s.entries))
	}
	return nil
}

// Download returns the payload for (product, version, platform, key),
// crediting a touch to the resolved canonical entry. Returns ErrNotFound if
// the tuple does not resolve.
func (c *Cache) Download(product, version, platform, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	canonical, ok := c.idx.resolve(product, platform, version, key)
	if !ok {
		c.recorder.RecordDownload(product, platform, false)
		return nil, &ErrNotFound{Path: c.idx.canonicalPath(product, platform, version, key)}
	}

	s, _ := c.idx.lookupSlot(product, platform)
	e, _ := s.get(canonical)

	payload, err := readPayload(canonical)
	if err != nil {
		return nil, err
	}

	e.touch(c.now())
	if err := e.save(canonical); err != nil {
		c.log.Error().Err(err).Str("path", canonical).Msg("failed to persist touched metadata")
	}

	c.recorder.RecordDownload(product, platform, true)
	return payload, nil
}

// AddAlias creates keyAlias as an alias of key within the same (product,
// version, platform). The source must resolve to a live entry; returns
// ErrNotFound otherwise, or ErrAlreadyExists if the alias tuple collides
// with an entry, alias, or filesystem object already present in the slot.
func (c *Cache) AddAlias(product, version, platform, key, keyAlias string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	aliasCanonical := c.idx.aliasPath(product, platform, version, keyAlias)
	if fsObjectExists(aliasCanonical) {
		c.recorder.RecordAliasRejected(product, platform)
		return &ErrAlreadyExists{Path: aliasCanonical}
	}

	canonical, _, err := c.idx.createAlias(product, platform, version, key, keyAlias)
	if err != nil {
		c.recorder.RecordAliasRejected(product, platform)
		return err
	}

	if err := createAliasLink(aliasCanonical, canonical); err != nil {
		s, _ := c.idx.lookupSlot(product, platform)
		delete(s.aliases, aliasCanonical)
		return err
	}

	c.recorder.RecordAliasCreated(product, platform)
	c.log.Info().Str("product", product).Str("platform", platform).Str("alias", keyAlias).Str("source", key).Msg("created alias")
	return nil
}

// Maintenance runs a full recovery-and-eviction pass, exactly equivalent to
// the startup pass, under the same coordinator lock.
func (c *Cache) Maintenance() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := rebuild(c.root, c.now(), c.log, c.recorder)
	if err != nil {
		return err
	}
	c.idx = idx
	return nil
}

// DumpEntry is the per-item shape returned by Dump.
type DumpEntry struct {
	PostTime     string   `json:"post_time"`
	UseCount     int64    `json:"use_count"`
	AgedUseCount float64  `json:"aged_use_count"`
	LastTime     string   `json:"last_time"`
	Aliases      []string `json:"aliases,omitempty"`
}

// Dump returns the full metadata tree: product -> platform -> basename ->
// entry, with each entry's aliases attached as a list of basenames.
func (c *Cache) Dump() map[string]map[string]map[string]DumpEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]map[string]map[string]DumpEntry, len(c.idx.products))
	for product, platforms := range c.idx.products {
		platformOut := make(map[string]map[string]DumpEntry, len(platforms))
		for platform, s := range platforms {
			aliasesByTarget := make(map[string][]string)
			for alias, target := range s.aliases {
				aliasesByTarget[target] = append(aliasesByTarget[target], base(alias))
			}

			entriesOut := make(map[string]DumpEntry, len(s.entries))
			for path, e := range s.entries {
				j := e.toJSON()
				entriesOut[base(path)] = DumpEntry{
					PostTime:     j.PostTime,
					UseCount:     j.UseCount,
					AgedUseCount: j.AgedUseCount,
					LastTime:     j.LastTime,
					Aliases:      aliasesByTarget[path],
				}
			}
			platformOut[platform] = entriesOut
		}
		out[product] = platformOut
	}
	return out
}
