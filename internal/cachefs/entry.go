// Package cachefs implements the filesystem-backed, alias-aware cache index:
// per-blob usage accounting, two-rule eviction, and on-disk recovery.
package cachefs

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// dateLayout matches the original service's metadata timestamp format
// exactly: second resolution, no timezone suffix, local time.
const dateLayout = "2006-01-02 15:04:05"

// halfLife is the usage-metric decay period (spec: 7 days).
const halfLife = 7 * 24 * time.Hour

// Entry is the accounting record kept alongside every cached blob.
//
// PostTime never changes after creation. UseCount is monotonic. AgedUseCount
// is the half-life-decayed running count that eviction ranks on. LastTime is
// the wall-clock instant of the most recent touch (or of creation).
type Entry struct {
	PostTime     time.Time
	UseCount     int64
	AgedUseCount float64
	LastTime     time.Time
}

// newEntry creates the metadata for a freshly uploaded blob.
func newEntry(now time.Time) *Entry {
	return &Entry{
		PostTime:     now,
		UseCount:     1,
		AgedUseCount: 1,
		LastTime:     now,
	}
}

// agedAt returns the usage metric at instant now: the aged count decayed by
// elapsed time since the last touch. Clock skew (now before LastTime) never
// amplifies the count — it is returned unchanged.
func (e *Entry) agedAt(now time.Time) float64 {
	delta := now.Sub(e.LastTime).Seconds()
	if delta <= 0 {
		return e.AgedUseCount
	}
	return e.AgedUseCount * math.Pow(2, -delta/halfLife.Seconds())
}

// usageMetric is the sole ranking term used by the eviction engine.
func (e *Entry) usageMetric(now time.Time) float64 {
	return e.agedAt(now)
}

// touch records a read: the aged count is decayed then reinforced by one,
// in that order, and the use count is incremented. Callers persist the
// entry after calling touch.
func (e *Entry) touch(now time.Time) {
	e.UseCount++
	e.AgedUseCount = e.agedAt(now) + 1
	e.LastTime = now
}

// entryJSON is the exact on-disk shape: four fields, nothing more.
type entryJSON struct {
	PostTime     string  `json:"post_time"`
	UseCount     int64   `json:"use_count"`
	AgedUseCount float64 `json:"aged_use_count"`
	LastTime     string  `json:"last_time"`
}

// toJSON renders the entry for persistence.
func (e *Entry) toJSON() entryJSON {
	return entryJSON{
		PostTime:     e.PostTime.Format(dateLayout),
		UseCount:     e.UseCount,
		AgedUseCount: e.AgedUseCount,
		LastTime:     e.LastTime.Format(dateLayout),
	}
}

// metadataFileName and payloadFileName are the two files every entry
// directory must contain.
const (
	metadataFileName = "metadata.json"
	payloadFileName  = "file"
)

// ErrCorruptEntry signals that an entry directory could not be loaded: its
// payload file is missing, or its metadata is unparseable. Recovery handles
// this locally (removes the directory); it is never surfaced to clients.
type ErrCorruptEntry struct {
	Path   string
	Reason string
}

func (e *ErrCorruptEntry) Error() string {
	return fmt.Sprintf("corrupt entry at %s: %s", e.Path, e.Reason)
}

// loadEntry reads metadata.json and confirms the payload file exists. It
// never reads the payload itself (that happens on demand in Download).
func loadEntry(dir string) (*Entry, error) {
	if _, err := os.Stat(filepath.Join(dir, payloadFileName)); err != nil {
		return nil, &ErrCorruptEntry{Path: dir, Reason: "missing payload file"}
	}

	raw, err := os.ReadFile(filepath.Join(dir, metadataFileName))
	if err != nil {
		return nil, &ErrCorruptEntry{Path: dir, Reason: "missing metadata.json"}
	}

	var data entryJSON
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &ErrCorruptEntry{Path: dir, Reason: "malformed metadata.json: " + err.Error()}
	}

	postTime, err := time.ParseInLocation(dateLayout, strings.TrimSpace(data.PostTime), time.Local)
	if err != nil {
		return nil, &ErrCorruptEntry{Path: dir, Reason: "unparseable post_time"}
	}
	lastTime, err := time.ParseInLocation(dateLayout, strings.TrimSpace(data.LastTime), time.Local)
	if err != nil {
		return nil, &ErrCorruptEntry{Path: dir, Reason: "unparseable last_time"}
	}

	return &Entry{
		PostTime:     postTime,
		UseCount:     data.UseCount,
		AgedUseCount: data.AgedUseCount,
		LastTime:     lastTime,
	}, nil
}

// save writes metadata.json into dir, overwriting any previous version.
func (e *Entry) save(dir string) error {
	raw, err := json.MarshalIndent(e.toJSON(), "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, metadataFileName), raw, 0o644)
}
