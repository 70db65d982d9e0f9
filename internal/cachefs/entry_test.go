package cachefs

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntry(t *testing.T) {
	now := time.Now()
	e := newEntry(now)

	assert.Equal(t, now, e.PostTime)
	assert.Equal(t, now, e.LastTime)
	assert.EqualValues(t, 1, e.UseCount)
	assert.InDelta(t, 1.0, e.AgedUseCount, 1e-9)
}

func TestAgedAt_NoDecayOnSkew(t *testing.T) {
	now := time.Now()
	e := newEntry(now)

	// A "now" before LastTime must never amplify the count.
	past := now.Add(-time.Hour)
	assert.InDelta(t, e.AgedUseCount, e.agedAt(past), 1e-9)
}

func TestAgedAt_HalfLifeDecay(t *testing.T) {
	now := time.Now()
	e := newEntry(now)
	e.AgedUseCount = 4

	later := now.Add(halfLife)
	assert.InDelta(t, 2.0, e.agedAt(later), 1e-9)

	twoHalfLives := now.Add(2 * halfLife)
	assert.InDelta(t, 1.0, e.agedAt(twoHalfLives), 1e-9)
}

func TestTouch_DecaysThenReinforces(t *testing.T) {
	now := time.Now()
	e := newEntry(now)
	e.AgedUseCount = 4

	later := now.Add(halfLife)
	e.touch(later)

	assert.InDelta(t, 3.0, e.AgedUseCount, 1e-9) // decayed to 2, +1
	assert.EqualValues(t, 2, e.UseCount)
	assert.Equal(t, later, e.LastTime)
}

func TestEntry_JSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	now := time.Now().Truncate(time.Second)

	e := newEntry(now)
	e.touch(now.Add(time.Minute))

	require.NoError(t, writeEntry(dir, []byte("payload"), e))

	loaded, err := loadEntry(dir)
	require.NoError(t, err)

	assert.Equal(t, e.PostTime.Format(dateLayout), loaded.PostTime.Format(dateLayout))
	assert.Equal(t, e.LastTime.Format(dateLayout), loaded.LastTime.Format(dateLayout))
	assert.Equal(t, e.UseCount, loaded.UseCount)
	assert.InDelta(t, e.AgedUseCount, loaded.AgedUseCount, 1e-9)
}

func TestLoadEntry_MissingPayload(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	require.NoError(t, newEntry(now).save(dir))

	_, err := loadEntry(dir)
	require.Error(t, err)
	var corrupt *ErrCorruptEntry
	assert.ErrorAs(t, err, &corrupt)
}

func TestLoadEntry_MalformedMetadata(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeEntry(dir, []byte("payload"), newEntry(time.Now())))
	require.NoError(t, os.WriteFile(dir+"/metadata.json", []byte("not json"), 0o644))

	_, err := loadEntry(dir)
	require.Error(t, err)
	var corrupt *ErrCorruptEntry
	assert.ErrorAs(t, err, &corrupt)
}
