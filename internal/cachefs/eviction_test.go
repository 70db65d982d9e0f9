package cachefs

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFloor_Bounds(t *testing.T) {
	assert.InDelta(t, 0.2, floor(1), 1e-9)
	assert.InDelta(t, 0.4, floor(Cap), 1e-9)
}

func TestSelectVictim_TiesBrokenByPath(t *testing.T) {
	s := newSlot()
	now := time.Now()

	e1 := newEntry(now)
	e2 := newEntry(now)
	s.insert("/cache/p/linux/1.0_b", e1)
	s.insert("/cache/p/linux/1.0_a", e2)

	v, ok := selectVictim(s, now)
	assert.True(t, ok)
	assert.Equal(t, "/cache/p/linux/1.0_a", v.path, "equal metrics must break ties by path")
}

func TestNextEviction_HardCap(t *testing.T) {
	s := newSlot()
	now := time.Now()
	for i := 0; i < Cap+1; i++ {
		s.insert(fmt.Sprintf("/cache/p/linux/1.0_k%d", i), newEntry(now))
	}

	decision, evict := nextEviction(s, now, 0)
	assert.True(t, evict)
	assert.Equal(t, "hard_cap", decision.rule)
}

func TestNextEviction_AdaptiveFloor(t *testing.T) {
	s := newSlot()
	now := time.Now()
	e := newEntry(now.Add(-30 * 24 * time.Hour))
	e.LastTime = now.Add(-30 * 24 * time.Hour)
	s.insert("/cache/p/linux/1.0_stale", e)

	decision, evict := nextEviction(s, now, 0)
	assert.True(t, evict, "a heavily decayed single entry must fall below floor(1)=0.2")
	assert.Equal(t, "adaptive_floor", decision.rule)
}

func TestNextEviction_FreshEntryNeverBelowFloor(t *testing.T) {
	s := newSlot()
	now := time.Now()
	s.insert("/cache/p/linux/1.0_k", newEntry(now))

	_, evict := nextEviction(s, now, 0)
	assert.False(t, evict, "usage_metric=1.0 can never be below floor <= 0.4")
}

func TestNextEviction_StopsAtMinKeep(t *testing.T) {
	s := newSlot()
	now := time.Now()
	s.insert("/cache/p/linux/1.0_k", newEntry(now))

	_, evict := nextEviction(s, now, 1)
	assert.False(t, evict, "must not evict below minKeep even if otherwise eligible")
}
