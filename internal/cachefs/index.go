package cachefs

import "path/filepath"

// index is the in-memory two-level mapping product -> platform -> slot. It
// carries no lock of its own: the single coordinator mutex in cache.go
// guards every access.
type index struct {
	root string // cache root directory on disk

	products map[string]map[string]*slot
}

func newIndex(root string) *index {
	return &index{root: root, products: make(map[string]map[string]*slot)}
}

// slotFor returns the slot for (product, platform), creating it (and the
// product entry) if absent.
func (ix *index) slotFor(product, platform string) *slot {
	platforms, ok := ix.products[product]
	if !ok {
		platforms = make(map[string]*slot)
		ix.products[product] = platforms
	}
	s, ok := platforms[platform]
	if !ok {
		s = newSlot()
		platforms[platform] = s
	}
	return s
}

// lookupSlot returns the slot for (product, platform) without creating it.
func (ix *index) lookupSlot(product, platform string) (*slot, bool) {
	platforms, ok := ix.products[product]
	if !ok {
		return nil, false
	}
	s, ok := platforms[platform]
	return s, ok
}

// pruneEmpty removes the (product, platform) slot if it has gone empty, and
// the product itself if it now has no slots left.
func (ix *index) pruneEmpty(product, platform string) {
	platforms, ok := ix.products[product]
	if !ok {
		return
	}
	if s, ok := platforms[platform]; ok && s.empty() {
		delete(platforms, platform)
	}
	if len(platforms) == 0 {
		delete(ix.products, product)
	}
}

// canonicalPath derives the deterministic on-disk directory for a tuple:
// "<root>/<product>/<platform>/<version>_<key>".
func (ix *index) canonicalPath(product, platform, version, key string) string {
	return filepath.Join(ix.root, product, platform, version+"_"+key)
}

// aliasPath derives the on-disk path for an alias key within the same
// (product, platform, version) as its source.
func (ix *index) aliasPath(product, platform, version, keyAlias string) string {
	return filepath.Join(ix.root, product, platform, version+"_"+keyAlias)
}

// resolve computes the tentative canonical path, chases at most one alias
// hop, and confirms the result is a live entry.
func (ix *index) resolve(product, platform, version, key string) (canonical string, ok bool) {
	s, ok := ix.lookupSlot(product, platform)
	if !ok {
		return "", false
	}
	tentative := ix.canonicalPath(product, platform, version, key)
	return s.resolve(tentative)
}

// createEntry places a new entry at its canonical path. Write placement
// always targets the canonical path; it never follows aliases. Fails with
// ErrAlreadyExists if the tuple already resolves to a live entry.
func (ix *index) createEntry(product, platform, version, key string, e *Entry) (canonical string, err error) {
	canonical = ix.canonicalPath(product, platform, version, key)
	if _, ok := ix.resolve(product, platform, version, key); ok {
		return "", &ErrAlreadyExists{Path: canonical}
	}
	ix.slotFor(product, platform).insert(canonical, e)
	return canonical, nil
}

// createAlias links a new alias tuple to an existing source tuple within the
// same (product, platform, version). The source must resolve to a live
// entry; the alias tuple must not collide with any entry or alias already
// known in the slot (filesystem collisions are checked by the disk layer).
func (ix *index) createAlias(product, platform, version, key, keyAlias string) (canonical, aliasCanonical string, err error) {
	canonical, ok := ix.resolve(product, platform, version, key)
	if !ok {
		return "", "", &ErrNotFound{Path: ix.canonicalPath(product, platform, version, key)}
	}
	aliasCanonical = ix.aliasPath(product, platform, version, keyAlias)
	s := ix.slotFor(product, platform)
	if err := s.addAlias(aliasCanonical, canonical); err != nil {
		return "", "", err
	}
	return canonical, aliasCanonical, nil
}

// evictCanonical removes the in-memory entry and every alias pointing to it
// from the (product, platform) slot. Disk removal is the caller's
// responsibility (cache.go / disk.go).
func (ix *index) evictCanonical(product, platform, canonical string) {
	s, ok := ix.lookupSlot(product, platform)
	if !ok {
		return
	}
	s.delete(canonical)
	ix.pruneEmpty(product, platform)
}
