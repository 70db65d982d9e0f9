package cachefs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// writeEntry creates dir and populates it with the payload and metadata
// files every entry directory must contain.
func writeEntry(dir string, payload []byte, e *Entry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, payloadFileName), payload, 0o644); err != nil {
		return err
	}
	return e.save(dir)
}

// readPayload reads the opaque payload bytes for an entry directory.
func readPayload(dir string) ([]byte, error) {
	return os.ReadFile(filepath.Join(dir, payloadFileName))
}

// fsObjectExists reports whether anything (file, directory, or symlink)
// already exists at path.
func fsObjectExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// base is filepath.Base, named for readability at call sites that deal
// exclusively in cache paths.
func base(path string) string {
	return filepath.Base(path)
}

// createAliasLink creates a relative symlink at aliasDir whose link text is
// the basename of canonicalDir, never an absolute path: this lets the cache
// root be relocated without breaking every alias under it.
func createAliasLink(aliasDir, canonicalDir string) error {
	return os.Symlink(filepath.Base(canonicalDir), aliasDir)
}

// removeEntryDir deletes an entry's payload directory.
func removeEntryDir(dir string) error {
	return os.RemoveAll(dir)
}

// removeAliasLink deletes an alias symlink.
func removeAliasLink(path string) error {
	return os.Remove(path)
}

// rebuild reconstructs the in-memory index from the on-disk tree rooted at
// root: non-symlink children of a platform directory are candidate entries;
// symlink children are candidate aliases. Corrupt entries and dangling
// aliases are removed from disk as they're found, and logged; neither is
// ever surfaced to clients.
func rebuild(root string, now time.Time, log zerolog.Logger, rec Recorder) (*index, error) {
	ix := newIndex(root)

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}

	productDirs, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	for _, productDirEnt := range productDirs {
		if !productDirEnt.IsDir() {
			continue
		}
		product := productDirEnt.Name()
		productPath := filepath.Join(root, product)

		platformDirs, err := os.ReadDir(productPath)
		if err != nil {
			log.Warn().Err(err).Str("product", product).Msg("cannot read product directory")
			continue
		}

		for _, platformDirEnt := range platformDirs {
			if !platformDirEnt.IsDir() {
				continue
			}
			platform := platformDirEnt.Name()
			platformPath := filepath.Join(productPath, platform)
			rebuildPlatform(ix, product, platform, platformPath, log)
		}

		removeIfEmptyDir(productPath, log)
	}

	// Prune in-memory slots/products left empty by rebuildPlatform.
	for product, platforms := range ix.products {
		for platform, s := range platforms {
			if s.empty() {
				delete(platforms, platform)
			}
		}
		if len(platforms) == 0 {
			delete(ix.products, product)
		}
	}

	runEviction(ix, now, 0, log, rec)

	return ix, nil
}

// rebuildPlatform loads every candidate entry and alias within one
// (product, platform) directory.
func rebuildPlatform(ix *index, product, platform, platformPath string, log zerolog.Logger) {
	children, err := os.ReadDir(platformPath)
	if err != nil {
		log.Warn().Err(err).Str("product", product).Str("platform", platform).Msg("cannot read platform directory")
		return
	}

	s := ix.slotFor(product, platform)

	// Pass 1: non-symlink directories are candidate entries.
	for _, child := range children {
		info, err := os.Lstat(filepath.Join(platformPath, child.Name()))
		if err != nil {
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			continue
		}
		if !info.IsDir() {
			continue
		}

		entryPath := filepath.Join(platformPath, child.Name())
		e, err := loadEntry(entryPath)
		if err != nil {
			log.Warn().Str("path", entryPath).Err(err).Msg("removing incomplete cache item")
			_ = removeEntryDir(entryPath)
			continue
		}
		s.insert(entryPath, e)
	}

	// Pass 2: symlinks are candidate aliases.
	for _, child := range children {
		linkPath := filepath.Join(platformPath, child.Name())
		info, err := os.Lstat(linkPath)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			continue
		}

		target, err := os.Readlink(linkPath)
		if err != nil {
			_ = removeAliasLink(linkPath)
			continue
		}

		resolvedTarget := target
		if !filepath.IsAbs(target) {
			resolvedTarget = filepath.Join(platformPath, target)
		}

		if _, ok := s.entries[resolvedTarget]; ok {
			s.aliases[linkPath] = resolvedTarget
		} else {
			log.Warn().Str("path", linkPath).Str("target", resolvedTarget).Msg("removing dangling alias")
			_ = removeAliasLink(linkPath)
		}
	}

	if s.empty() {
		removeIfEmptyDir(platformPath, log)
	}
}

// removeIfEmptyDir removes dir if it has no remaining children, keeping
// platform and product directories from accumulating once their last
// entry or alias is gone.
func removeIfEmptyDir(dir string, log zerolog.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	if len(entries) == 0 {
		if err := os.Remove(dir); err != nil {
			log.Warn().Str("path", dir).Err(err).Msg("cannot remove empty directory")
		}
	}
}

// runEviction drives the eviction loop to completion for every slot in ix,
// removing victims from both the in-memory index and disk. now is sampled
// once by the caller so a single pass judges every slot against the same
// instant.
func runEviction(ix *index, now time.Time, minKeep int, log zerolog.Logger, rec Recorder) {
	for product, platforms := range ix.products {
		for platform, s := range platforms {
			evictSlot(s, product, platform, now, minKeep, log, rec)
			ix.pruneEmpty(product, platform)
		}
	}
}

// evictSlotIn runs the eviction loop against a single (product, platform)
// slot and prunes the slot if it has gone empty. Used by the write path,
// which only needs to re-check the slot it just wrote to rather than
// walking the whole tree.
func evictSlotIn(ix *index, product, platform string, now time.Time, minKeep int, log zerolog.Logger, rec Recorder) {
	s, ok := ix.lookupSlot(product, platform)
	if !ok {
		return
	}
	evictSlot(s, product, platform, now, minKeep, log, rec)
	ix.pruneEmpty(product, platform)
}

func evictSlot(s *slot, product, platform string, now time.Time, minKeep int, log zerolog.Logger, rec Recorder) {
	for {
		decision, evict := nextEviction(s, now, minKeep)
		if !evict {
			break
		}
		log.Info().
			Str("product", product).
			Str("platform", platform).
			Str("path", decision.victim.path).
			Str("rule", decision.rule).
			Float64("usage_metric", decision.victim.metric).
			Msg("evicting cache item")
		rec.RecordEviction(product, platform, decision.rule)

		var deadAliases []string
		for alias, target := range s.aliases {
			if target == decision.victim.path {
				deadAliases = append(deadAliases, alias)
			}
		}

		s.delete(decision.victim.path)
		if err := removeEntryDir(decision.victim.path); err != nil {
			log.Warn().Str("path", decision.victim.path).Err(err).Msg("failed to remove evicted item directory")
		}
		for _, alias := range deadAliases {
			if err := removeAliasLink(alias); err != nil {
				log.Warn().Str("path", alias).Err(err).Msg("failed to remove evicted alias link")
			}
		}
	}
}
