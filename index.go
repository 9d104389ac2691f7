package snapvault

import (
	"encoding/json"
	"sort"

	"github.com/google/renameio"
	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"
)

// MaxIndexSize caps the index.json read at 512 MiB.
const MaxIndexSize = 512 << 20

// Index is the reference database: chunk hash -> set of snapshot ids.
// The in-memory form is the source of truth for the duration of an
// operation; Save persists it at commit points (end of backup, end of
// delete).
//
// Two invariants bind it to the rest of the repository: every key has
// a chunk file on disk and a non-empty referrer set, and every chunk
// file on disk appears as a key.
type Index struct {
	Path string
	refs map[string]map[string]bool
}

// LoadIndex reads and parses the index file.  A missing file loads as
// an empty index so a repository whose index was lost can still be
// rebuilt.
func LoadIndex(path string) (idx *Index, err error) {
	idx = &Index{Path: path, refs: make(map[string]map[string]bool)}
	if !canstat(path) {
		log.Debugf("no index at %s, starting empty", path)
		return idx, nil
	}
	buf, ok, err := readCapped(path, MaxIndexSize)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &CorruptIndexError{Path: path, Why: "file exceeds size cap"}
	}
	var flat map[string][]string
	err = json.Unmarshal(buf, &flat)
	if err != nil {
		return nil, &CorruptIndexError{Path: path, Why: err.Error()}
	}
	for hash, ids := range flat {
		if !ValidHash(hash) {
			return nil, &CorruptIndexError{Path: path, Why: "malformed chunk hash " + hash}
		}
		set := make(map[string]bool, len(ids))
		for _, id := range ids {
			set[id] = true
		}
		idx.refs[hash] = set
	}
	log.Debugf("loaded index with %d chunks", len(idx.refs))
	return idx, nil
}

// Add records that snapshot id references each of hashes.  Idempotent
// per (hash, id) pair.
func (idx *Index) Add(id string, hashes []string) {
	for _, hash := range hashes {
		set := idx.refs[hash]
		if set == nil {
			set = make(map[string]bool)
			idx.refs[hash] = set
		}
		set[id] = true
	}
}

// RemoveSnapshot deletes id from every referrer set and returns the
// hashes whose sets became empty, sorted.  Those keys are gone from
// the index when this returns; the caller owns removing the chunk
// files.
func (idx *Index) RemoveSnapshot(id string) (orphans []string) {
	for hash, set := range idx.refs {
		if !set[id] {
			continue
		}
		delete(set, id)
		if len(set) == 0 {
			delete(idx.refs, hash)
			orphans = append(orphans, hash)
		}
	}
	sort.Strings(orphans)
	return orphans
}

// Referrers returns the snapshot ids referencing hash, sorted.  Nil
// when the hash is unknown.
func (idx *Index) Referrers(hash string) (ids []string) {
	set := idx.refs[hash]
	if set == nil {
		return nil
	}
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Has reports whether hash is a key in the index.
func (idx *Index) Has(hash string) bool {
	return idx.refs[hash] != nil
}

// Hashes returns every chunk hash in the index, sorted.
func (idx *Index) Hashes() (hashes []string) {
	for hash := range idx.refs {
		hashes = append(hashes, hash)
	}
	sort.Strings(hashes)
	return hashes
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int {
	return len(idx.refs)
}

// Save serializes the index and replaces the file atomically.  A
// failed Save leaves the previous file intact.  Referrer arrays are
// written sorted and duplicate-free so the on-disk form is
// deterministic.
func (idx *Index) Save() (err error) {
	defer Return(&err)
	flat := make(map[string][]string, len(idx.refs))
	for hash := range idx.refs {
		flat[hash] = idx.Referrers(hash)
	}
	buf, err := json.MarshalIndent(flat, "", "  ")
	Ck(err)
	err = renameio.WriteFile(idx.Path, buf, 0644)
	Ck(err)
	log.Debugf("saved index with %d chunks", len(idx.refs))
	return
}

// Orphans returns the members of diskHashes that are not indexed --
// chunk files on disk that no snapshot accounts for.  Harmless
// storage, but verify wants to report them.
func (idx *Index) Orphans(diskHashes []string) (orphans []string) {
	for _, hash := range diskHashes {
		if !idx.Has(hash) {
			orphans = append(orphans, hash)
		}
	}
	sort.Strings(orphans)
	return orphans
}

// RebuildIndex reconstructs a reference index from the manifests on
// disk.  It does not save; the caller decides whether to commit the
// rebuilt view.
func RebuildIndex(repo *Repo) (idx *Index, err error) {
	idx = &Index{Path: repo.IndexPath(), refs: make(map[string]map[string]bool)}
	manifests, err := List(repo)
	if err != nil {
		return nil, err
	}
	for _, m := range manifests {
		idx.Add(m.ID, m.ChunkHashes())
	}
	return idx, nil
}
