package snapvault

import (
	"os"
	"sort"

	log "github.com/sirupsen/logrus"
)

// VerifyReport is the result of a repository consistency pass.  Each
// field is one way the three-way agreement between manifests, index,
// and chunk files can break.
type VerifyReport struct {
	// MissingChunks are indexed hashes with no chunk file on disk.
	MissingChunks []string
	// CorruptChunks are chunk files whose bytes no longer hash to
	// their name.
	CorruptChunks []string
	// Unindexed are chunk files on disk that the index doesn't know.
	// Harmless storage, typically left by a crashed backup.
	Unindexed []string
	// Unreferenced are index keys no surviving manifest references.
	Unreferenced []string
	// MissingRefs are manifest-referenced hashes absent from the
	// index.
	MissingRefs []string
	// TempsRemoved counts stale temp files cleaned up.
	TempsRemoved int
}

// Clean reports whether the repository passed every check.
func (r *VerifyReport) Clean() bool {
	return len(r.MissingChunks) == 0 &&
		len(r.CorruptChunks) == 0 &&
		len(r.Unindexed) == 0 &&
		len(r.Unreferenced) == 0 &&
		len(r.MissingRefs) == 0
}

// Verify cross-checks manifests, index, and chunk store, re-hashing
// every chunk file on the way.  Read-only except for sweeping stale
// temp files left by interrupted writes.
func Verify(repo *Repo) (report *VerifyReport, err error) {
	report = &VerifyReport{}

	idx, err := LoadIndex(repo.IndexPath())
	if err != nil {
		return nil, err
	}
	rebuilt, err := RebuildIndex(repo)
	if err != nil {
		return nil, err
	}
	st := repo.Store()

	onDisk := make(map[string]bool)
	err = st.Walk(func(hash string, size int64) error {
		onDisk[hash] = true
		if _, gerr := st.Get(hash); gerr != nil {
			if _, ok := gerr.(*ChunkCorruptError); ok {
				report.CorruptChunks = append(report.CorruptChunks, hash)
				return nil
			}
			return gerr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, hash := range idx.Hashes() {
		if !onDisk[hash] {
			report.MissingChunks = append(report.MissingChunks, hash)
		}
		if !rebuilt.Has(hash) {
			report.Unreferenced = append(report.Unreferenced, hash)
		}
	}
	for _, hash := range rebuilt.Hashes() {
		if !idx.Has(hash) {
			report.MissingRefs = append(report.MissingRefs, hash)
		}
	}
	diskHashes := make([]string, 0, len(onDisk))
	for hash := range onDisk {
		diskHashes = append(diskHashes, hash)
	}
	report.Unindexed = idx.Orphans(diskHashes)

	temps, err := st.StaleTemps()
	if err != nil {
		return nil, err
	}
	for _, path := range temps {
		if rerr := os.Remove(path); rerr != nil {
			log.Warnf("could not remove stale temp %s: %v", path, rerr)
			continue
		}
		report.TempsRemoved++
	}

	sort.Strings(report.MissingChunks)
	sort.Strings(report.CorruptChunks)
	sort.Strings(report.Unreferenced)
	sort.Strings(report.MissingRefs)
	return report, nil
}
