package snapvault

import (
	"encoding/json"

	"github.com/google/renameio"
)

// MaxManifestSize caps any single manifest read at 100 MiB.
const MaxManifestSize = 100 << 20

// FileRecord describes one regular file within a snapshot: a relative
// forward-slashed path, its length, and the ordered chunk hashes whose
// concatenation is the file content.  Modified and ContentHash are
// informational extras; readers that don't know them ignore them, and
// restore does not consult them.
type FileRecord struct {
	Path        string   `json:"path"`
	Size        int64    `json:"size"`
	Chunks      []string `json:"chunks"`
	Modified    string   `json:"modified,omitempty"`
	ContentHash string   `json:"content_hash,omitempty"`
}

// Stats carries the aggregates precomputed at backup time so list
// never has to rescan chunk files.
type Stats struct {
	FileCount    int64 `json:"file_count"`
	TotalSize    int64 `json:"total_size"`
	UniqueChunks int64 `json:"unique_chunks"`
	StoredSize   int64 `json:"stored_size"`
}

// Manifest is one snapshot, immutable once written.  SourceRoot is
// recorded for reporting only; restore never touches it.
type Manifest struct {
	ID         string       `json:"id"`
	CreatedAt  string       `json:"created_at"`
	SourceRoot string       `json:"source_root"`
	Files      []FileRecord `json:"files"`
	Stats      Stats        `json:"stats"`
}

// ChunkHashes returns the distinct chunk hashes referenced by the
// manifest, in first-appearance order.
func (m *Manifest) ChunkHashes() (hashes []string) {
	seen := make(map[string]bool)
	for _, f := range m.Files {
		for _, hash := range f.Chunks {
			if !seen[hash] {
				seen[hash] = true
				hashes = append(hashes, hash)
			}
		}
	}
	return hashes
}

// LoadManifest reads, parses, and sanity-checks the manifest for id.
// Every chunk hash and every file path is validated here, at the
// boundary, so nothing downstream ever handles a malformed address or
// an escaping path.
func LoadManifest(repo *Repo, id string) (m *Manifest, err error) {
	path, err := repo.SnapshotPath(id)
	if err != nil {
		return nil, err
	}
	if !canstat(path) {
		return nil, &SnapshotNotFoundError{ID: id}
	}
	buf, ok, err := readCapped(path, MaxManifestSize)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &CorruptManifestError{Path: path, Why: "file exceeds size cap"}
	}
	m = &Manifest{}
	err = json.Unmarshal(buf, m)
	if err != nil {
		return nil, &CorruptManifestError{Path: path, Why: err.Error()}
	}
	if m.ID != id {
		return nil, &CorruptManifestError{Path: path, Why: "id mismatch: " + m.ID}
	}
	for _, f := range m.Files {
		if err = SafeRelPath(f.Path); err != nil {
			return nil, err
		}
		for _, hash := range f.Chunks {
			if !ValidHash(hash) {
				return nil, &CorruptManifestError{Path: path, Why: "malformed chunk hash " + hash}
			}
		}
	}
	return m, nil
}

// Save writes the manifest atomically under snapshots/<id>.json.
func (m *Manifest) Save(repo *Repo) (err error) {
	path, err := repo.SnapshotPath(m.ID)
	if err != nil {
		return err
	}
	buf, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, buf, 0644)
}

// Newer orders manifests for list and latest-snapshot resolution:
// creation time descending, ties broken by id ascending.
func (m *Manifest) Newer(other *Manifest) bool {
	if m.CreatedAt != other.CreatedAt {
		return m.CreatedAt > other.CreatedAt
	}
	return m.ID < other.ID
}
