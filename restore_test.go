package snapvault

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRestoreByID(t *testing.T) {
	repo := setup(t)
	src := mksource(t, map[string][]byte{"a.txt": mkbuf("abc")})
	m, err := Backup(repo, src)
	tassert(t, err == nil, "%v", err)

	dst := filepath.Join(t.TempDir(), "out")
	got, err := Restore(repo, dst, m.ID)
	tassert(t, err == nil, "%v", err)
	tassert(t, got.ID == m.ID, "restored %q", got.ID)
	tassert(t, filesEqual(t, filepath.Join(src, "a.txt"), filepath.Join(dst, "a.txt")),
		"content differs")
}

func TestRestoreLatest(t *testing.T) {
	repo := setup(t)
	// crafted manifests with controlled timestamps; no chunks needed
	old := &Manifest{ID: "snap-old", CreatedAt: "2026-01-01T00:00:00Z", SourceRoot: "/s", Files: []FileRecord{}}
	cur := &Manifest{ID: "snap-new", CreatedAt: "2026-06-01T00:00:00Z", SourceRoot: "/s", Files: []FileRecord{}}
	tassert(t, old.Save(repo) == nil, "save failed")
	tassert(t, cur.Save(repo) == nil, "save failed")

	dst := filepath.Join(t.TempDir(), "out")
	got, err := Restore(repo, dst, "")
	tassert(t, err == nil, "%v", err)
	tassert(t, got.ID == "snap-new", "latest is %q", got.ID)
}

func TestRestoreLatestTieBreak(t *testing.T) {
	repo := setup(t)
	a := &Manifest{ID: "snap-a", CreatedAt: "2026-01-01T00:00:00Z", SourceRoot: "/s", Files: []FileRecord{}}
	b := &Manifest{ID: "snap-b", CreatedAt: "2026-01-01T00:00:00Z", SourceRoot: "/s", Files: []FileRecord{}}
	tassert(t, a.Save(repo) == nil, "save failed")
	tassert(t, b.Save(repo) == nil, "save failed")

	dst := filepath.Join(t.TempDir(), "out")
	got, err := Restore(repo, dst, "")
	tassert(t, err == nil, "%v", err)
	tassert(t, got.ID == "snap-a", "tie resolved to %q, want snap-a", got.ID)
}

func TestRestoreNoSnapshots(t *testing.T) {
	repo := setup(t)
	dst := filepath.Join(t.TempDir(), "out")
	_, err := Restore(repo, dst, "")
	_, ok := err.(*SnapshotNotFoundError)
	tassert(t, ok, "wrong error type %T", err)
}

func TestRestoreUnknownID(t *testing.T) {
	repo := setup(t)
	dst := filepath.Join(t.TempDir(), "out")
	_, err := Restore(repo, dst, "nosuch")
	_, ok := err.(*SnapshotNotFoundError)
	tassert(t, ok, "wrong error type %T", err)
}

func TestRestoreDestNotEmpty(t *testing.T) {
	repo := setup(t)
	src := mksource(t, map[string][]byte{"a.txt": mkbuf("abc")})
	m, err := Backup(repo, src)
	tassert(t, err == nil, "%v", err)

	dst := filepath.Join(t.TempDir(), "out")
	writeFile(t, dst, "occupied.txt", mkbuf("x"))
	_, err = Restore(repo, dst, m.ID)
	_, ok := err.(*DestNotEmptyError)
	tassert(t, ok, "wrong error type %T", err)

	// a plain file as destination is just as unusable
	plain := filepath.Join(t.TempDir(), "plain.txt")
	err = os.WriteFile(plain, mkbuf("x"), 0644)
	tassert(t, err == nil, "%v", err)
	_, err = Restore(repo, plain, m.ID)
	_, ok = err.(*DestNotEmptyError)
	tassert(t, ok, "wrong error type %T", err)
}

func TestRestoreIntoExistingEmptyDir(t *testing.T) {
	repo := setup(t)
	src := mksource(t, map[string][]byte{"a.txt": mkbuf("abc")})
	m, err := Backup(repo, src)
	tassert(t, err == nil, "%v", err)

	dst := filepath.Join(t.TempDir(), "out")
	err = os.MkdirAll(dst, 0755)
	tassert(t, err == nil, "%v", err)
	_, err = Restore(repo, dst, m.ID)
	tassert(t, err == nil, "%v", err)
}

func TestRestoreCorruptChunk(t *testing.T) {
	repo := setup(t)
	src := mksource(t, map[string][]byte{"a.txt": mkbuf("some file content")})
	m, err := Backup(repo, src)
	tassert(t, err == nil, "%v", err)

	// same-length garbage defeats any size check; only the re-hash
	// catches it
	hash := m.Files[0].Chunks[0]
	st := repo.Store()
	err = os.WriteFile(st.Path(hash), fill('x', len("some file content")), 0644)
	tassert(t, err == nil, "%v", err)

	dst := filepath.Join(t.TempDir(), "out")
	_, err = Restore(repo, dst, m.ID)
	ce, ok := err.(*ChunkCorruptError)
	tassert(t, ok, "wrong error type %T", err)
	tassert(t, ce.Hash == hash, "error names %q, want %q", ce.Hash, hash)
	tassert(t, ce.File == "a.txt", "error names file %q", ce.File)
	tassert(t, ErrorClass(err) == ClassIntegrity, "wrong class %d", ErrorClass(err))
}

func TestRestoreTraversalManifest(t *testing.T) {
	repo := setup(t)
	// a manifest like this cannot come out of Backup; plant one
	writeManifest(t, repo, "evil-snap", `{"id":"evil-snap","created_at":"2026-01-01T00:00:00Z","source_root":"/s",
		"files":[{"path":"../evil","size":1,"chunks":[]}],"stats":{}}`)

	dst := filepath.Join(t.TempDir(), "out")
	_, err := Restore(repo, dst, "evil-snap")
	_, ok := err.(*TraversalError)
	tassert(t, ok, "wrong error type %T", err)
	// it must fail before any file is created
	tassert(t, !canstat(filepath.Join(filepath.Dir(dst), "evil")), "escaped file written")
}

func TestRestoreIdempotent(t *testing.T) {
	repo := setup(t)
	src := mksource(t, map[string][]byte{"a.txt": mkbuf("abc"), "d/e.txt": mkbuf("de")})
	m, err := Backup(repo, src)
	tassert(t, err == nil, "%v", err)

	for i := 0; i < 2; i++ {
		dst := filepath.Join(t.TempDir(), "out")
		_, err = Restore(repo, dst, m.ID)
		tassert(t, err == nil, "round %d: %v", i, err)
		tassert(t, filesEqual(t, filepath.Join(src, "a.txt"), filepath.Join(dst, "a.txt")),
			"round %d differs", i)
	}
}
