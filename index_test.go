package snapvault

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func testindex(t *testing.T) *Index {
	idx, err := LoadIndex(filepath.Join(t.TempDir(), "index.json"))
	tassert(t, err == nil, "%v", err)
	return idx
}

func TestIndexAdd(t *testing.T) {
	idx := testindex(t)
	h1 := HashBytes(mkbuf("one"))
	h2 := HashBytes(mkbuf("two"))

	idx.Add("s1", []string{h1, h2})
	idx.Add("s2", []string{h1})
	// idempotent per (hash, id)
	idx.Add("s1", []string{h1})

	tassert(t, idx.Len() == 2, "len %d, want 2", idx.Len())
	refs := idx.Referrers(h1)
	tassert(t, len(refs) == 2, "h1 referrers %v", refs)
	tassert(t, refs[0] == "s1" && refs[1] == "s2", "referrers not sorted: %v", refs)
	refs = idx.Referrers(h2)
	tassert(t, len(refs) == 1 && refs[0] == "s1", "h2 referrers %v", refs)
}

func TestIndexRemoveSnapshot(t *testing.T) {
	idx := testindex(t)
	h1 := HashBytes(mkbuf("one"))
	h2 := HashBytes(mkbuf("two"))
	h3 := HashBytes(mkbuf("three"))

	idx.Add("s1", []string{h1, h2, h3})
	idx.Add("s2", []string{h2})

	orphans := idx.RemoveSnapshot("s1")
	tassert(t, len(orphans) == 2, "orphans %v, want 2", orphans)
	for _, h := range orphans {
		tassert(t, h == h1 || h == h3, "unexpected orphan %s", h)
	}
	tassert(t, orphans[0] < orphans[1], "orphans not sorted")

	// h2 survives with s2 as its only referrer
	tassert(t, idx.Len() == 1, "len %d, want 1", idx.Len())
	refs := idx.Referrers(h2)
	tassert(t, len(refs) == 1 && refs[0] == "s2", "h2 referrers %v", refs)

	// unknown snapshot removes nothing
	orphans = idx.RemoveSnapshot("nosuch")
	tassert(t, len(orphans) == 0, "orphans %v for unknown snapshot", orphans)
}

func TestIndexSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	idx, err := LoadIndex(path)
	tassert(t, err == nil, "%v", err)
	h1 := HashBytes(mkbuf("one"))
	h2 := HashBytes(mkbuf("two"))
	idx.Add("s2", []string{h1})
	idx.Add("s1", []string{h1, h2})

	err = idx.Save()
	tassert(t, err == nil, "%v", err)

	// on-disk form: hash -> sorted unique id array
	buf, err := os.ReadFile(path)
	tassert(t, err == nil, "%v", err)
	var flat map[string][]string
	err = json.Unmarshal(buf, &flat)
	tassert(t, err == nil, "%v", err)
	tassert(t, len(flat) == 2, "flat len %d", len(flat))
	tassert(t, len(flat[h1]) == 2, "h1 ids %v", flat[h1])
	tassert(t, flat[h1][0] == "s1" && flat[h1][1] == "s2", "h1 ids not sorted: %v", flat[h1])

	reloaded, err := LoadIndex(path)
	tassert(t, err == nil, "%v", err)
	tassert(t, reloaded.Len() == 2, "reloaded len %d", reloaded.Len())
	refs := reloaded.Referrers(h1)
	tassert(t, len(refs) == 2, "reloaded h1 referrers %v", refs)
}

func TestIndexLoadMissing(t *testing.T) {
	idx, err := LoadIndex(filepath.Join(t.TempDir(), "nonexistent.json"))
	tassert(t, err == nil, "%v", err)
	tassert(t, idx.Len() == 0, "missing index not empty")
}

func TestIndexLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	err := os.WriteFile(path, mkbuf("{not json"), 0644)
	tassert(t, err == nil, "%v", err)

	_, err = LoadIndex(path)
	tassert(t, err != nil, "corrupt index loaded")
	_, ok := err.(*CorruptIndexError)
	tassert(t, ok, "wrong error type %T", err)
	tassert(t, ErrorClass(err) == ClassIntegrity, "wrong class %d", ErrorClass(err))
}

func TestIndexLoadBadHashKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	err := os.WriteFile(path, mkbuf(`{"nothex": ["s1"]}`), 0644)
	tassert(t, err == nil, "%v", err)

	_, err = LoadIndex(path)
	tassert(t, err != nil, "index with malformed key loaded")
	_, ok := err.(*CorruptIndexError)
	tassert(t, ok, "wrong error type %T", err)
}

func TestIndexOrphans(t *testing.T) {
	idx := testindex(t)
	h1 := HashBytes(mkbuf("one"))
	h2 := HashBytes(mkbuf("two"))
	idx.Add("s1", []string{h1})

	orphans := idx.Orphans([]string{h1, h2})
	tassert(t, len(orphans) == 1 && orphans[0] == h2, "orphans %v", orphans)
}
