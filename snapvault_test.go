package snapvault

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stevegt/readercomp"
)

const testRepoPrefix = "snapvault"

// test boolean condition
func tassert(t *testing.T, cond bool, txt string, args ...interface{}) {
	t.Helper() // cause file:line info to show caller
	if !cond {
		t.Fatalf(txt, args...)
	}
}

// setup initializes a fresh repository under a temp dir.  With DEBUG=1
// the dir survives the test for manual poking.
func setup(t *testing.T) *Repo {
	var dir string
	var err error
	if os.Getenv("DEBUG") == "1" {
		dir, err = ioutil.TempDir("", testRepoPrefix)
		tassert(t, err == nil, "%v", err)
		fmt.Println(dir)
		// manual cleanup
	} else {
		dir = t.TempDir()
	}
	repo, err := Init(filepath.Join(dir, "repo"))
	tassert(t, err == nil, "%v", err)
	return repo
}

func mkbuf(s string) []byte {
	return []byte(s)
}

// writeFile creates rel (slash-separated) under root with the given
// content, making parents as needed.
func writeFile(t *testing.T, root, rel string, buf []byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	err := os.MkdirAll(filepath.Dir(path), 0755)
	tassert(t, err == nil, "%v", err)
	err = os.WriteFile(path, buf, 0644)
	tassert(t, err == nil, "%v", err)
}

// mksource builds a source dir with the given rel->content files.
func mksource(t *testing.T, files map[string][]byte) (dir string) {
	t.Helper()
	dir = filepath.Join(t.TempDir(), "src")
	err := os.MkdirAll(dir, 0755)
	tassert(t, err == nil, "%v", err)
	for rel, buf := range files {
		writeFile(t, dir, rel, buf)
	}
	return dir
}

// filesEqual compares two files byte for byte.
func filesEqual(t *testing.T, a, b string) bool {
	t.Helper()
	fa, err := os.Open(a)
	tassert(t, err == nil, "%v", err)
	defer fa.Close()
	fb, err := os.Open(b)
	tassert(t, err == nil, "%v", err)
	defer fb.Close()
	ok, err := readercomp.Equal(fa, fb, 4096)
	tassert(t, err == nil, "%v", err)
	return ok
}

// zeros returns n zero bytes.
func zeros(n int) []byte {
	return make([]byte, n)
}

// fill returns n copies of b.
func fill(b byte, n int) []byte {
	return bytes.Repeat([]byte{b}, n)
}

// countChunkFiles walks the store and counts blobs on disk.
func countChunkFiles(t *testing.T, repo *Repo) (n int) {
	t.Helper()
	err := repo.Store().Walk(func(hash string, size int64) error {
		n++
		return nil
	})
	tassert(t, err == nil, "%v", err)
	return n
}
