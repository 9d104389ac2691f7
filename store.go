package snapvault

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

// HashSize is the digest length in bytes; hex-rendered hashes are
// twice this.
const HashSize = 32

// HashBytes returns the content address of buf: the lowercase hex
// BLAKE3 digest.
func HashBytes(buf []byte) string {
	sum := blake3.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// ValidHash reports whether s is a well-formed content address: 64
// lowercase hex characters.
func ValidHash(s string) bool {
	if len(s) != 2*HashSize {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Store is a content-addressed blob repository rooted at Dir.  A chunk
// with hash H lives at Dir/H[:2]/H; the two-character shard keeps any
// single directory to a workable size.
type Store struct {
	Dir string
}

// Path computes the blob location for a hash.
func (st *Store) Path(hash string) string {
	return filepath.Join(st.Dir, hash[:2], hash)
}

// Has is a pure existence check.
func (st *Store) Has(hash string) bool {
	return canstat(st.Path(hash))
}

// Put stores buf under its content address.  Writes go to a temp
// sibling first, are synced, and then renamed into place, so a
// half-written chunk is never visible under its final name.  When the
// chunk is already present -- before the write, or at rename time
// because a concurrent writer got there first -- Put reports
// reused=true without clobbering anything.
func (st *Store) Put(buf []byte) (hash string, reused bool, err error) {
	hash = HashBytes(buf)
	if st.Has(hash) {
		return hash, true, nil
	}

	dest := st.Path(hash)
	shard := filepath.Dir(dest)
	err = mkdir(shard, 0755)
	if err != nil {
		return "", false, errors.Wrapf(err, "creating shard %s", shard)
	}

	tmp, err := os.CreateTemp(shard, hash+".tmp-*")
	if err != nil {
		return "", false, errors.Wrapf(err, "creating temp for %s", hash)
	}
	tmpname := tmp.Name()
	_, err = tmp.Write(buf)
	if err == nil {
		err = tmp.Sync()
	}
	cerr := tmp.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpname)
		return "", false, errors.Wrapf(err, "writing chunk %s", hash)
	}

	// a concurrent Put of the same content may have won the race
	// between our Has check and here; the bytes are identical either
	// way, so the loser just discards its temp
	if st.Has(hash) {
		os.Remove(tmpname)
		return hash, true, nil
	}
	err = os.Rename(tmpname, dest)
	if err != nil {
		os.Remove(tmpname)
		return "", false, errors.Wrapf(err, "placing chunk %s", hash)
	}
	return hash, false, nil
}

// Get reads a chunk and verifies it still hashes to its address.  The
// store never returns unverified bytes.
func (st *Store) Get(hash string) (buf []byte, err error) {
	buf, err = os.ReadFile(st.Path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ChunkMissingError{Hash: hash}
		}
		return nil, errors.Wrapf(err, "reading chunk %s", hash)
	}
	if HashBytes(buf) != hash {
		return nil, &ChunkCorruptError{Hash: hash}
	}
	return buf, nil
}

// Remove deletes a chunk file.  An already-absent chunk is success --
// remove is how delete retries converge.  Emptied shard directories
// are pruned best-effort.
func (st *Store) Remove(hash string) (err error) {
	path := st.Path(hash)
	err = os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing chunk %s", hash)
	}
	shard := filepath.Dir(path)
	entries, err := os.ReadDir(shard)
	if err == nil && len(entries) == 0 {
		if rmerr := os.Remove(shard); rmerr != nil {
			log.Debugf("could not prune shard %s: %v", shard, rmerr)
		}
	}
	return nil
}

// Walk calls fn for every chunk file in the store with its hash and
// size.  Files that don't look like chunks (stale temps, strays) are
// skipped.  Used by verify; backup and restore never scan the store.
func (st *Store) Walk(fn func(hash string, size int64) error) (err error) {
	shards, err := os.ReadDir(st.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "scanning chunk store %s", st.Dir)
	}
	for _, shard := range shards {
		if !shard.IsDir() || len(shard.Name()) != 2 {
			continue
		}
		files, err := os.ReadDir(filepath.Join(st.Dir, shard.Name()))
		if err != nil {
			return errors.Wrapf(err, "scanning shard %s", shard.Name())
		}
		for _, f := range files {
			if f.IsDir() || !ValidHash(f.Name()) {
				continue
			}
			info, err := f.Info()
			if err != nil {
				return err
			}
			err = fn(f.Name(), info.Size())
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// StaleTemps returns leftover temp files from interrupted writes --
// anything under a shard directory carrying the tmp marker.
func (st *Store) StaleTemps() (paths []string, err error) {
	shards, err := os.ReadDir(st.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(st.Dir, shard.Name()))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if strings.Contains(f.Name(), ".tmp-") {
				paths = append(paths, filepath.Join(st.Dir, shard.Name(), f.Name()))
			}
		}
	}
	return paths, nil
}
