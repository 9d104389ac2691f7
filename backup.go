package snapvault

import (
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"
)

// Backup captures the directory at source into a new snapshot and
// returns its manifest.  Chunks land on disk before the manifest that
// references them, and the manifest lands before the index is saved,
// so a crash at any point leaves at worst orphan chunks -- never a
// manifest or index entry pointing at bytes that don't exist.
func Backup(repo *Repo, source string) (m *Manifest, err error) {
	info, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &SourceError{Path: source}
		}
		return nil, errors.Wrapf(err, "statting source %s", source)
	}
	if !info.IsDir() {
		return nil, &SourceError{Path: source, NotDir: true}
	}
	absSource, err := filepath.Abs(source)
	if err != nil {
		return nil, err
	}

	id, err := freshID(repo)
	if err != nil {
		return nil, err
	}
	// XXX no repository lock: two concurrent backups race on
	// index.json and the later save wins; callers must serialize
	// mutating operations externally for now
	idx, err := LoadIndex(repo.IndexPath())
	if err != nil {
		return nil, err
	}
	st := repo.Store()

	m = &Manifest{
		ID:         id,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		SourceRoot: absSource,
		Files:      []FileRecord{},
	}
	seen := make(map[string]bool)
	var stored int64

	err = filepath.WalkDir(source, func(path string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return errors.Wrapf(werr, "walking %s", path)
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			// symlinks, devices, sockets, FIFOs
			log.Debugf("skipping non-regular file %s", path)
			return nil
		}
		rel, rerr := filepath.Rel(source, path)
		if rerr != nil {
			return rerr
		}
		relSlash := filepath.ToSlash(rel)
		if verr := SafeRelPath(relSlash); verr != nil {
			return verr
		}
		rec, rerr := backupFile(st, path, relSlash, repo.Config.ChunkSize, seen, &stored)
		if rerr != nil {
			return rerr
		}
		m.Files = append(m.Files, rec)
		m.Stats.TotalSize += rec.Size
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.Stats.FileCount = int64(len(m.Files))
	m.Stats.UniqueChunks = int64(len(seen))
	m.Stats.StoredSize = stored

	idx.Add(id, m.ChunkHashes())

	err = m.Save(repo)
	if err != nil {
		return nil, err
	}
	err = idx.Save()
	if err != nil {
		return nil, err
	}
	log.Debugf("backup %s: %d files, %d unique chunks, %d bytes stored",
		id, m.Stats.FileCount, m.Stats.UniqueChunks, stored)
	return m, nil
}

// freshID generates a snapshot id not already present on disk.
func freshID(repo *Repo) (id string, err error) {
	for {
		id = NewSnapshotID()
		path, err := repo.SnapshotPath(id)
		if err != nil {
			return "", err
		}
		if !canstat(path) {
			return id, nil
		}
		log.Debugf("snapshot id collision on %s, rerolling", id)
	}
}

// backupFile chunks one regular file into the store and returns its
// record.  Size is the byte count actually read, so the record always
// agrees with its chunk list even if the file is being appended to
// while we read it.
func backupFile(st *Store, path, relSlash string, chunkSize int, seen map[string]bool, stored *int64) (rec FileRecord, err error) {
	fh, err := os.Open(path)
	if err != nil {
		return rec, errors.Wrapf(err, "opening %s", path)
	}
	defer fh.Close()

	rec = FileRecord{Path: relSlash, Chunks: []string{}}
	if info, serr := fh.Stat(); serr == nil {
		rec.Modified = info.ModTime().UTC().Format(time.RFC3339)
	}

	whole := blake3.New()
	chunker := NewChunker(fh, chunkSize)
	for {
		chunk, cerr := chunker.Next()
		if cerr == io.EOF {
			break
		}
		if cerr != nil {
			return rec, errors.Wrapf(cerr, "reading %s", path)
		}
		hash, reused, perr := st.Put(chunk)
		if perr != nil {
			return rec, perr
		}
		if !reused {
			*stored += int64(len(chunk))
		}
		seen[hash] = true
		rec.Chunks = append(rec.Chunks, hash)
		rec.Size += int64(len(chunk))
		whole.Write(chunk)
	}
	rec.ContentHash = hex.EncodeToString(whole.Sum(nil))
	return rec, nil
}
