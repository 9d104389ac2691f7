package snapvault

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Restore materializes a snapshot under dest.  An empty id selects the
// most recent snapshot.  dest must be missing (it is created) or an
// existing empty directory.  Already-written files are left in place
// on failure; the caller discards the destination.
func Restore(repo *Repo, dest, id string) (m *Manifest, err error) {
	if id == "" {
		id, err = latestID(repo)
		if err != nil {
			return nil, err
		}
	}
	m, err = LoadManifest(repo, id)
	if err != nil {
		return nil, err
	}

	if canstat(dest) {
		info, serr := os.Stat(dest)
		if serr != nil {
			return nil, serr
		}
		if !info.IsDir() {
			return nil, &DestNotEmptyError{Dest: dest}
		}
		entries, serr := os.ReadDir(dest)
		if serr != nil {
			return nil, serr
		}
		if len(entries) > 0 {
			return nil, &DestNotEmptyError{Dest: dest}
		}
	} else {
		err = os.MkdirAll(dest, 0755)
		if err != nil {
			return nil, errors.Wrapf(err, "creating destination %s", dest)
		}
	}

	st := repo.Store()
	for _, rec := range m.Files {
		err = restoreFile(st, dest, rec)
		if err != nil {
			return nil, err
		}
	}
	log.Debugf("restored %s: %d files into %s", id, len(m.Files), dest)
	return m, nil
}

// latestID resolves the default snapshot: newest created_at, ties
// broken by id ascending.
func latestID(repo *Repo) (id string, err error) {
	manifests, err := List(repo)
	if err != nil {
		return "", err
	}
	if len(manifests) == 0 {
		return "", &SnapshotNotFoundError{}
	}
	return manifests[0].ID, nil
}

// restoreFile reassembles one file from its chunk list.  The path was
// validated when the manifest loaded; it is re-checked here anyway
// because this is the join that could escape the destination.
func restoreFile(st *Store, dest string, rec FileRecord) (err error) {
	err = SafeRelPath(rec.Path)
	if err != nil {
		return err
	}
	target := filepath.Join(dest, filepath.FromSlash(rec.Path))
	err = os.MkdirAll(filepath.Dir(target), 0755)
	if err != nil {
		return errors.Wrapf(err, "creating parents for %s", rec.Path)
	}
	fh, err := os.Create(target)
	if err != nil {
		return errors.Wrapf(err, "creating %s", rec.Path)
	}
	defer fh.Close()

	// a record with no chunks is an empty file; Create already made it
	for _, hash := range rec.Chunks {
		buf, gerr := st.Get(hash)
		if gerr != nil {
			if ce, ok := gerr.(*ChunkCorruptError); ok {
				ce.File = rec.Path
			}
			return gerr
		}
		_, werr := fh.Write(buf)
		if werr != nil {
			return errors.Wrapf(werr, "writing %s", rec.Path)
		}
	}
	return nil
}
