package snapvault

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Selector names what delete should remove: one snapshot by id, or
// all of them.  Construct with NewSelector so the one-of-exactly-one
// rule is enforced at the API boundary, mirroring the CLI's
// --snapshot/--all exclusivity.
type Selector struct {
	id  string
	all bool
}

func NewSelector(id string, all bool) (sel Selector, err error) {
	if id != "" && all {
		return sel, &SelectorError{Both: true}
	}
	if id == "" && !all {
		return sel, &SelectorError{}
	}
	return Selector{id: id, all: all}, nil
}

// Delete removes the selected snapshots and reclaims chunks that end
// up unreferenced.  Returns the ids actually deleted.
func Delete(repo *Repo, sel Selector) (deleted []string, err error) {
	if !sel.all {
		err = deleteOne(repo, sel.id)
		if err != nil {
			return nil, err
		}
		return []string{sel.id}, nil
	}

	ids, err := repo.SnapshotIDs()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		err = deleteOne(repo, id)
		if err != nil {
			return deleted, err
		}
		deleted = append(deleted, id)
	}

	// with every snapshot gone the store and index should be empty;
	// residue means something was corrupt before we started
	idx, err := LoadIndex(repo.IndexPath())
	if err == nil && idx.Len() > 0 {
		log.Warnf("index still holds %d chunks after delete --all", idx.Len())
	}
	residue := 0
	repo.Store().Walk(func(hash string, size int64) error {
		residue++
		return nil
	})
	if residue > 0 {
		log.Warnf("chunk store still holds %d chunks after delete --all", residue)
	}
	return deleted, nil
}

// deleteOne removes a single snapshot.  Ordering matters: the orphans
// are computed from the index before any chunk file is unlinked, the
// index is saved after the unlinks, and the manifest goes last.  A
// crash before the manifest is removed leaves it in place, so rerunning
// delete finishes the job (Remove treats an absent chunk as success).
func deleteOne(repo *Repo, id string) (err error) {
	path, err := repo.SnapshotPath(id)
	if err != nil {
		return err
	}
	if !canstat(path) {
		return &SnapshotNotFoundError{ID: id}
	}

	idx, err := LoadIndex(repo.IndexPath())
	if err != nil {
		return err
	}
	orphans := idx.RemoveSnapshot(id)

	st := repo.Store()
	for _, hash := range orphans {
		rerr := st.Remove(hash)
		if rerr != nil {
			// the saved index will no longer reference the chunk, so the
			// file stays behind as an unindexed chunk that verify reports
			log.Warnf("could not remove orphan chunk %s: %v", hash, rerr)
		}
	}

	err = idx.Save()
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if err != nil {
		return err
	}
	log.Debugf("deleted snapshot %s, reclaimed %d chunks", id, len(orphans))
	return nil
}
