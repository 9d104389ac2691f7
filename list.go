package snapvault

import (
	"sort"
)

// List loads every manifest in the repository, newest first (creation
// time descending, ties broken by id ascending).  A manifest that
// fails to load fails the whole listing; a repository with a corrupt
// manifest needs attention, not silence.
func List(repo *Repo) (manifests []*Manifest, err error) {
	ids, err := repo.SnapshotIDs()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		m, err := LoadManifest(repo, id)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}
	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].Newer(manifests[j])
	})
	return manifests, nil
}
