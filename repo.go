package snapvault

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio"
	log "github.com/sirupsen/logrus"
	. "github.com/stevegt/goadapt"
)

const (
	// RepoVersion is the on-disk format version this engine reads and
	// writes.
	RepoVersion = 1

	// DefaultChunkSize is the fixed chunking window: 1 MiB.
	DefaultChunkSize = 1 << 20

	// MinChunkSize and MaxChunkSize bound the window a config may ask
	// for.  Smaller windows drown the index in entries; larger ones
	// make the read buffer a memory hazard.
	MinChunkSize = 64 << 10
	MaxChunkSize = 16 << 20

	// HashName is the only hash algorithm this version understands.
	HashName = "blake3"

	// MaxConfigSize caps the config.json read.
	MaxConfigSize = 1 << 20
)

// Config is the repository sentinel, stored as config.json at the
// repository root.  Unknown keys are preserved-by-ignoring so newer
// writers don't break older readers.
type Config struct {
	Version   int    `json:"version"`
	ChunkSize int    `json:"chunk_size"`
	Hash      string `json:"hash"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Repo is an open repository handle.  The config is read once at Open
// and cached here.
type Repo struct {
	Root   string
	Config Config
}

// Init creates a new repository at root.  The root may be missing or
// an existing empty directory; anything else fails.  A failure partway
// through leaves no partial repository behind.
func Init(root string) (repo *Repo, err error) {
	root = filepath.Clean(root)

	existed := canstat(root)
	if existed {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			return nil, &RepoExistsError{Root: root}
		}
	}

	err = initLayout(root)
	if err != nil {
		// leave the filesystem the way we found it
		if existed {
			for _, name := range []string{"snapshots", "data", "config.json", "index.json"} {
				os.RemoveAll(filepath.Join(root, name))
			}
		} else {
			os.RemoveAll(root)
		}
		return nil, err
	}

	log.Debugf("initialized repository at %s", root)
	return Open(root)
}

func initLayout(root string) (err error) {
	defer Return(&err)

	err = mkdir(root, 0700)
	Ck(err)
	// mkdir is a no-op on a pre-existing (empty) root; make the mode
	// owner-only either way
	err = os.Chmod(root, 0700)
	Ck(err)
	err = mkdir(filepath.Join(root, "snapshots"), 0755)
	Ck(err)
	err = mkdir(filepath.Join(root, "data", "chunks"), 0755)
	Ck(err)

	conf := Config{
		Version:   RepoVersion,
		ChunkSize: DefaultChunkSize,
		Hash:      HashName,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	buf, err := json.Marshal(conf)
	Ck(err)
	err = renameio.WriteFile(filepath.Join(root, "config.json"), buf, 0644)
	Ck(err)
	err = renameio.WriteFile(filepath.Join(root, "index.json"), []byte("{}"), 0644)
	Ck(err)
	return
}

// Open validates root and returns a repository handle.
func Open(root string) (repo *Repo, err error) {
	root = filepath.Clean(root)

	if !canstat(root) {
		return nil, &RepoNotFoundError{Root: root}
	}
	confpath := filepath.Join(root, "config.json")
	if !canstat(confpath) {
		return nil, &NotRepoError{Root: root}
	}
	buf, ok, err := readCapped(confpath, MaxConfigSize)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &CorruptRepoError{Root: root, Why: "oversize config.json"}
	}
	var conf Config
	err = json.Unmarshal(buf, &conf)
	if err != nil {
		return nil, &NotRepoError{Root: root}
	}
	if conf.Version != RepoVersion {
		return nil, &VersionError{Version: conf.Version}
	}
	if conf.ChunkSize == 0 {
		conf.ChunkSize = DefaultChunkSize
	}
	if conf.ChunkSize < MinChunkSize {
		conf.ChunkSize = MinChunkSize
	}
	if conf.ChunkSize > MaxChunkSize {
		conf.ChunkSize = MaxChunkSize
	}

	return &Repo{Root: root, Config: conf}, nil
}

// SnapshotsDir returns the directory holding manifests.
func (repo *Repo) SnapshotsDir() string {
	return filepath.Join(repo.Root, "snapshots")
}

// ChunkDir returns the root of the chunk store.
func (repo *Repo) ChunkDir() string {
	return filepath.Join(repo.Root, "data", "chunks")
}

// IndexPath returns the location of the reference index.
func (repo *Repo) IndexPath() string {
	return filepath.Join(repo.Root, "index.json")
}

// SnapshotPath computes the manifest path for id, re-validating the id
// as defense in depth -- ids reach here from manifest filenames and
// the CLI as well as from our own generator.
func (repo *Repo) SnapshotPath(id string) (path string, err error) {
	err = ValidateSnapshotID(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(repo.SnapshotsDir(), id+".json"), nil
}

// Store returns the chunk store bound to this repository.
func (repo *Repo) Store() *Store {
	return &Store{Dir: repo.ChunkDir()}
}

// SnapshotIDs enumerates the ids of all manifests on disk, ascending.
// Filenames that don't look like valid manifest names are ignored.
func (repo *Repo) SnapshotIDs() (ids []string, err error) {
	entries, err := os.ReadDir(repo.SnapshotsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &CorruptRepoError{Root: repo.Root, Why: "missing snapshots directory"}
		}
		return nil, err
	}
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		if ValidateSnapshotID(id) != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
