package snapvault

import (
	"time"

	"github.com/google/uuid"
)

// MaxIdLen is the longest snapshot id accepted from manifest filenames
// or the CLI.
const MaxIdLen = 128

// NewSnapshotID returns a fresh snapshot id: a second-resolution UTC
// timestamp, a dash, and the first eight hex digits of a random UUID.
// The timestamp keeps ids roughly sortable by creation time; the UUID
// tail keeps two backups within the same second from colliding.
func NewSnapshotID() string {
	ts := time.Now().UTC().Format("20060102T150405Z")
	return ts + "-" + uuid.New().String()[:8]
}

// ValidateSnapshotID accepts ids of 1..MaxIdLen characters drawn from
// [A-Za-z0-9_-], with no leading dot.  Everything else -- separators,
// NUL, dots, unicode -- is rejected before the id ever touches a
// filesystem path.
func ValidateSnapshotID(id string) error {
	if id == "" {
		return &InvalidIdError{ID: id, Why: "empty"}
	}
	if len(id) > MaxIdLen {
		return &InvalidIdError{ID: id, Why: "too long"}
	}
	if id[0] == '.' {
		return &InvalidIdError{ID: id, Why: "leading dot"}
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return &InvalidIdError{ID: id, Why: "bad character"}
		}
	}
	return nil
}
