package snapvault

import (
	"strings"
	"testing"
)

func TestValidateSnapshotID(t *testing.T) {
	good := []string{
		"a",
		"A1_-",
		"20240101T120000Z-abc123",
		strings.Repeat("x", 128),
	}
	for _, id := range good {
		err := ValidateSnapshotID(id)
		tassert(t, err == nil, "%q rejected: %v", id, err)
	}

	bad := []string{
		"",
		".foo",
		"a/b",
		"a\\b",
		"a\x00b",
		"a.b",
		"snap shot",
		strings.Repeat("x", 129),
	}
	for _, id := range bad {
		err := ValidateSnapshotID(id)
		tassert(t, err != nil, "%q accepted", id)
		_, ok := err.(*InvalidIdError)
		tassert(t, ok, "%q: wrong error type %T", id, err)
	}
}

func TestNewSnapshotID(t *testing.T) {
	a := NewSnapshotID()
	b := NewSnapshotID()
	tassert(t, ValidateSnapshotID(a) == nil, "generated id %q invalid", a)
	tassert(t, ValidateSnapshotID(b) == nil, "generated id %q invalid", b)
	tassert(t, a != b, "generated ids collide: %q", a)
}
