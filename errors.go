package snapvault

import (
	"errors"
	"fmt"
)

// Exit classes, matching the CLI contract: user errors are things the
// caller can fix, integrity errors mean stored data failed
// verification, and I/O errors are everything the filesystem threw at
// us that we couldn't classify further.
const (
	ClassUser      = 1
	ClassIntegrity = 2
	ClassIO        = 3
)

// classer is implemented by all snapvault error types.
type classer interface {
	Class() int
}

// ErrorClass maps any error to an exit class.  Unrecognized errors are
// treated as I/O failures.
func ErrorClass(err error) int {
	var c classer
	if errors.As(err, &c) {
		return c.Class()
	}
	return ClassIO
}

type RepoExistsError struct {
	Root string
}

func (e *RepoExistsError) Error() string {
	return fmt.Sprintf("repository already exists: %s", e.Root)
}

func (e *RepoExistsError) Class() int { return ClassUser }

type RepoNotFoundError struct {
	Root string
}

func (e *RepoNotFoundError) Error() string {
	return fmt.Sprintf("repository not found: %s", e.Root)
}

func (e *RepoNotFoundError) Class() int { return ClassUser }

// NotRepoError means the root exists but carries no parseable config.
type NotRepoError struct {
	Root string
}

func (e *NotRepoError) Error() string {
	return fmt.Sprintf("not a snapvault repository: %s", e.Root)
}

func (e *NotRepoError) Class() int { return ClassUser }

type VersionError struct {
	Version int
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("unsupported repository version: %d (expected %d)", e.Version, RepoVersion)
}

func (e *VersionError) Class() int { return ClassUser }

type CorruptRepoError struct {
	Root string
	Why  string
}

func (e *CorruptRepoError) Error() string {
	return fmt.Sprintf("corrupt repository %s: %s", e.Root, e.Why)
}

func (e *CorruptRepoError) Class() int { return ClassIntegrity }

type SourceError struct {
	Path   string
	NotDir bool
}

func (e *SourceError) Error() string {
	if e.NotDir {
		return fmt.Sprintf("source is not a directory: %s", e.Path)
	}
	return fmt.Sprintf("source not found: %s", e.Path)
}

func (e *SourceError) Class() int { return ClassUser }

type SnapshotNotFoundError struct {
	ID string
}

func (e *SnapshotNotFoundError) Error() string {
	if e.ID == "" {
		return "no snapshots in repository"
	}
	return fmt.Sprintf("snapshot not found: %s", e.ID)
}

func (e *SnapshotNotFoundError) Class() int { return ClassUser }

type InvalidIdError struct {
	ID  string
	Why string
}

func (e *InvalidIdError) Error() string {
	return fmt.Sprintf("invalid snapshot id %q: %s", e.ID, e.Why)
}

func (e *InvalidIdError) Class() int { return ClassUser }

type TraversalError struct {
	Path string
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("unsafe path: %q", e.Path)
}

func (e *TraversalError) Class() int { return ClassUser }

type DestNotEmptyError struct {
	Dest string
}

func (e *DestNotEmptyError) Error() string {
	return fmt.Sprintf("destination not empty: %s", e.Dest)
}

func (e *DestNotEmptyError) Class() int { return ClassUser }

type ChunkMissingError struct {
	Hash string
}

func (e *ChunkMissingError) Error() string {
	return fmt.Sprintf("chunk missing: %s", e.Hash)
}

func (e *ChunkMissingError) Class() int { return ClassIntegrity }

// ChunkCorruptError reports a chunk whose bytes no longer hash to its
// address.  File is the restore target being assembled when the
// mismatch surfaced, if any.
type ChunkCorruptError struct {
	Hash string
	File string
}

func (e *ChunkCorruptError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("chunk corrupt: %s (restoring %s)", e.Hash, e.File)
	}
	return fmt.Sprintf("chunk corrupt: %s", e.Hash)
}

func (e *ChunkCorruptError) Class() int { return ClassIntegrity }

type CorruptIndexError struct {
	Path string
	Why  string
}

func (e *CorruptIndexError) Error() string {
	return fmt.Sprintf("corrupt index %s: %s", e.Path, e.Why)
}

func (e *CorruptIndexError) Class() int { return ClassIntegrity }

type CorruptManifestError struct {
	Path string
	Why  string
}

func (e *CorruptManifestError) Error() string {
	return fmt.Sprintf("corrupt manifest %s: %s", e.Path, e.Why)
}

func (e *CorruptManifestError) Class() int { return ClassIntegrity }

// SelectorError reports a malformed delete selector: either both of
// --snapshot and --all, or neither.
type SelectorError struct {
	Both bool
}

func (e *SelectorError) Error() string {
	if e.Both {
		return "delete: --snapshot and --all are mutually exclusive"
	}
	return "delete: exactly one of --snapshot or --all is required"
}

func (e *SelectorError) Class() int { return ClassUser }
