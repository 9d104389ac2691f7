/*

Snapvault is a local snapshot backup engine built on a
content-addressed, deduplicating chunk store.

Vocabulary:

- repository: a directory owned by snapvault, holding config.json,
  index.json, the snapshots dir, and the chunk data dir
- chunk: up to one fixed-size window of file bytes; deduplication atom;
  stored once as a file named after its hash
- hash: lowercase hex BLAKE3 digest of chunk bytes; both identity and
  storage address within the chunk store
- shard: two-character hex prefix subdirectory under data/chunks that
  keeps any one directory from collecting too many entries
- manifest: per-snapshot JSON record binding relative file paths to
  ordered chunk hash lists
- snapshot: immutable point-in-time capture of a source directory,
  represented by one manifest
- index: JSON map from chunk hash to the set of snapshot ids that
  reference it; drives safe deletion
- orphan: a chunk whose referrer set has become empty and must be
  removed from disk

A backup walks the source tree in deterministic order, splits each
regular file into fixed-size windows, stores the windows that are not
already present, and writes a manifest plus updated index.  Restore
reassembles files by concatenating verified chunks.  Delete removes a
snapshot from every chunk's referrer set and reclaims the chunks that
end up unreferenced.

All metadata writes go through write-temp-then-rename so a crash never
leaves a half-written config, index, or manifest in place.  Chunk
writes use the same pattern with a content-named temp sibling.

*/
package snapvault
