package accounts

// Package accounts is the OS account database: line-preserving parsers for
// passwd/shadow/group plus lookups and file-based create/delete operations.
//
// The files live under the hostfs mount root:
//   /host/etc/passwd
//   /host/etc/shadow
//   /host/etc/group
//
// Reads always hit the files so callers see live host state; writes go
// through hostfs.WriteFileAtomic.
