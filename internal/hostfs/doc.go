package hostfs

// Package hostfs provides safe access helpers for the managed host
// filesystem.
//
// The mount root defaults to /host (container deployments bind-mount the
// host filesystem there) and can be moved with SetRoot, e.g. to "/" when
// running directly on the host or to a scratch directory in tests.
//
// Expected layout under the root:
//   etc/passwd, etc/shadow, etc/group
//   home/...
