package provision

// Package provision ensures accounts have SSH keypairs and matching
// authorized_keys entries.
//
// Invariants:
//   - an existing id_rsa is never regenerated or overwritten
//   - the account's public key line appears in authorized_keys at least
//     once and is never duplicated
//   - .ssh is 0700, id_rsa 0600, id_rsa.pub 0644, authorized_keys 0600,
//     all owned by the account, re-asserted on every call
//
// Group provisioning resolves explicit members plus accounts whose primary
// gid matches, and reports one Outcome per account; a failing account never
// stops its siblings.
