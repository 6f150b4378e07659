// Package server exposes account management, key provisioning and
// system reports over a JSON HTTP API. Authentication is host-backed:
// credentials verify against the shadow file and admin rights derive
// from sudo-group membership.
package server
