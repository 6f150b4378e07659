package accounts

import "errors"

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrGroupNotFound = errors.New("group not found")
)

// User is one passwd(5) row.
type User struct {
	Name   string
	Passwd string
	UID    int
	GID    int
	Gecos  string
	Home   string
	Shell  string
}

// ShadowEntry is one shadow(5) row. Aging fields stay as strings so empty
// fields round-trip unchanged.
type ShadowEntry struct {
	Name       string
	Hash       string
	LastChange string
	Min        string
	Max        string
	Warn       string
	Inactive   string
	Expire     string
	Reserved   string
}

// Group is one group(5) row. Members holds the explicit member list only;
// accounts whose primary gid matches are resolved separately.
type Group struct {
	Name    string
	Passwd  string
	GID     int
	Members []string
}
