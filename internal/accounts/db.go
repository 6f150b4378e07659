package accounts

import (
	"fmt"

	"github.com/tunonalves/sysprov/internal/hostfs"
)

// DB is the read side of the OS account database: lookups against the
// passwd and group files. Every call re-reads the files so callers always
// see the live host state.
type DB struct {
	PasswdPath string
	GroupPath  string
}

// OpenHostDB points a DB at the files under the process host root.
func OpenHostDB() (*DB, error) {
	passwd, err := hostfs.Path(hostfs.EtcPasswdRel)
	if err != nil {
		return nil, err
	}
	group, err := hostfs.Path(hostfs.EtcGroupRel)
	if err != nil {
		return nil, err
	}
	return &DB{PasswdPath: passwd, GroupPath: group}, nil
}

func (db *DB) LookupUser(login string) (User, error) {
	pw, err := LoadPasswd(db.PasswdPath)
	if err != nil {
		return User{}, err
	}
	e := pw.Find(login)
	if e == nil {
		return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, login)
	}
	return *e, nil
}

func (db *DB) LookupGroup(name string) (Group, error) {
	gr, err := LoadGroup(db.GroupPath)
	if err != nil {
		return Group{}, err
	}
	e := gr.Find(name)
	if e == nil {
		return Group{}, fmt.Errorf("%w: %s", ErrGroupNotFound, name)
	}
	return *e, nil
}

// LoginsByPrimaryGID returns the login of every account whose primary group
// id is gid.
func (db *DB) LoginsByPrimaryGID(gid int) ([]string, error) {
	pw, err := LoadPasswd(db.PasswdPath)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, u := range pw.ListByPrimaryGID(gid) {
		out = append(out, u.Name)
	}
	return out, nil
}

func (db *DB) Users() ([]User, error) {
	pw, err := LoadPasswd(db.PasswdPath)
	if err != nil {
		return nil, err
	}
	return pw.List(), nil
}

func (db *DB) Groups() ([]Group, error) {
	gr, err := LoadGroup(db.GroupPath)
	if err != nil {
		return nil, err
	}
	return gr.List(), nil
}
