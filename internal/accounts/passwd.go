package accounts

import (
	"fmt"
	"strings"

	"github.com/tunonalves/sysprov/internal/hostfs"
)

type PasswdFile struct {
	t table[User]
}

func LoadPasswd(path string) (*PasswdFile, error) {
	b, err := hostfs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines, err := scanLines(b)
	if err != nil {
		return nil, err
	}

	f := &PasswdFile{}
	for _, l := range lines {
		if isRawLine(l) {
			f.t.keep(l)
			continue
		}
		parts := splitFields(l)
		if len(parts) < 7 {
			// Preserve unknown line as-is.
			f.t.keep(l)
			continue
		}
		uid, err := atoi(parts[2], "passwd.uid")
		if err != nil {
			return nil, err
		}
		gid, err := atoi(parts[3], "passwd.gid")
		if err != nil {
			return nil, err
		}
		f.t.add(&User{
			Name:   parts[0],
			Passwd: parts[1],
			UID:    uid,
			GID:    gid,
			Gecos:  parts[4],
			Home:   parts[5],
			Shell:  parts[6],
		})
	}
	return f, nil
}

func (f *PasswdFile) Find(name string) *User {
	for _, e := range f.t.entries() {
		if e.Name == name {
			return e
		}
	}
	return nil
}

func (f *PasswdFile) List() []User {
	out := make([]User, 0)
	for _, e := range f.t.entries() {
		out = append(out, *e)
	}
	return out
}

// ListByPrimaryGID returns every user whose primary group id is gid.
func (f *PasswdFile) ListByPrimaryGID(gid int) []User {
	out := make([]User, 0)
	for _, e := range f.t.entries() {
		if e.GID == gid {
			out = append(out, *e)
		}
	}
	return out
}

func (f *PasswdFile) Add(e User) error {
	if f.Find(e.Name) != nil {
		return fmt.Errorf("user already exists: %s", e.Name)
	}
	f.t.add(&e)
	return nil
}

func (f *PasswdFile) Delete(name string) bool {
	return f.t.drop(func(e *User) bool { return e.Name == name })
}

// NextUID returns one above the highest uid at or above min.
func (f *PasswdFile) NextUID(min int) int {
	max := min - 1
	for _, e := range f.t.entries() {
		if e.UID > max {
			max = e.UID
		}
	}
	return max + 1
}

func (f *PasswdFile) Bytes() []byte {
	var buf strings.Builder
	f.t.render(&buf, func(e *User) string {
		return fmt.Sprintf("%s:%s:%d:%d:%s:%s:%s",
			e.Name, e.Passwd, e.UID, e.GID, e.Gecos, e.Home, e.Shell)
	})
	return []byte(buf.String())
}
