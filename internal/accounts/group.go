package accounts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tunonalves/sysprov/internal/hostfs"
)

type GroupFile struct {
	t table[Group]
}

func LoadGroup(path string) (*GroupFile, error) {
	b, err := hostfs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines, err := scanLines(b)
	if err != nil {
		return nil, err
	}

	f := &GroupFile{}
	for _, l := range lines {
		if isRawLine(l) {
			f.t.keep(l)
			continue
		}
		parts := splitFields(l)
		if len(parts) < 4 {
			f.t.keep(l)
			continue
		}
		gid, err := atoi(parts[2], "group.gid")
		if err != nil {
			return nil, err
		}
		members := []string{}
		if parts[3] != "" {
			members = strings.Split(parts[3], ",")
		}
		f.t.add(&Group{Name: parts[0], Passwd: parts[1], GID: gid, Members: members})
	}
	return f, nil
}

func (f *GroupFile) Find(name string) *Group {
	for _, e := range f.t.entries() {
		if e.Name == name {
			return e
		}
	}
	return nil
}

func (f *GroupFile) FindByGID(gid int) *Group {
	for _, e := range f.t.entries() {
		if e.GID == gid {
			return e
		}
	}
	return nil
}

func (f *GroupFile) List() []Group {
	out := make([]Group, 0)
	for _, e := range f.t.entries() {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GID < out[j].GID })
	return out
}

func (f *GroupFile) Add(e Group) error {
	if f.Find(e.Name) != nil {
		return fmt.Errorf("group already exists: %s", e.Name)
	}
	if f.FindByGID(e.GID) != nil {
		return fmt.Errorf("gid already exists: %d", e.GID)
	}
	f.t.add(&e)
	return nil
}

func (f *GroupFile) Delete(name string) bool {
	return f.t.drop(func(e *Group) bool { return e.Name == name })
}

// NextGID returns one above the highest gid at or above min.
func (f *GroupFile) NextGID(min int) int {
	max := min - 1
	for _, e := range f.t.entries() {
		if e.GID > max {
			max = e.GID
		}
	}
	return max + 1
}

// AddMember appends user to the group's explicit member list. Adding an
// existing member is a no-op.
func (f *GroupFile) AddMember(group, user string) error {
	g := f.Find(group)
	if g == nil {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, group)
	}
	for _, m := range g.Members {
		if m == user {
			return nil
		}
	}
	g.Members = append(g.Members, user)
	sort.Strings(g.Members)
	return nil
}

// RemoveMemberEverywhere strips user from every explicit member list.
func (f *GroupFile) RemoveMemberEverywhere(user string) {
	for _, g := range f.t.entries() {
		var out []string
		for _, m := range g.Members {
			if m != user {
				out = append(out, m)
			}
		}
		g.Members = out
	}
}

func (f *GroupFile) Bytes() []byte {
	var buf strings.Builder
	f.t.render(&buf, func(e *Group) string {
		return fmt.Sprintf("%s:%s:%d:%s", e.Name, e.Passwd, e.GID, strings.Join(e.Members, ","))
	})
	return []byte(buf.String())
}
