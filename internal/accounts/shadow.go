package accounts

import (
	"fmt"
	"strings"

	"github.com/tunonalves/sysprov/internal/hostfs"
)

type ShadowFile struct {
	t table[ShadowEntry]
}

func LoadShadow(path string) (*ShadowFile, error) {
	b, err := hostfs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines, err := scanLines(b)
	if err != nil {
		return nil, err
	}

	f := &ShadowFile{}
	for _, l := range lines {
		if isRawLine(l) {
			f.t.keep(l)
			continue
		}
		parts := splitFields(l)
		if len(parts) < 2 {
			f.t.keep(l)
			continue
		}
		for len(parts) < 9 {
			parts = append(parts, "")
		}
		f.t.add(&ShadowEntry{
			Name:       parts[0],
			Hash:       parts[1],
			LastChange: parts[2],
			Min:        parts[3],
			Max:        parts[4],
			Warn:       parts[5],
			Inactive:   parts[6],
			Expire:     parts[7],
			Reserved:   parts[8],
		})
	}
	return f, nil
}

func (f *ShadowFile) Find(name string) *ShadowEntry {
	for _, e := range f.t.entries() {
		if e.Name == name {
			return e
		}
	}
	return nil
}

func (f *ShadowFile) Add(e ShadowEntry) error {
	if f.Find(e.Name) != nil {
		return fmt.Errorf("shadow entry already exists: %s", e.Name)
	}
	f.t.add(&e)
	return nil
}

func (f *ShadowFile) Delete(name string) bool {
	return f.t.drop(func(e *ShadowEntry) bool { return e.Name == name })
}

func (f *ShadowFile) Bytes() []byte {
	var buf strings.Builder
	f.t.render(&buf, func(e *ShadowEntry) string {
		return fmt.Sprintf("%s:%s:%s:%s:%s:%s:%s:%s:%s",
			e.Name, e.Hash, e.LastChange, e.Min, e.Max, e.Warn, e.Inactive, e.Expire, e.Reserved)
	})
	return []byte(buf.String())
}
