package accounts

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// A table holds the lines of one colon-separated database file. Lines that
// did not parse (comments, blanks, short rows) are preserved verbatim so a
// load/serialize round trip never loses anything we did not edit.
type line[T any] struct {
	raw   string
	entry *T
}

type table[T any] struct {
	lines []line[T]
}

func (t *table[T]) entries() []*T {
	out := make([]*T, 0, len(t.lines))
	for i := range t.lines {
		if t.lines[i].entry != nil {
			out = append(out, t.lines[i].entry)
		}
	}
	return out
}

func (t *table[T]) keep(raw string) {
	t.lines = append(t.lines, line[T]{raw: raw})
}

func (t *table[T]) add(e *T) {
	t.lines = append(t.lines, line[T]{entry: e})
}

// drop removes every entry the predicate matches and compacts the table.
func (t *table[T]) drop(match func(*T) bool) bool {
	changed := false
	kept := t.lines[:0]
	for _, ln := range t.lines {
		if ln.entry != nil && match(ln.entry) {
			changed = true
			continue
		}
		kept = append(kept, ln)
	}
	t.lines = kept
	return changed
}

func (t *table[T]) render(buf *strings.Builder, format func(*T) string) {
	for _, ln := range t.lines {
		if ln.entry != nil {
			buf.WriteString(format(ln.entry))
		} else {
			buf.WriteString(ln.raw)
		}
		buf.WriteString("\n")
	}
}

func splitFields(l string) []string {
	// strings.Split keeps trailing empty fields, which shadow rows rely on.
	return strings.Split(l, ":")
}

func isRawLine(l string) bool {
	trim := strings.TrimSpace(l)
	return trim == "" || strings.HasPrefix(trim, "#")
}

func scanLines(b []byte) ([]string, error) {
	s := bufio.NewScanner(bytes.NewReader(b))
	buf := make([]byte, 0, 64*1024)
	s.Buffer(buf, 1024*1024)
	var lines []string
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func atoi(field, ctx string) (int, error) {
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("invalid int %q in %s: %w", field, ctx, err)
	}
	return n, nil
}
