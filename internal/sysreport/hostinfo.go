package sysreport

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tunonalves/sysprov/internal/hostfs"
)

// HostInfo reads host identity best-effort; fields that cannot be read
// stay empty rather than failing the report.
func (c *Collector) HostInfo() Host {
	h := Host{}
	if name, err := os.Hostname(); err == nil {
		h.Hostname = name
	}
	if rel, err := os.ReadFile(filepath.Join(c.procRoot, "sys", "kernel", "osrelease")); err == nil {
		h.Kernel = strings.TrimSpace(string(rel))
	}
	if b, err := os.ReadFile(filepath.Join(c.procRoot, "uptime")); err == nil {
		if f := strings.Fields(string(b)); len(f) > 0 {
			if sec, err := strconv.ParseFloat(f[0], 64); err == nil && sec > 0 {
				h.UptimeSec = uint64(sec)
			}
		}
	}
	if osrel, err := hostfs.Path(hostfs.EtcOSReleaseRel); err == nil {
		h.OSName, h.OSVersion, h.OSPrettyName = readOSRelease(osrel)
	}
	return h
}

func readOSRelease(path string) (name, version, pretty string) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", ""
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		ln := strings.TrimSpace(s.Text())
		if ln == "" || strings.HasPrefix(ln, "#") {
			continue
		}
		key, val, ok := strings.Cut(ln, "=")
		if !ok {
			continue
		}
		val = strings.Trim(val, `"'`)
		switch key {
		case "NAME":
			name = val
		case "VERSION_ID":
			version = val
		case "PRETTY_NAME":
			pretty = val
		}
	}
	return name, version, pretty
}
