package hostfs

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultRoot is where the managed host filesystem is mounted when sysprov
// runs inside a container. Running directly on the host uses "/".
const DefaultRoot = "/host"

var ErrInvalidPath = errors.New("invalid host path")

var (
	rootMu sync.RWMutex
	root   = DefaultRoot
)

// SetRoot changes the host filesystem mount point for the whole process.
// Called once at startup; "" resets to DefaultRoot.
func SetRoot(r string) {
	rootMu.Lock()
	defer rootMu.Unlock()
	if strings.TrimSpace(r) == "" {
		r = DefaultRoot
	}
	root = filepath.Clean(r)
}

// Root reports the current host filesystem mount point.
func Root() string {
	rootMu.RLock()
	defer rootMu.RUnlock()
	return root
}

// Under maps an absolute host path (e.g. /home/alice/.ssh) into the given
// mount root (e.g. /host/home/alice/.ssh). Relative paths are rejected.
func Under(mountRoot, abs string) (string, error) {
	if abs == "" || !strings.HasPrefix(abs, "/") {
		return "", ErrInvalidPath
	}
	clean := filepath.Clean(abs)
	if !strings.HasPrefix(clean, "/") {
		return "", ErrInvalidPath
	}
	if mountRoot == "" || mountRoot == "/" {
		return clean, nil
	}
	return filepath.Join(mountRoot, strings.TrimPrefix(clean, "/")), nil
}

// Path joins the process root with a relative host path (no leading slash).
// Example: Path("etc/passwd") -> /host/etc/passwd
func Path(rel string) (string, error) {
	rel = strings.TrimPrefix(rel, "/")
	clean := filepath.Clean(rel)
	if clean == "." || clean == "" || strings.HasPrefix(clean, "..") {
		return "", ErrInvalidPath
	}
	return filepath.Join(Root(), clean), nil
}

// Abs maps an absolute host path into the process root. See Under.
func Abs(abs string) (string, error) {
	return Under(Root(), abs)
}
