package usercmd_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunonalves/sysprov/internal/usercmd"
)

// installShim puts a fake binary on PATH that records its argv (and stdin)
// to a log file and exits 0.
func installShim(t *testing.T, dir, name string) string {
	t.Helper()
	logPath := filepath.Join(dir, name+".log")
	script := "#!/bin/sh\n" +
		"{ printf '%s' \"$0\"; for a in \"$@\"; do printf ' %s' \"$a\"; done; printf '\\n'; cat; } >> " + logPath + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(script), 0755))
	return logPath
}

func shimDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return dir
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestAddUserArgs(t *testing.T) {
	dir := shimDir(t)
	logPath := installShim(t, dir, "useradd")

	r := usercmd.New()
	require.NoError(t, r.AddUser("dave", "/srv/dave", "/bin/zsh"))
	assert.Contains(t, readLog(t, logPath), "-m -d /srv/dave -s /bin/zsh dave")

	require.NoError(t, r.AddUser("erin", "", ""))
	assert.Contains(t, readLog(t, logPath), "-m erin")
}

func TestDelUserArgs(t *testing.T) {
	dir := shimDir(t)
	logPath := installShim(t, dir, "userdel")

	r := usercmd.New()
	require.NoError(t, r.DelUser("dave", true))
	assert.Contains(t, readLog(t, logPath), "-r dave")
}

func TestGroupCommands(t *testing.T) {
	dir := shimDir(t)
	addLog := installShim(t, dir, "groupadd")
	delLog := installShim(t, dir, "groupdel")
	modLog := installShim(t, dir, "usermod")

	r := usercmd.New()
	require.NoError(t, r.AddGroup("devs"))
	require.NoError(t, r.DelGroup("devs"))
	require.NoError(t, r.AddUserToGroup("alice", "devs"))

	assert.Contains(t, readLog(t, addLog), "devs")
	assert.Contains(t, readLog(t, delLog), "devs")
	assert.Contains(t, readLog(t, modLog), "-aG devs alice")
}

func TestSetPasswordFeedsStdin(t *testing.T) {
	dir := shimDir(t)
	logPath := installShim(t, dir, "chpasswd")

	r := usercmd.New()
	require.NoError(t, r.SetPassword("alice", "s3cret"))
	assert.Contains(t, readLog(t, logPath), "alice:s3cret")
}

func TestChmodChown(t *testing.T) {
	dir := shimDir(t)
	chmodLog := installShim(t, dir, "chmod")
	chownLog := installShim(t, dir, "chown")

	r := usercmd.New()
	require.NoError(t, r.Chmod("0700", "/home/alice/.ssh"))
	require.NoError(t, r.Chown("alice:alice", "/home/alice/.ssh"))

	assert.Contains(t, readLog(t, chmodLog), "0700 /home/alice/.ssh")
	assert.Contains(t, readLog(t, chownLog), "alice:alice /home/alice/.ssh")
}

func TestCommandFailureFoldsStderr(t *testing.T) {
	dir := shimDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "groupdel"), []byte("#!/bin/sh\necho 'cannot remove primary group' >&2\nexit 8\n"), 0755))

	r := usercmd.New()
	err := r.DelGroup("devs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot remove primary group")
}

func TestTimeout(t *testing.T) {
	dir := shimDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "groupadd"), []byte("#!/bin/sh\nsleep 5\n"), 0755))

	r := &usercmd.Runner{Timeout: 50 * time.Millisecond}
	err := r.AddGroup("devs")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "killed") || strings.Contains(err.Error(), "context"))
}
