package accounts_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunonalves/sysprov/internal/accounts"
)

func newTestManager(t *testing.T) (*accounts.Manager, string) {
	t.Helper()
	root := t.TempDir()
	etc := filepath.Join(root, "etc")
	require.NoError(t, os.MkdirAll(etc, 0755))

	write := func(name, content string) string {
		p := filepath.Join(etc, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
		return p
	}
	return &accounts.Manager{
		PasswdPath: write("passwd", passwdFixture),
		ShadowPath: write("shadow", "root:*:19000:0:99999:7:::\nalice:$6$s$h:19000:0:99999:7:::\n"),
		GroupPath:  write("group", groupFixture),
		FSRoot:     root,
	}, root
}

func TestManagerCreateUser(t *testing.T) {
	m, root := newTestManager(t)

	err := m.CreateUser(accounts.CreateUserRequest{
		Username:     "dave",
		PasswordHash: "$6$salt$hash",
		ExtraGroups:  []string{"devs"},
		CreateHome:   true,
	})
	require.NoError(t, err)

	pw, err := accounts.LoadPasswd(m.PasswdPath)
	require.NoError(t, err)
	dave := pw.Find("dave")
	require.NotNil(t, dave)
	assert.Equal(t, 1003, dave.UID)
	assert.Equal(t, "/home/dave", dave.Home)
	assert.Equal(t, "/bin/bash", dave.Shell)

	gr, err := accounts.LoadGroup(m.GroupPath)
	require.NoError(t, err)
	primary := gr.Find("dave")
	require.NotNil(t, primary)
	assert.Equal(t, dave.GID, primary.GID)
	assert.Contains(t, gr.Find("devs").Members, "dave")

	sh, err := accounts.LoadShadow(m.ShadowPath)
	require.NoError(t, err)
	se := sh.Find("dave")
	require.NotNil(t, se)
	assert.Equal(t, "$6$salt$hash", se.Hash)

	fi, err := os.Stat(filepath.Join(root, "home", "dave"))
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestManagerCreateUserValidation(t *testing.T) {
	m, _ := newTestManager(t)

	assert.Error(t, m.CreateUser(accounts.CreateUserRequest{Username: "Bad Name"}))
	assert.Error(t, m.CreateUser(accounts.CreateUserRequest{Username: "alice"}))
	assert.Error(t, m.CreateUser(accounts.CreateUserRequest{Username: "eve", ExtraGroups: []string{"nosuch"}}))
}

func TestManagerCreateUserSudo(t *testing.T) {
	m, _ := newTestManager(t)

	require.NoError(t, m.CreateUser(accounts.CreateUserRequest{Username: "op", AddToSudo: true}))
	gr, err := accounts.LoadGroup(m.GroupPath)
	require.NoError(t, err)
	assert.Contains(t, gr.Find("sudo").Members, "op")
}

func TestManagerDeleteUser(t *testing.T) {
	m, root := newTestManager(t)
	home := filepath.Join(root, "home", "alice")
	require.NoError(t, os.MkdirAll(home, 0755))

	require.NoError(t, m.DeleteUser("alice", true))

	pw, err := accounts.LoadPasswd(m.PasswdPath)
	require.NoError(t, err)
	assert.Nil(t, pw.Find("alice"))

	gr, err := accounts.LoadGroup(m.GroupPath)
	require.NoError(t, err)
	assert.NotContains(t, gr.Find("devs").Members, "alice")
	assert.NotContains(t, gr.Find("sudo").Members, "alice")

	_, err = os.Stat(home)
	assert.True(t, os.IsNotExist(err))

	err = m.DeleteUser("alice", false)
	assert.ErrorIs(t, err, accounts.ErrUserNotFound)
}

func TestManagerGroupLifecycle(t *testing.T) {
	m, _ := newTestManager(t)

	g, err := m.CreateGroup("builders")
	require.NoError(t, err)
	assert.Equal(t, 2002, g.GID)

	require.NoError(t, m.AddMember("builders", "alice"))
	err = m.AddMember("builders", "nosuch")
	assert.ErrorIs(t, err, accounts.ErrUserNotFound)

	// devs (gid 2000) is bob and carol's primary group, so deletion
	// must refuse.
	err = m.DeleteGroup("devs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary group")

	require.NoError(t, m.DeleteGroup("builders"))
	err = m.DeleteGroup("builders")
	assert.ErrorIs(t, err, accounts.ErrGroupNotFound)
}

func TestManagerSetShell(t *testing.T) {
	m, _ := newTestManager(t)

	require.NoError(t, m.SetShell("alice", "/bin/zsh"))
	pw, err := accounts.LoadPasswd(m.PasswdPath)
	require.NoError(t, err)
	assert.Equal(t, "/bin/zsh", pw.Find("alice").Shell)

	assert.Error(t, m.SetShell("alice", "zsh"))
	err = m.SetShell("nosuch", "/bin/sh")
	assert.ErrorIs(t, err, accounts.ErrUserNotFound)
}

func TestDBLookups(t *testing.T) {
	m, _ := newTestManager(t)
	db := &accounts.DB{PasswdPath: m.PasswdPath, GroupPath: m.GroupPath}

	u, err := db.LookupUser("bob")
	require.NoError(t, err)
	assert.Equal(t, 2000, u.GID)

	_, err = db.LookupUser("nosuch")
	assert.ErrorIs(t, err, accounts.ErrUserNotFound)

	g, err := db.LookupGroup("devs")
	require.NoError(t, err)
	assert.Equal(t, 2000, g.GID)

	_, err = db.LookupGroup("nosuch")
	assert.ErrorIs(t, err, accounts.ErrGroupNotFound)

	logins, err := db.LoginsByPrimaryGID(2000)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol"}, logins)
}

func TestValidName(t *testing.T) {
	for _, ok := range []string{"alice", "_svc", "web-user", "a1_b2"} {
		assert.True(t, accounts.ValidName(ok), ok)
	}
	for _, bad := range []string{"", "1abc", "Alice", "name with space", strings.Repeat("a", 33)} {
		assert.False(t, accounts.ValidName(bad), bad)
	}
}
