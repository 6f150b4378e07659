package accounts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tunonalves/sysprov/internal/hostfs"
)

// Manager mutates the account database files directly: load, edit in
// memory, persist atomically. It is the file-based counterpart of the
// usercmd shell-out runner.
type Manager struct {
	PasswdPath string
	ShadowPath string
	GroupPath  string

	// FSRoot maps home directory paths onto the filesystem; defaults to
	// the process host root.
	FSRoot string
}

// NewHostManager builds a Manager over the files under the process host
// root.
func NewHostManager() (*Manager, error) {
	passwd, err := hostfs.Path(hostfs.EtcPasswdRel)
	if err != nil {
		return nil, err
	}
	shadow, err := hostfs.Path(hostfs.EtcShadowRel)
	if err != nil {
		return nil, err
	}
	group, err := hostfs.Path(hostfs.EtcGroupRel)
	if err != nil {
		return nil, err
	}
	return &Manager{
		PasswdPath: passwd,
		ShadowPath: shadow,
		GroupPath:  group,
		FSRoot:     hostfs.Root(),
	}, nil
}

type CreateUserRequest struct {
	Username     string
	PasswordHash string // already in shadow crypt format
	Home         string
	Shell        string
	AddToSudo    bool
	ExtraGroups  []string
	CreateHome   bool
}

func (m *Manager) loadAll() (*PasswdFile, *ShadowFile, *GroupFile, error) {
	pw, err := LoadPasswd(m.PasswdPath)
	if err != nil {
		return nil, nil, nil, err
	}
	sh, err := LoadShadow(m.ShadowPath)
	if err != nil {
		return nil, nil, nil, err
	}
	gr, err := LoadGroup(m.GroupPath)
	if err != nil {
		return nil, nil, nil, err
	}
	return pw, sh, gr, nil
}

func (m *Manager) persist(pw *PasswdFile, sh *ShadowFile, gr *GroupFile) error {
	if err := hostfs.WriteFileAtomic(m.PasswdPath, pw.Bytes(), 0644); err != nil {
		return err
	}
	if err := hostfs.WriteFileAtomic(m.ShadowPath, sh.Bytes(), 0600); err != nil {
		return err
	}
	return hostfs.WriteFileAtomic(m.GroupPath, gr.Bytes(), 0644)
}

func (m *Manager) homePath(home string) (string, error) {
	root := m.FSRoot
	if root == "" {
		root = hostfs.Root()
	}
	return hostfs.Under(root, home)
}

// CreateUser adds a passwd, shadow and primary-group entry, joins the
// requested supplementary groups, and optionally creates the home
// directory owned by the new account.
func (m *Manager) CreateUser(req CreateUserRequest) error {
	if !ValidName(req.Username) {
		return fmt.Errorf("invalid username: %q", req.Username)
	}
	pw, sh, gr, err := m.loadAll()
	if err != nil {
		return err
	}
	if pw.Find(req.Username) != nil || sh.Find(req.Username) != nil {
		return fmt.Errorf("user already exists: %s", req.Username)
	}

	// Primary group mirrors the username; create it if missing.
	primary := gr.Find(req.Username)
	if primary == nil {
		gid := gr.NextGID(1000)
		if err := gr.Add(Group{Name: req.Username, Passwd: "x", GID: gid}); err != nil {
			return err
		}
		primary = gr.Find(req.Username)
	}

	uid := pw.NextUID(1000)
	home := req.Home
	if home == "" {
		home = filepath.Join("/home", req.Username)
	}
	shell := req.Shell
	if shell == "" {
		shell = "/bin/bash"
	}
	if err := pw.Add(User{Name: req.Username, Passwd: "x", UID: uid, GID: primary.GID, Home: home, Shell: shell}); err != nil {
		return err
	}

	days := fmt.Sprintf("%d", time.Now().Unix()/86400)
	if err := sh.Add(ShadowEntry{
		Name:       req.Username,
		Hash:       req.PasswordHash,
		LastChange: days,
		Min:        "0",
		Max:        "99999",
		Warn:       "7",
	}); err != nil {
		return err
	}

	for _, g := range req.ExtraGroups {
		if g == "" {
			continue
		}
		if err := gr.AddMember(g, req.Username); err != nil {
			return err
		}
	}
	if req.AddToSudo {
		switch {
		case gr.Find("sudo") != nil:
			_ = gr.AddMember("sudo", req.Username)
		case gr.Find("wheel") != nil:
			_ = gr.AddMember("wheel", req.Username)
		default:
			_ = gr.Add(Group{Name: "sudo", Passwd: "x", GID: gr.NextGID(1000)})
			_ = gr.AddMember("sudo", req.Username)
		}
	}

	if req.CreateHome {
		abs, err := m.homePath(home)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(abs, 0755); err != nil {
			return err
		}
		// Unprivileged runs cannot chown; the entries are still valid.
		_ = os.Chown(abs, uid, primary.GID)
	}

	return m.persist(pw, sh, gr)
}

// DeleteUser removes the account from all three files and from every
// explicit group member list. The primary group named after the user goes
// too.
func (m *Manager) DeleteUser(username string, removeHome bool) error {
	pw, sh, gr, err := m.loadAll()
	if err != nil {
		return err
	}
	pe := pw.Find(username)
	if pe == nil {
		return fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	home := pe.Home
	pw.Delete(username)
	sh.Delete(username)
	gr.RemoveMemberEverywhere(username)
	_ = gr.Delete(username)

	if removeHome {
		if abs, err := m.homePath(home); err == nil {
			_ = os.RemoveAll(abs)
		}
	}
	return m.persist(pw, sh, gr)
}

// CreateGroup adds an empty group with the next free gid.
func (m *Manager) CreateGroup(name string) (Group, error) {
	if !ValidName(name) {
		return Group{}, fmt.Errorf("invalid group name: %q", name)
	}
	gr, err := LoadGroup(m.GroupPath)
	if err != nil {
		return Group{}, err
	}
	g := Group{Name: name, Passwd: "x", GID: gr.NextGID(1000)}
	if err := gr.Add(g); err != nil {
		return Group{}, err
	}
	if err := hostfs.WriteFileAtomic(m.GroupPath, gr.Bytes(), 0644); err != nil {
		return Group{}, err
	}
	return g, nil
}

// DeleteGroup refuses to remove a group that is still some account's
// primary group, matching groupdel(8).
func (m *Manager) DeleteGroup(name string) error {
	pw, err := LoadPasswd(m.PasswdPath)
	if err != nil {
		return err
	}
	gr, err := LoadGroup(m.GroupPath)
	if err != nil {
		return err
	}
	g := gr.Find(name)
	if g == nil {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, name)
	}
	if users := pw.ListByPrimaryGID(g.GID); len(users) > 0 {
		return fmt.Errorf("group %s is the primary group of %s", name, users[0].Name)
	}
	gr.Delete(name)
	return hostfs.WriteFileAtomic(m.GroupPath, gr.Bytes(), 0644)
}

// AddMember puts user on the group's explicit member list (usermod -aG).
func (m *Manager) AddMember(group, user string) error {
	pw, err := LoadPasswd(m.PasswdPath)
	if err != nil {
		return err
	}
	if pw.Find(user) == nil {
		return fmt.Errorf("%w: %s", ErrUserNotFound, user)
	}
	gr, err := LoadGroup(m.GroupPath)
	if err != nil {
		return err
	}
	if err := gr.AddMember(group, user); err != nil {
		return err
	}
	return hostfs.WriteFileAtomic(m.GroupPath, gr.Bytes(), 0644)
}

// SetShell updates the account's login shell.
func (m *Manager) SetShell(username, shell string) error {
	if shell == "" || !strings.HasPrefix(shell, "/") {
		return fmt.Errorf("invalid shell: %q", shell)
	}
	pw, err := LoadPasswd(m.PasswdPath)
	if err != nil {
		return err
	}
	pe := pw.Find(username)
	if pe == nil {
		return fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	pe.Shell = shell
	return hostfs.WriteFileAtomic(m.PasswdPath, pw.Bytes(), 0644)
}
