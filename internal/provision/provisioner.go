package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tunonalves/sysprov/internal/accounts"
	"github.com/tunonalves/sysprov/internal/hostfs"
	"github.com/tunonalves/sysprov/internal/logger"
	"github.com/tunonalves/sysprov/internal/sshkey"
)

// ErrKeyGeneration marks a keypair generation failure (including timeout).
// It aborts that account's provisioning only; siblings in a group run keep
// going.
var ErrKeyGeneration = errors.New("keypair generation failed")

// DefaultKeyTimeout bounds one keypair generation.
const DefaultKeyTimeout = 30 * time.Second

const (
	sshDirName  = ".ssh"
	privateName = "id_rsa"
	publicName  = "id_rsa.pub"
	authName    = "authorized_keys"
)

// Directory is the account database view the provisioner needs.
type Directory interface {
	LookupUser(login string) (accounts.User, error)
	LookupGroup(name string) (accounts.Group, error)
	LoginsByPrimaryGID(gid int) ([]string, error)
}

// KeyGenerator produces a keypair tagged with the given comment.
type KeyGenerator interface {
	Generate(ctx context.Context, comment string) (sshkey.Pair, error)
}

// Outcome is the per-account result of one provisioning attempt.
type Outcome struct {
	Login          string
	Generated      bool   // a new keypair was created
	KeyAdded       bool   // authorized_keys gained the account's key line
	AuthorizedKeys string // path of the authorized_keys file touched
	Err            error
}

func (o Outcome) OK() bool { return o.Err == nil }

// Provisioner ensures each account has an SSH keypair and that its own
// public key is authorized exactly once. Every step is idempotent: a
// re-run changes nothing that is already in place.
type Provisioner struct {
	Dir  Directory
	Keys KeyGenerator

	// FSRoot maps account home paths onto the filesystem; "" uses the
	// process host root.
	FSRoot string
	// Hostname tags generated keys as login@hostname.
	Hostname string
	// KeyTimeout bounds a single keypair generation; 0 uses
	// DefaultKeyTimeout.
	KeyTimeout time.Duration

	// Chown applies ownership; swapped out in tests, which cannot chown
	// unprivileged.
	Chown func(path string, uid, gid int) error
}

func New(dir Directory, keys KeyGenerator) *Provisioner {
	host, _ := os.Hostname()
	if host == "" {
		host = "localhost"
	}
	return &Provisioner{
		Dir:      dir,
		Keys:     keys,
		Hostname: host,
		Chown:    os.Chown,
	}
}

// ProvisionUser ensures login's keypair and authorized_keys entry. All
// failures land in the returned Outcome; nothing here is fatal to a batch
// caller.
func (p *Provisioner) ProvisionUser(ctx context.Context, login string) Outcome {
	out := Outcome{Login: login}

	u, err := p.Dir.LookupUser(login)
	if err != nil {
		out.Err = err
		return out
	}
	home := u.Home
	if home == "" {
		// The account database carries no home; fall back to the
		// conventional location.
		home = filepath.Join("/home", login)
	}

	homeAbs, err := p.mapPath(home)
	if err != nil {
		out.Err = fmt.Errorf("resolve home %q: %w", home, err)
		return out
	}

	sshDir := filepath.Join(homeAbs, sshDirName)
	if err := p.ensureDir(sshDir, 0700, u.UID, u.GID); err != nil {
		out.Err = err
		return out
	}

	keyPath := filepath.Join(sshDir, privateName)
	pubPath := filepath.Join(sshDir, publicName)
	comment := login + "@" + p.Hostname

	var pubLine []byte
	if hostfs.Exists(keyPath) {
		logger.Info("ssh key for %s already present at %s, skipping generation", login, keyPath)
		pubLine, err = p.existingPublicLine(keyPath, pubPath, comment, u.UID, u.GID)
		if err != nil {
			out.Err = err
			return out
		}
	} else {
		pubLine, err = p.generate(ctx, comment, keyPath, pubPath, u.UID, u.GID)
		if err != nil {
			out.Err = err
			return out
		}
		out.Generated = true
		logger.Info("generated ssh keypair for %s at %s", login, keyPath)
	}

	authPath := filepath.Join(sshDir, authName)
	added, err := p.authorize(authPath, pubLine, u.UID, u.GID)
	if err != nil {
		out.Err = err
		return out
	}
	out.KeyAdded = added
	out.AuthorizedKeys = authPath
	return out
}

// ProvisionGroup fans ProvisionUser out over the group's resolved
// membership: explicit members plus accounts whose primary gid matches,
// deduplicated. Individual failures are reported in their Outcome and do
// not stop the rest. An empty membership yields an empty slice and nil
// error.
func (p *Provisioner) ProvisionGroup(ctx context.Context, name string) ([]Outcome, error) {
	g, err := p.Dir.LookupGroup(name)
	if err != nil {
		return nil, err
	}
	byGID, err := p.Dir.LoginsByPrimaryGID(g.GID)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	logins := make([]string, 0, len(g.Members)+len(byGID))
	for _, l := range append(append([]string{}, g.Members...), byGID...) {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		logins = append(logins, l)
	}

	outcomes := make([]Outcome, 0, len(logins))
	for _, l := range logins {
		outcomes = append(outcomes, p.ProvisionUser(ctx, l))
	}
	return outcomes, nil
}

func (p *Provisioner) mapPath(abs string) (string, error) {
	root := p.FSRoot
	if root == "" {
		root = hostfs.Root()
	}
	return hostfs.Under(root, abs)
}

func (p *Provisioner) ensureDir(path string, perm os.FileMode, uid, gid int) error {
	if err := hostfs.EnsureDir(path, perm); err != nil {
		return fmt.Errorf("ensure %s: %w", path, err)
	}
	if err := p.Chown(path, uid, gid); err != nil {
		return fmt.Errorf("chown %s: %w", path, err)
	}
	return nil
}

func (p *Provisioner) generate(ctx context.Context, comment, keyPath, pubPath string, uid, gid int) ([]byte, error) {
	timeout := p.KeyTimeout
	if timeout <= 0 {
		timeout = DefaultKeyTimeout
	}
	kctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pair, err := p.Keys.Generate(kctx, comment)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}
	if err := p.placeFile(keyPath, pair.Private, 0600, uid, gid); err != nil {
		return nil, err
	}
	if err := p.placeFile(pubPath, append(pair.Public, '\n'), 0644, uid, gid); err != nil {
		return nil, err
	}
	return pair.Public, nil
}

// existingPublicLine reads the account's public key line, rebuilding the
// .pub file from the private key when it went missing.
func (p *Provisioner) existingPublicLine(keyPath, pubPath, comment string, uid, gid int) ([]byte, error) {
	b, err := hostfs.ReadFile(pubPath)
	if err == nil {
		line := []byte(strings.TrimSpace(string(b)))
		if len(line) > 0 {
			return line, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", pubPath, err)
	}

	priv, err := hostfs.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", keyPath, err)
	}
	line, err := sshkey.PublicFromPrivate(priv, comment)
	if err != nil {
		return nil, fmt.Errorf("recover public key from %s: %w", keyPath, err)
	}
	if err := p.placeFile(pubPath, append(append([]byte{}, line...), '\n'), 0644, uid, gid); err != nil {
		return nil, err
	}
	logger.Warn("rebuilt missing %s from private key", pubPath)
	return line, nil
}

// authorize makes sure authorized_keys exists with the right mode and
// owner and contains the key line. Presence is a containment check over
// the whole file, matching the original behavior: a line that embeds the
// key as a substring counts as present.
func (p *Provisioner) authorize(authPath string, pubLine []byte, uid, gid int) (bool, error) {
	existing, err := hostfs.ReadFile(authPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("read %s: %w", authPath, err)
	}

	added := false
	content := existing
	if !strings.Contains(string(existing), string(pubLine)) {
		if len(content) > 0 && content[len(content)-1] != '\n' {
			content = append(content, '\n')
		}
		content = append(content, pubLine...)
		content = append(content, '\n')
		added = true
	}

	if added || err != nil {
		if werr := hostfs.WriteFileAtomic(authPath, content, 0600); werr != nil {
			return false, fmt.Errorf("write %s: %w", authPath, werr)
		}
	}
	// Mode and owner are re-asserted even when nothing was appended.
	if cerr := os.Chmod(authPath, 0600); cerr != nil {
		return false, fmt.Errorf("chmod %s: %w", authPath, cerr)
	}
	if cerr := p.Chown(authPath, uid, gid); cerr != nil {
		return false, fmt.Errorf("chown %s: %w", authPath, cerr)
	}
	return added, nil
}

func (p *Provisioner) placeFile(path string, data []byte, perm os.FileMode, uid, gid int) error {
	if err := hostfs.WriteFileAtomic(path, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(path, perm); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := p.Chown(path, uid, gid); err != nil {
		return fmt.Errorf("chown %s: %w", path, err)
	}
	return nil
}
