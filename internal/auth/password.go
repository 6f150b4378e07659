package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/GehirnInc/crypt"
	"github.com/GehirnInc/crypt/md5_crypt"
	"github.com/GehirnInc/crypt/sha256_crypt"
	"github.com/GehirnInc/crypt/sha512_crypt"

	"github.com/tunonalves/sysprov/internal/accounts"
	"github.com/tunonalves/sysprov/internal/hostfs"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserLocked         = errors.New("user is locked")
	ErrUnsupportedHash    = errors.New("unsupported password hash")
)

// Authenticator verifies credentials against the shadow and group files.
// Paths default to the mounted host files; tests point them at fixtures.
type Authenticator struct {
	ShadowPath string
	GroupPath  string

	// AllowSuFallback enables su(1) verification for hash formats the
	// crypt library cannot check (yescrypt, bcrypt).
	AllowSuFallback bool
}

func NewHostAuthenticator() (*Authenticator, error) {
	shadow, err := hostfs.Path(hostfs.EtcShadowRel)
	if err != nil {
		return nil, err
	}
	group, err := hostfs.Path(hostfs.EtcGroupRel)
	if err != nil {
		return nil, err
	}
	return &Authenticator{
		ShadowPath:      shadow,
		GroupPath:       group,
		AllowSuFallback: true,
	}, nil
}

func (a *Authenticator) VerifyPassword(username, password string) error {
	sh, err := accounts.LoadShadow(a.ShadowPath)
	if err != nil {
		return err
	}
	se := sh.Find(username)
	if se == nil {
		return ErrInvalidCredentials
	}
	hash := se.Hash
	if hash == "" || strings.HasPrefix(hash, "!") || strings.HasPrefix(hash, "*") {
		return ErrUserLocked
	}
	ok, err := verifyCrypt(hash, password)
	if err != nil {
		if errors.Is(err, ErrUnsupportedHash) && a.AllowSuFallback {
			ok2, err2 := verifyWithSu(username, password)
			if err2 != nil {
				return err2
			}
			if !ok2 {
				return ErrInvalidCredentials
			}
			return nil
		}
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}
	return nil
}

// IsAdmin reports sudo-capable group membership (sudo or wheel).
func (a *Authenticator) IsAdmin(username string) (bool, error) {
	gr, err := accounts.LoadGroup(a.GroupPath)
	if err != nil {
		return false, err
	}
	for _, gname := range []string{"sudo", "wheel"} {
		g := gr.Find(gname)
		if g == nil {
			continue
		}
		for _, m := range g.Members {
			if m == username {
				return true, nil
			}
		}
	}
	return false, nil
}

func verifyCrypt(hash, password string) (bool, error) {
	// $1$ md5-crypt, $5$ sha256-crypt, $6$ sha512-crypt. Newer formats
	// (yescrypt $y$, bcrypt $2*) go to the su fallback.
	crypters := []crypt.Crypter{
		sha512_crypt.New(),
		sha256_crypt.New(),
		md5_crypt.New(),
	}
	for _, c := range crypters {
		if err := c.Verify(hash, []byte(password)); err == nil {
			return true, nil
		}
	}
	if strings.HasPrefix(hash, "$y$") || strings.HasPrefix(hash, "$7$") || strings.HasPrefix(hash, "$2") {
		return false, ErrUnsupportedHash
	}
	return false, nil
}

// HashPassword produces a sha512-crypt hash suitable for /etc/shadow.
func HashPassword(password string) (string, error) {
	return sha512_crypt.New().Generate([]byte(password), nil)
}

func HumanAuthError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid username or password."
	case errors.Is(err, ErrUserLocked):
		return "This account is locked."
	case errors.Is(err, ErrUnsupportedHash):
		return "This host uses an uncommon password hash format."
	default:
		return fmt.Sprintf("Authentication failed: %v", err)
	}
}
