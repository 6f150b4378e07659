// Package usercmd shells out to the host administration tools (useradd,
// groupadd, chmod, ...) with bounded timeouts. It is the alternative to the
// file-based accounts.Manager for hosts where the native tools must stay
// authoritative (PAM hooks, SELinux labeling).
package usercmd

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

type Runner struct {
	Timeout time.Duration
}

func New() *Runner {
	return &Runner{Timeout: 10 * time.Second}
}

func (r *Runner) run(name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		s := strings.TrimSpace(stderr.String())
		if s == "" {
			return err
		}
		return fmt.Errorf("%s %v: %s", name, args, s)
	}
	return nil
}

func (r *Runner) runWithStdin(stdin []byte, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		s := strings.TrimSpace(stderr.String())
		if s == "" {
			return err
		}
		return fmt.Errorf("%s %v: %s", name, args, s)
	}
	return nil
}

// AddUser wraps useradd -m; home and shell are optional.
func (r *Runner) AddUser(username, home, shell string) error {
	args := []string{"-m"}
	if home != "" {
		args = append(args, "-d", home)
	}
	if shell != "" {
		args = append(args, "-s", shell)
	}
	args = append(args, username)
	return r.run("useradd", args...)
}

// DelUser wraps userdel; removeHome adds -r.
func (r *Runner) DelUser(username string, removeHome bool) error {
	var args []string
	if removeHome {
		args = append(args, "-r")
	}
	args = append(args, username)
	return r.run("userdel", args...)
}

func (r *Runner) AddGroup(group string) error {
	return r.run("groupadd", group)
}

func (r *Runner) DelGroup(group string) error {
	return r.run("groupdel", group)
}

// AddUserToGroup wraps usermod -aG (append, never strip other groups).
func (r *Runner) AddUserToGroup(username, group string) error {
	return r.run("usermod", "-aG", group, username)
}

// SetPassword feeds "user:pass" to chpasswd on stdin.
func (r *Runner) SetPassword(username, password string) error {
	line := fmt.Sprintf("%s:%s\n", username, password)
	return r.runWithStdin([]byte(line), "chpasswd")
}

// Chmod applies a symbolic or octal mode string to a path.
func (r *Runner) Chmod(mode, path string) error {
	return r.run("chmod", mode, path)
}

// Chown applies a user[:group] spec to a path.
func (r *Runner) Chown(owner, path string) error {
	return r.run("chown", owner, path)
}
