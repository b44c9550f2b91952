package crontab

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrNoCrontab is returned by Backend.Read when the user has no crontab yet.
var ErrNoCrontab = errors.New("no crontab for user")

// Backend reads and installs the whole crontab. Implementations must report
// a missing table as ErrNoCrontab and any other failure as a real error.
type Backend interface {
	Read(ctx context.Context) (string, error)
	Install(ctx context.Context, content string) error
}

// CommandBackend talks to the host crontab(1) binary.
type CommandBackend struct {
	Binary string // defaults to "crontab"
	TmpDir string // defaults to os.TempDir()
}

func (b *CommandBackend) binary() string {
	if b.Binary == "" {
		return "crontab"
	}
	return b.Binary
}

// Read runs `crontab -l`.
func (b *CommandBackend) Read(ctx context.Context) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, b.binary(), "-l")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.ToLower(stderr.String())
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && strings.Contains(msg, "no crontab") {
			return "", ErrNoCrontab
		}
		return "", fmt.Errorf("crontab -l: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Install writes content to a temporary file and hands it to `crontab <file>`.
// Piping through stdin is avoided because some virtualized hosts reject it.
func (b *CommandBackend) Install(ctx context.Context, content string) error {
	f, err := os.CreateTemp(b.TmpDir, "crontab-*.txt")
	if err != nil {
		return fmt.Errorf("create crontab temp file: %w", err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("write crontab temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close crontab temp file: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, b.binary(), tmp)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("crontab install: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
