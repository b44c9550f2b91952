// Package crontab is the only code allowed to read or rewrite the host
// crontab. Every mutation goes through a write-verify-diff cycle.
package crontab

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"controlling_hottub/internal/logger"

	"github.com/spf13/afero"
)

const (
	opAdd    = "add"
	opRemove = "remove"

	beforeSnapshot = "crontab-before.txt"
	afterSnapshot  = "crontab-after.txt"
	backupPrefix   = "crontab-"
	backupLayout   = "20060102-150405.000000000"
)

// VerificationError reports a crontab whose observed change differs from the
// intended one. It is logged to the forensic log and never auto-corrected.
type VerificationError struct {
	Op       string
	Expected Diff
	Actual   Diff
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("crontab %s verification failed: expected +%d/-%d lines, observed +%d/-%d",
		e.Op, len(e.Expected.Added), len(e.Expected.Removed), len(e.Actual.Added), len(e.Actual.Removed))
}

// Options configures a Mutator.
type Options struct {
	Fs         afero.Fs
	StateDir   string // before/after snapshots
	BackupDir  string // empty disables backups
	MaxBackups int    // 0 keeps every backup
	Log        *logger.Logger
	Forensic   *logger.Logger
	Now        func() time.Time
}

// Mutator serializes crontab changes made by this process.
type Mutator struct {
	backend Backend
	opts    Options
	log     *logger.Logger
	mu      sync.Mutex
}

// NewMutator wraps a backend.
func NewMutator(backend Backend, opts Options) *Mutator {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Forensic == nil {
		opts.Forensic = logger.OrNop(opts.Log)
	}
	return &Mutator{backend: backend, opts: opts, log: logger.OrNop(opts.Log)}
}

// ListEntries returns the current crontab lines in order. A missing crontab is
// an empty list; any other read failure is returned so callers never rewrite
// a table they could not read.
func (m *Mutator) ListEntries(ctx context.Context) ([]string, error) {
	content, err := m.backend.Read(ctx)
	if err != nil {
		if errors.Is(err, ErrNoCrontab) {
			return nil, nil
		}
		return nil, fmt.Errorf("read crontab: %w", err)
	}
	return splitLines(content), nil
}

// AddEntry appends line to the crontab.
func (m *Mutator) AddEntry(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.ContainsAny(line, "\r\n") {
		return fmt.Errorf("invalid crontab line %q", line)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	before, err := m.ListEntries(ctx)
	if err != nil {
		return err
	}
	next := append(append([]string(nil), before...), line)

	return m.apply(ctx, opAdd, before, next, Diff{Added: []string{line}})
}

// RemoveByPattern removes every line containing pattern and returns how many
// were removed. Nothing is written when no line matches.
func (m *Mutator) RemoveByPattern(ctx context.Context, pattern string) (int, error) {
	if strings.TrimSpace(pattern) == "" {
		return 0, errors.New("empty crontab removal pattern")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	before, err := m.ListEntries(ctx)
	if err != nil {
		return 0, err
	}
	var matched, kept []string
	for _, l := range before {
		if strings.Contains(l, pattern) {
			matched = append(matched, l)
		} else {
			kept = append(kept, l)
		}
	}
	if len(matched) == 0 {
		return 0, nil
	}

	if err := m.apply(ctx, opRemove, before, kept, Diff{Removed: matched}); err != nil {
		return 0, err
	}
	return len(matched), nil
}

// EnsureEntry makes line the only entry containing marker. Calling it again
// with the same arguments changes nothing.
func (m *Mutator) EnsureEntry(ctx context.Context, marker, line string) (bool, error) {
	entries, err := m.ListEntries(ctx)
	if err != nil {
		return false, err
	}
	var present []string
	for _, l := range entries {
		if strings.Contains(l, marker) {
			present = append(present, l)
		}
	}
	if len(present) == 1 && present[0] == strings.TrimSpace(line) {
		return false, nil
	}
	if len(present) > 0 {
		if _, err := m.RemoveByPattern(ctx, marker); err != nil {
			return false, err
		}
	}
	if err := m.AddEntry(ctx, line); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Mutator) apply(ctx context.Context, op string, before, next []string, expected Diff) error {
	m.backup(op, before)
	m.snapshot(beforeSnapshot, before)

	if err := m.backend.Install(ctx, joinLines(next)); err != nil {
		return fmt.Errorf("install crontab (%s): %w", op, err)
	}

	after, err := m.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("re-read crontab after %s: %w", op, err)
	}
	m.snapshot(afterSnapshot, after)

	actual := diffLines(before, after)
	if !matches(op, expected, actual) {
		return m.reportMismatch(op, expected, actual)
	}
	m.log.Debugw("crontab updated", "op", op, "added", len(actual.Added), "removed", len(actual.Removed))
	return nil
}

func matches(op string, expected, actual Diff) bool {
	switch op {
	case opAdd:
		return len(actual.Removed) == 0 && len(actual.Added) == 1 && actual.Added[0] == expected.Added[0]
	case opRemove:
		return len(actual.Added) == 0 && sameLines(actual.Removed, expected.Removed)
	default:
		return false
	}
}

func (m *Mutator) reportMismatch(op string, expected, actual Diff) error {
	verr := &VerificationError{Op: op, Expected: expected, Actual: actual}
	m.opts.Forensic.Errorw("CRONTAB VERIFICATION MISMATCH",
		"timestamp", m.opts.Now().UTC().Format(time.RFC3339Nano),
		"operation", op,
		"expected_added", expected.Added,
		"expected_removed", expected.Removed,
		"actual_added", actual.Added,
		"actual_removed", actual.Removed,
	)
	m.log.Errorw("crontab verification failed; manual investigation required", "op", op, "err", verr)
	return verr
}

func (m *Mutator) snapshot(name string, lines []string) {
	if m.opts.StateDir == "" {
		return
	}
	if err := m.opts.Fs.MkdirAll(m.opts.StateDir, 0o755); err != nil {
		m.log.Warnw("crontab snapshot dir", "err", err)
		return
	}
	path := filepath.Join(m.opts.StateDir, name)
	if err := afero.WriteFile(m.opts.Fs, path, []byte(joinLines(lines)), 0o644); err != nil {
		m.log.Warnw("crontab snapshot write", "path", path, "err", err)
	}
}

func (m *Mutator) backup(op string, lines []string) {
	if m.opts.BackupDir == "" || isBlank(lines) {
		return
	}
	if err := m.opts.Fs.MkdirAll(m.opts.BackupDir, 0o755); err != nil {
		m.log.Warnw("crontab backup dir", "err", err)
		return
	}
	name := backupPrefix + m.opts.Now().UTC().Format(backupLayout) + "-" + op + ".txt"
	path := filepath.Join(m.opts.BackupDir, name)
	if err := afero.WriteFile(m.opts.Fs, path, []byte(joinLines(lines)), 0o644); err != nil {
		m.log.Warnw("crontab backup write", "path", path, "err", err)
		return
	}
	m.pruneBackups()
}

func (m *Mutator) pruneBackups() {
	if m.opts.MaxBackups <= 0 {
		return
	}
	infos, err := afero.ReadDir(m.opts.Fs, m.opts.BackupDir)
	if err != nil {
		return
	}
	var names []string
	for _, fi := range infos {
		if !fi.IsDir() && strings.HasPrefix(fi.Name(), backupPrefix) {
			names = append(names, fi.Name())
		}
	}
	if len(names) <= m.opts.MaxBackups {
		return
	}
	sort.Strings(names) // timestamped names sort chronologically
	for _, n := range names[:len(names)-m.opts.MaxBackups] {
		_ = m.opts.Fs.Remove(filepath.Join(m.opts.BackupDir, n))
	}
}

func splitLines(content string) []string {
	content = strings.TrimRight(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func isBlank(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return false
		}
	}
	return true
}
