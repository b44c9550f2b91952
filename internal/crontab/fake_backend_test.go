package crontab

import (
	"context"
	"errors"
)

// memBackend is an in-memory crontab used by tests across this package.
type memBackend struct {
	content  string
	exists   bool
	readErr  error
	installs int
	// tamper rewrites the installed content, simulating a host that changed
	// the table under us.
	tamper func(string) string
}

func (b *memBackend) Read(ctx context.Context) (string, error) {
	if b.readErr != nil {
		return "", b.readErr
	}
	if !b.exists {
		return "", ErrNoCrontab
	}
	return b.content, nil
}

func (b *memBackend) Install(ctx context.Context, content string) error {
	b.installs++
	if b.tamper != nil {
		content = b.tamper(content)
	}
	b.content = content
	b.exists = true
	return nil
}

var errDisk = errors.New("permission denied")
