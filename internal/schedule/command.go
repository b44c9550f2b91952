package schedule

import (
	"fmt"
	"regexp"
	"strings"

	"al.essio.dev/pkg/shellescape"
)

var jobIDRe = regexp.MustCompile(`^(job|rec)-[0-9a-f]{8}$`)

// ValidJobID reports whether id has the generated job id shape.
func ValidJobID(id string) bool {
	return jobIDRe.MatchString(id)
}

// CommandBuilder renders the shell commands placed in crontab entries. It is
// the single place where arguments are escaped.
type CommandBuilder struct {
	WorkDir    string
	Binary     string
	ConfigFile string
	LogFile    string
}

// Fire returns the command that runs job id when its timer fires.
func (b CommandBuilder) Fire(id string) (string, error) {
	if !ValidJobID(id) {
		return "", fmt.Errorf("refusing to build command for invalid job id %q", id)
	}
	return b.render("fire", id), nil
}

// Subcommand returns the command for a fixed maintenance subcommand.
func (b CommandBuilder) Subcommand(name string) string {
	return b.render(name)
}

func (b CommandBuilder) render(args ...string) string {
	argv := []string{b.Binary}
	if b.ConfigFile != "" {
		argv = append(argv, "--config", b.ConfigFile)
	}
	argv = append(argv, args...)

	cmd := shellescape.QuoteCommand(argv)
	if b.WorkDir != "" {
		cmd = "cd " + shellescape.Quote(b.WorkDir) + " && " + cmd
	}
	if b.LogFile != "" {
		cmd += " >> " + shellescape.Quote(b.LogFile) + " 2>&1"
	}
	// cron treats an unescaped % as a newline.
	return strings.ReplaceAll(cmd, "%", `\%`)
}
