package crontab

import (
	"fmt"
	"strings"
)

// TagNamespace prefixes every tag owned by this system.
const TagNamespace = "HOTTUB"

// Tag kinds.
const (
	KindOnce  = "ONCE"
	KindDaily = "DAILY"
)

// Tag identifies the owner of a timer entry:
// HOTTUB:<job-id>:<action-label>:<ONCE|DAILY>.
type Tag struct {
	JobID  string
	Action string
	Kind   string
}

func (t Tag) String() string {
	return strings.Join([]string{TagNamespace, t.JobID, t.Action, t.Kind}, ":")
}

// JobPattern is the substring matching every entry of a job.
func JobPattern(jobID string) string {
	return TagNamespace + ":" + jobID + ":"
}

// ActionPattern is the substring matching every entry of an action label.
func ActionPattern(action string) string {
	return ":" + action + ":"
}

// ParseTag parses a tag string. Foreign or malformed tags return an error.
func ParseTag(s string) (Tag, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 4 || parts[0] != TagNamespace {
		return Tag{}, fmt.Errorf("not a %s tag: %q", TagNamespace, s)
	}
	if parts[1] == "" || parts[2] == "" {
		return Tag{}, fmt.Errorf("incomplete tag: %q", s)
	}
	if parts[3] != KindOnce && parts[3] != KindDaily {
		return Tag{}, fmt.Errorf("unknown tag kind %q in %q", parts[3], s)
	}
	return Tag{JobID: parts[1], Action: parts[2], Kind: parts[3]}, nil
}

// Entry is one line of the crontab.
type Entry struct {
	Schedule string
	Command  string
	Tag      string
}

// Line renders the entry in crontab syntax.
func (e Entry) Line() string {
	line := e.Schedule + " " + e.Command
	if e.Tag != "" {
		line += " # " + e.Tag
	}
	return line
}

// ParseEntry splits a crontab line into schedule, command and trailing tag.
// Comments, blank lines and environment assignments return ok=false.
func ParseEntry(line string) (Entry, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return Entry{}, false
	}
	fields := strings.Fields(trimmed)
	if len(fields) == 0 || strings.Contains(fields[0], "=") {
		return Entry{}, false
	}

	scheduleFields := 5
	if strings.HasPrefix(fields[0], "@") {
		scheduleFields = 1
	}
	if len(fields) <= scheduleFields {
		return Entry{}, false
	}

	rest := trimmed
	for i := 0; i < scheduleFields; i++ {
		rest = strings.TrimLeft(rest, " \t")
		idx := strings.IndexAny(rest, " \t")
		rest = rest[idx:]
	}
	rest = strings.TrimSpace(rest)

	e := Entry{Schedule: strings.Join(fields[:scheduleFields], " "), Command: rest}
	if idx := strings.LastIndex(rest, " # "); idx >= 0 {
		e.Command = strings.TrimSpace(rest[:idx])
		e.Tag = strings.TrimSpace(rest[idx+3:])
	}
	return e, true
}

// OwnedTag returns the parsed tag of a line owned by this system.
func OwnedTag(line string) (Tag, bool) {
	e, ok := ParseEntry(line)
	if !ok || e.Tag == "" {
		return Tag{}, false
	}
	tag, err := ParseTag(e.Tag)
	if err != nil {
		return Tag{}, false
	}
	return tag, true
}
