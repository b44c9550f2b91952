// Package timezone resolves the host system timezone, which is the frame the
// crontab daemon fires in, and converts between client offsets, UTC and
// system-local time.
package timezone

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Default host locations consulted by New.
const (
	DefaultDescriptorFile = "/etc/timezone"
	DefaultLocaltimeLink  = "/etc/localtime"
)

// ReferenceDate anchors time-of-day values that carry no date.
var ReferenceDate = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

var (
	ErrInvalidOffsetTime = errors.New("invalid time: expected HH:MM+HH:MM or HH:MM-HH:MM")

	offsetTimeRe = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)([+-])(\d{2}):(\d{2})$`)
)

// Resolver finds the host timezone once and memoizes it. The zero value is
// not usable; construct with New or NewWith.
type Resolver struct {
	descriptorFile string
	localtimeLink  string
	lookupEnv      func(string) (string, bool)

	mu     sync.Mutex
	name   string
	loc    *time.Location
	source string
}

// New returns a resolver reading the standard host files.
func New() *Resolver {
	return NewWith(DefaultDescriptorFile, DefaultLocaltimeLink, os.LookupEnv)
}

// NewWith returns a resolver with explicit sources. Empty paths are skipped.
func NewWith(descriptorFile, localtimeLink string, lookupEnv func(string) (string, bool)) *Resolver {
	if lookupEnv == nil {
		lookupEnv = func(string) (string, bool) { return "", false }
	}
	return &Resolver{
		descriptorFile: descriptorFile,
		localtimeLink:  localtimeLink,
		lookupEnv:      lookupEnv,
	}
}

// Fixed returns a resolver pinned to loc. Used by tests and by callers that
// already know the host frame.
func Fixed(loc *time.Location) *Resolver {
	r := NewWith("", "", nil)
	r.name = loc.String()
	r.loc = loc
	r.source = "fixed"
	return r
}

// SystemTimezone returns the IANA name of the host timezone.
func (r *Resolver) SystemTimezone() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolveLocked()
	return r.name
}

// Source reports which lookup step produced the timezone.
func (r *Resolver) Source() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolveLocked()
	return r.source
}

// Location returns the host timezone as a *time.Location.
func (r *Resolver) Location() *time.Location {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolveLocked()
	return r.loc
}

// Reset clears the memoized value so the next call resolves again.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.source == "fixed" {
		return
	}
	r.name, r.loc, r.source = "", nil, ""
}

func (r *Resolver) resolveLocked() {
	if r.loc != nil {
		return
	}
	for _, step := range []struct {
		source string
		lookup func() string
	}{
		{"descriptor", r.fromDescriptor},
		{"symlink", r.fromSymlink},
		{"env", r.fromEnv},
	} {
		name := step.lookup()
		if name == "" {
			continue
		}
		loc, err := time.LoadLocation(name)
		if err != nil {
			continue
		}
		r.name, r.loc, r.source = name, loc, step.source
		return
	}
	// Last resort: the runtime default may not match the crontab frame.
	r.name, r.loc, r.source = time.Local.String(), time.Local, "runtime"
}

func (r *Resolver) fromDescriptor() string {
	if r.descriptorFile == "" {
		return ""
	}
	b, err := os.ReadFile(r.descriptorFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func (r *Resolver) fromSymlink() string {
	if r.localtimeLink == "" {
		return ""
	}
	target, err := os.Readlink(r.localtimeLink)
	if err != nil {
		return ""
	}
	target = filepath.ToSlash(target)
	if i := strings.Index(target, "zoneinfo/"); i >= 0 {
		return target[i+len("zoneinfo/"):]
	}
	return ""
}

func (r *Resolver) fromEnv() string {
	v, ok := r.lookupEnv("TZ")
	if !ok {
		return ""
	}
	return strings.TrimPrefix(strings.TrimSpace(v), ":")
}

// ToUTC converts t to UTC.
func (r *Resolver) ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// ToServerLocal converts t to the host timezone.
func (r *Resolver) ToServerLocal(t time.Time) time.Time {
	return t.In(r.Location())
}

// ParseOffsetTime parses "HH:MM±HH:MM" on ReferenceDate and returns it in target.
func ParseOffsetTime(s string, target *time.Location) (time.Time, error) {
	hour, minute, zone, err := splitOffsetTime(s)
	if err != nil {
		return time.Time{}, err
	}
	t := time.Date(ReferenceDate.Year(), ReferenceDate.Month(), ReferenceDate.Day(), hour, minute, 0, 0, zone)
	return t.In(target), nil
}

// OffsetOf returns the fixed zone encoded in an "HH:MM±HH:MM" string.
func OffsetOf(s string) (*time.Location, error) {
	_, _, zone, err := splitOffsetTime(s)
	return zone, err
}

// ClockOf returns the hour and minute of an "HH:MM±HH:MM" string in its own offset.
func ClockOf(s string) (hour, minute int, err error) {
	hour, minute, _, err = splitOffsetTime(s)
	return hour, minute, err
}

func splitOffsetTime(s string) (int, int, *time.Location, error) {
	m := offsetTimeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, nil, fmt.Errorf("%w: %q", ErrInvalidOffsetTime, s)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	offH, _ := strconv.Atoi(m[4])
	offM, _ := strconv.Atoi(m[5])
	if offH > 14 || offM > 59 {
		return 0, 0, nil, fmt.Errorf("%w: offset out of range in %q", ErrInvalidOffsetTime, s)
	}
	offset := offH*3600 + offM*60
	if m[3] == "-" {
		offset = -offset
	}
	return hour, minute, time.FixedZone(m[3]+m[4]+":"+m[5], offset), nil
}

// FormatOffsetTime renders t as "HH:MM±HH:MM" in t's own zone.
func FormatOffsetTime(t time.Time) string {
	return t.Format("15:04-07:00")
}
