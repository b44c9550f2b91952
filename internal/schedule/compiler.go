// Package schedule turns timestamps and daily times into crontab
// expressions in the right frame and installs them.
package schedule

import (
	"context"
	"fmt"
	"time"

	"controlling_hottub/internal/crontab"
	"controlling_hottub/internal/timezone"

	"github.com/robfig/cron/v3"
)

// EntryWriter is the part of the crontab mutator the compiler needs.
type EntryWriter interface {
	AddEntry(ctx context.Context, line string) error
}

// Compiler produces crontab expressions. Firing expressions are always in
// the host timezone; monitoring expressions are in UTC.
type Compiler struct {
	tz     *timezone.Resolver
	writer EntryWriter
}

func NewCompiler(tz *timezone.Resolver, writer EntryWriter) *Compiler {
	return &Compiler{tz: tz, writer: writer}
}

var standardParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ExpressionFor returns the one-off expression for t, in UTC or host time.
func (c *Compiler) ExpressionFor(t time.Time, useUTC bool) string {
	if useUTC {
		t = t.UTC()
	} else {
		t = c.tz.ToServerLocal(t)
	}
	return fmt.Sprintf("%d %d %d %d *", t.Minute(), t.Hour(), t.Day(), int(t.Month()))
}

// DailyExpressionFor returns the daily expression for an "HH:MM±HH:MM" time.
func (c *Compiler) DailyExpressionFor(offsetTime string, useUTC bool) (string, error) {
	loc := c.tz.Location()
	if useUTC {
		loc = time.UTC
	}
	t, err := timezone.ParseOffsetTime(offsetTime, loc)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}

// ScheduleAt installs a one-off entry firing at utc (in host time).
func (c *Compiler) ScheduleAt(ctx context.Context, utc time.Time, command string, tag crontab.Tag) (string, error) {
	expr := c.ExpressionFor(utc, false)
	return expr, c.install(ctx, expr, command, tag)
}

// ScheduleDaily installs a daily entry for an "HH:MM±HH:MM" time (in host time).
func (c *Compiler) ScheduleDaily(ctx context.Context, offsetTime, command string, tag crontab.Tag) (string, error) {
	expr, err := c.DailyExpressionFor(offsetTime, false)
	if err != nil {
		return "", err
	}
	return expr, c.install(ctx, expr, command, tag)
}

// Line renders a full crontab line without installing it.
func (c *Compiler) Line(expr, command string, tag crontab.Tag) (string, error) {
	if err := Validate(expr); err != nil {
		return "", err
	}
	return crontab.Entry{Schedule: expr, Command: command, Tag: tag.String()}.Line(), nil
}

func (c *Compiler) install(ctx context.Context, expr, command string, tag crontab.Tag) error {
	line, err := c.Line(expr, command, tag)
	if err != nil {
		return err
	}
	return c.writer.AddEntry(ctx, line)
}

// NextFire returns the next time a host-frame expression fires after t.
func (c *Compiler) NextFire(expr string, after time.Time) (time.Time, error) {
	sched, err := standardParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	return sched.Next(after.In(c.tz.Location())), nil
}

// Validate checks a five-field expression.
func Validate(expr string) error {
	if _, err := standardParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}
