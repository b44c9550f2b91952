package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"controlling_hottub/internal/models"

	"github.com/google/uuid"
)

// sqliteTimestamp is the layout sqlite's TIMESTAMP columns are written in.
const sqliteTimestamp = "2006-01-02 15:04:05"

type EventSQLite struct {
	db *sql.DB
}

func NewEventSQLite(db *sql.DB) *EventSQLite { return &EventSQLite{db: db} }

var _ EventRepo = (*EventSQLite)(nil)

// Append inserts a new event. If EventID or OccurredAt are empty, they're set.
func (r *EventSQLite) Append(ctx context.Context, e models.EquipmentEvent) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	} else {
		e.OccurredAt = e.OccurredAt.UTC()
	}

	var metaPtr *string
	if e.Metadata != nil {
		if b, err := json.Marshal(e.Metadata); err == nil {
			s := string(b)
			metaPtr = &s
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO equipment_events (id, occurred_at, type, message, meta)
		VALUES (?, ?, ?, ?, ?)
	`,
		e.EventID,
		e.OccurredAt.Format(sqliteTimestamp),
		strings.ToUpper(strings.TrimSpace(e.Type)),
		e.Description,
		metaPtr,
	)
	return err
}

// List returns events filtered by [from, to] (inclusive) and/or type, ordered ASC.
func (r *EventSQLite) List(ctx context.Context, from, to time.Time, typ string) ([]models.EquipmentEvent, error) {
	var (
		conds []string
		args  []any
	)

	if !from.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, to.UTC())
	}
	if typ = strings.ToUpper(strings.TrimSpace(typ)); typ != "" {
		conds = append(conds, "type = ?")
		args = append(args, typ)
	}

	q := `SELECT id, occurred_at, type, message, meta FROM equipment_events`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY occurred_at ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.EquipmentEvent, 0, 64)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Last returns the most recent event of any of the given types.
func (r *EventSQLite) Last(ctx context.Context, types ...string) (models.EquipmentEvent, bool, error) {
	if len(types) == 0 {
		return models.EquipmentEvent{}, false, errors.New("no event types given")
	}
	marks := make([]string, len(types))
	args := make([]any, len(types))
	for i, t := range types {
		marks[i] = "?"
		args[i] = strings.ToUpper(strings.TrimSpace(t))
	}
	q := `SELECT id, occurred_at, type, message, meta FROM equipment_events WHERE type IN (` +
		strings.Join(marks, ", ") + `) ORDER BY occurred_at DESC, rowid DESC LIMIT 1`

	ev, err := scanEvent(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.EquipmentEvent{}, false, nil
		}
		return models.EquipmentEvent{}, false, err
	}
	return ev, true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (models.EquipmentEvent, error) {
	var ev models.EquipmentEvent
	var metaStr sql.NullString
	if err := s.Scan(&ev.EventID, &ev.OccurredAt, &ev.Type, &ev.Description, &metaStr); err != nil {
		return ev, err
	}
	ev.OccurredAt = ev.OccurredAt.UTC()
	if metaStr.Valid && metaStr.String != "" {
		var v any
		if err := json.Unmarshal([]byte(metaStr.String), &v); err == nil {
			ev.Metadata = v
		} else {
			ev.Metadata = metaStr.String
		}
	}
	return ev, nil
}
