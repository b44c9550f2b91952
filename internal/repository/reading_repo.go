package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"controlling_hottub/internal/models"
)

type ReadingSQLite struct {
	db *sql.DB
}

func NewReadingSQLite(db *sql.DB) *ReadingSQLite { return &ReadingSQLite{db: db} }

var _ ReadingRepo = (*ReadingSQLite)(nil)

const (
	insertReadingSQL = `INSERT INTO temperature_readings (device_id, recorded_at, water_temp_f, ambient_temp_f) VALUES (?, ?, ?, ?)`
	selectReadingSQL = `SELECT id, device_id, recorded_at, water_temp_f, ambient_temp_f FROM temperature_readings`
)

// Append stores a reading and returns its row id. A zero RecordedAt is
// stamped with the current time.
func (r *ReadingSQLite) Append(ctx context.Context, rd models.TemperatureReading) (int64, error) {
	if rd.RecordedAt.IsZero() {
		rd.RecordedAt = time.Now()
	}
	var ambient sql.NullFloat64
	if rd.AmbientTempF != nil {
		ambient = sql.NullFloat64{Float64: *rd.AmbientTempF, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, insertReadingSQL,
		strings.TrimSpace(rd.DeviceID),
		rd.RecordedAt.UTC().Format(sqliteTimestamp),
		rd.WaterTempF,
		ambient,
	)
	if err != nil {
		return 0, fmt.Errorf("insert reading: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id for reading: %w", err)
	}
	return id, nil
}

// Latest returns the newest reading; found=false on an empty table.
func (r *ReadingSQLite) Latest(ctx context.Context) (models.TemperatureReading, bool, error) {
	rd, err := scanReading(r.db.QueryRowContext(ctx, selectReadingSQL+" ORDER BY recorded_at DESC, id DESC LIMIT 1"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TemperatureReading{}, false, nil
		}
		return models.TemperatureReading{}, false, fmt.Errorf("select latest reading: %w", err)
	}
	return rd, true, nil
}

// List returns readings in [from, to] ordered by time; zero bounds are open.
func (r *ReadingSQLite) List(ctx context.Context, from, to time.Time) ([]models.TemperatureReading, error) {
	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		conds = append(conds, "recorded_at >= ?")
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		conds = append(conds, "recorded_at <= ?")
		args = append(args, to.UTC())
	}
	q := selectReadingSQL
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY recorded_at ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select readings: %w", err)
	}
	defer rows.Close()

	var out []models.TemperatureReading
	for rows.Next() {
		rd, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		out = append(out, rd)
	}
	return out, rows.Err()
}

func scanReading(s scanner) (models.TemperatureReading, error) {
	var (
		rd      models.TemperatureReading
		device  sql.NullString
		ambient sql.NullFloat64
	)
	if err := s.Scan(&rd.ID, &device, &rd.RecordedAt, &rd.WaterTempF, &ambient); err != nil {
		return rd, err
	}
	rd.DeviceID = device.String
	rd.RecordedAt = rd.RecordedAt.UTC()
	if ambient.Valid {
		v := ambient.Float64
		rd.AmbientTempF = &v
	}
	return rd, nil
}
