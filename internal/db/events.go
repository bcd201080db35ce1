package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"alert-service/internal/models"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

const eventColumns = `id, user_id, type, confidence, lat, lon, audio_key, video_key,
	speed, accel_peak, metadata, status, created_at`

// CreateEvent inserts an event; id and created_at are assigned by the database.
func (d *DB) CreateEvent(ctx context.Context, ev models.Event) (models.Event, error) {
	if ev.Metadata == nil {
		ev.Metadata = map[string]interface{}{}
	}
	if ev.Status == "" {
		ev.Status = models.StatusSent
	}

	query := `
	INSERT INTO events (
		user_id, type, confidence, lat, lon, audio_key, video_key,
		speed, accel_peak, metadata, status
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7,
		$8, $9, $10, $11
	)
	RETURNING id, created_at`

	err := d.Pool.QueryRow(ctx, query,
		ev.UserID,
		ev.Type,
		ev.Confidence,
		ev.Lat,
		ev.Lon,
		ev.AudioKey,
		ev.VideoKey,
		ev.Speed,
		ev.AccelPeak,
		ev.Metadata, // bound as JSONB
		ev.Status,
	).Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		return models.Event{}, fmt.Errorf("failed to insert event: %w", err)
	}
	return ev, nil
}

// clampLimit maps a non-positive limit to DefaultListLimit and caps it at
// MaxListLimit.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// ListEvents returns the newest events first, at most MaxListLimit.
func (d *DB) ListEvents(ctx context.Context, limit int) ([]models.Event, error) {
	limit = clampLimit(limit)

	query := `SELECT ` + eventColumns + `
	FROM events
	ORDER BY created_at DESC, id DESC
	LIMIT $1`

	rows, err := d.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	list := []models.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		list = append(list, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return list, nil
}

// GetEvent fetches one event by id.
func (d *DB) GetEvent(ctx context.Context, id int64) (models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	ev, err := scanEvent(d.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Event{}, fmt.Errorf("event %d: %w", id, models.ErrNotFound)
		}
		return models.Event{}, fmt.Errorf("failed to get event %d: %w", id, err)
	}
	return ev, nil
}

// UpdateEventStatus sets the status column. Any string is accepted.
func (d *DB) UpdateEventStatus(ctx context.Context, id int64, status string) error {
	result, err := d.Pool.Exec(ctx, `UPDATE events SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("event %d: %w", id, models.ErrNotFound)
	}
	return nil
}

func scanEvent(row pgx.Row) (models.Event, error) {
	var ev models.Event
	err := row.Scan(
		&ev.ID,
		&ev.UserID,
		&ev.Type,
		&ev.Confidence,
		&ev.Lat,
		&ev.Lon,
		&ev.AudioKey,
		&ev.VideoKey,
		&ev.Speed,
		&ev.AccelPeak,
		&ev.Metadata,
		&ev.Status,
		&ev.CreatedAt,
	)
	if ev.Metadata == nil {
		ev.Metadata = map[string]interface{}{}
	}
	return ev, err
}
