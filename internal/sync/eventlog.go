package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

const (
	EventEncoderFitted   = "EncoderFitted"
	EventEncoderReloaded = "EncoderReloaded"
	EventReloadFailed    = "EncoderReloadFailed"
)

type Event struct {
	Seq       int64  `json:"seq"`
	SiteID    string `json:"site_id"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

type EventRepo struct {
	db     *sql.DB
	siteID string
}

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db, siteID: "local"} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	if e.SiteID == "" {
		e.SiteID = r.siteID
	}
	if e.DataJSON == "" {
		e.DataJSON = "{}"
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}

// Record appends an event with data marshalled to JSON.
func (r *EventRepo) Record(ctx context.Context, typ, key string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return r.Append(ctx, Event{Type: typ, Key: key, DataJSON: string(b)})
}

// After returns up to limit events with seq > after, oldest first.
func (r *EventRepo) After(ctx context.Context, after int64, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, site_id, typ, key, data, created_at FROM event_log
		 WHERE seq > $1 ORDER BY seq LIMIT $2`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
