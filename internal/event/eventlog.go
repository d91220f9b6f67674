package event

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Log is the durable append-only record of domain events, kept next to the
// entities it describes so an audit never depends on broker availability.
type Log struct {
	db     *sql.DB
	siteID string
}

func NewLog(db *sql.DB, siteID string) *Log {
	if siteID == "" {
		siteID = "local"
	}
	return &Log{db: db, siteID: siteID}
}

func (l *Log) Append(ctx context.Context, typ, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		l.siteID, typ, key, string(data), time.Now().Unix())
	return err
}
