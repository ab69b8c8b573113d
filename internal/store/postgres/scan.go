package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/gitterbridge/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanActivity scans a single row into a model.ActivityRecord.
// The row must contain columns in the order defined by activityColumns.
func scanActivity(row scannable) (*model.ActivityRecord, error) {
	var (
		rec model.ActivityRecord
		doc []byte
	)
	if err := row.Scan(&rec.ID, &doc, &rec.ReceivedAt); err != nil {
		return nil, err
	}
	act, err := decodeActivity(doc)
	if err != nil {
		return nil, fmt.Errorf("activity %s: %w", rec.ID, err)
	}
	rec.Activity = act
	return &rec, nil
}

// scanActivityWithTotal scans a row that has a leading total_count column
// followed by the standard activity columns. Used by queryListActivities with
// COUNT(*) OVER().
func scanActivityWithTotal(row scannable) (*model.ActivityRecord, int, error) {
	var (
		total int
		rec   model.ActivityRecord
		doc   []byte
	)
	if err := row.Scan(&total, &rec.ID, &doc, &rec.ReceivedAt); err != nil {
		return nil, 0, err
	}
	act, err := decodeActivity(doc)
	if err != nil {
		return nil, 0, fmt.Errorf("activity %s: %w", rec.ID, err)
	}
	rec.Activity = act
	return &rec, total, nil
}

func decodeActivity(doc []byte) (*model.Activity, error) {
	var act model.Activity
	if err := json.Unmarshal(doc, &act); err != nil {
		return nil, fmt.Errorf("decode activity: %w", err)
	}
	return &act, nil
}

func scanRejection(row scannable) (*model.Rejection, error) {
	var (
		r       model.Rejection
		reason  sql.NullString
		payload []byte
	)
	if err := row.Scan(&r.ID, &r.Stage, &reason, &payload, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Reason = reason.String
	if len(payload) > 0 {
		r.Payload = json.RawMessage(payload)
	}
	return &r, nil
}

func scanRejections(rows *sql.Rows) ([]*model.Rejection, error) {
	var out []*model.Rejection
	for rows.Next() {
		r, err := scanRejection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
