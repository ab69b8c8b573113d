package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/alfredjeanlab/gitterbridge/internal/model"
	"github.com/alfredjeanlab/gitterbridge/internal/store"
)

// activityColumns is the column list used for SELECT statements on the activities table.
const activityColumns = `id, activity, received_at`

const rejectionColumns = `id, stage, reason, payload, created_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryRecordActivity(ctx context.Context, db executor, rec *model.ActivityRecord) error {
	if rec.Activity == nil {
		return fmt.Errorf("record %s has no activity", rec.ID)
	}
	doc, err := json.Marshal(rec.Activity)
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO activities (
			id, object_id, actor_id, target_id, published, activity, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID,
		rec.Activity.Object.ID,
		nullString(rec.Activity.Actor.ID),
		nullString(rec.Activity.Target.ID),
		rec.Activity.Published,
		doc,
		rec.ReceivedAt,
	)
	return err
}

func queryGetActivity(ctx context.Context, db executor, id string) (*model.ActivityRecord, error) {
	row := db.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE id = $1`, id)
	rec, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return rec, err
}

func queryListActivities(ctx context.Context, db executor, filter model.ActivityFilter) ([]*model.ActivityRecord, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.TargetID != "" {
		whereClauses = append(whereClauses, "target_id = "+nextArg())
		args = append(args, filter.TargetID)
	}
	if filter.ActorID != "" {
		whereClauses = append(whereClauses, "actor_id = "+nextArg())
		args = append(args, filter.ActorID)
	}
	if filter.Since != nil {
		whereClauses = append(whereClauses, "received_at >= "+nextArg())
		args = append(args, *filter.Since)
	}

	query := `SELECT COUNT(*) OVER() AS total_count, ` + activityColumns + ` FROM activities`
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY received_at DESC, id ASC"

	if filter.Limit > 0 {
		query += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		records []*model.ActivityRecord
		total   int
	)
	for rows.Next() {
		rec, t, err := scanActivityWithTotal(rows)
		if err != nil {
			return nil, 0, err
		}
		total = t
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// An offset past the end yields no rows, so the window count is lost.
	if len(records) == 0 && filter.Offset > 0 {
		total, err = queryCountActivities(ctx, db, whereClauses, args[:len(whereClauses)])
		if err != nil {
			return nil, 0, err
		}
	}
	return records, total, nil
}

func queryCountActivities(ctx context.Context, db executor, whereClauses []string, args []any) (int, error) {
	query := `SELECT COUNT(*) FROM activities`
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func queryRecordRejection(ctx context.Context, db executor, rej *model.Rejection) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO rejections (id, stage, reason, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		rej.ID,
		string(rej.Stage),
		nullString(rej.Reason),
		jsonbBytes(rej.Payload),
		rej.CreatedAt,
	)
	return err
}

func queryListRejections(ctx context.Context, db executor, limit int) ([]*model.Rejection, error) {
	query := `SELECT ` + rejectionColumns + ` FROM rejections ORDER BY created_at DESC, id ASC`
	var args []any
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRejections(rows)
}
