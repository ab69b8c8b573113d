package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/gitterbridge/internal/model"
	"github.com/alfredjeanlab/gitterbridge/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version        string    `json:"version"`
	Type           string    `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	ActivityCount  int       `json:"activity_count"`
	RejectionCount int       `json:"rejection_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every stored activity and rejection as JSONL to w.
// Activities and rejections are each sorted by ID.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	activities, _, err := s.ListActivities(ctx, model.ActivityFilter{})
	if err != nil {
		return fmt.Errorf("list activities: %w", err)
	}
	sort.Slice(activities, func(i, j int) bool {
		return activities[i].ID < activities[j].ID
	})

	rejections, err := s.ListRejections(ctx, 0)
	if err != nil {
		return fmt.Errorf("list rejections: %w", err)
	}
	sort.Slice(rejections, func(i, j int) bool {
		return rejections[i].ID < rejections[j].ID
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:        "1",
		Type:           "header",
		Timestamp:      time.Now().UTC(),
		ActivityCount:  len(activities),
		RejectionCount: len(rejections),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, a := range activities {
		if err := enc.Encode(record{Type: "activity", Data: a}); err != nil {
			return fmt.Errorf("encode activity %s: %w", a.ID, err)
		}
	}

	for _, r := range rejections {
		if err := enc.Encode(record{Type: "rejection", Data: r}); err != nil {
			return fmt.Errorf("encode rejection %s: %w", r.ID, err)
		}
	}

	return nil
}
