// Package memory implements store.Store in process memory. It is the default
// backend when no database URL is configured and is lost on restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/alfredjeanlab/gitterbridge/internal/model"
	"github.com/alfredjeanlab/gitterbridge/internal/store"
)

// Store keeps activities and rejections in maps guarded by a mutex.
type Store struct {
	mu         sync.RWMutex
	activities map[string]*model.ActivityRecord
	rejections map[string]*model.Rejection
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		activities: make(map[string]*model.ActivityRecord),
		rejections: make(map[string]*model.Rejection),
	}
}

func (s *Store) RecordActivity(ctx context.Context, rec *model.ActivityRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.activities[rec.ID]; ok {
		return fmt.Errorf("activity %s already recorded", rec.ID)
	}
	cp := *rec
	s.activities[rec.ID] = &cp
	return nil
}

func (s *Store) GetActivity(ctx context.Context, id string) (*model.ActivityRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.activities[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// ListActivities returns matching records newest first. A zero Limit means
// no limit.
func (s *Store) ListActivities(ctx context.Context, filter model.ActivityFilter) ([]*model.ActivityRecord, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	var matched []*model.ActivityRecord
	for _, rec := range s.activities {
		if matches(rec, filter) {
			cp := *rec
			matched = append(matched, &cp)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ReceivedAt.Equal(matched[j].ReceivedAt) {
			return matched[i].ReceivedAt.After(matched[j].ReceivedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	return page(matched, filter.Offset, filter.Limit), total, nil
}

func (s *Store) RecordRejection(ctx context.Context, rej *model.Rejection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rejections[rej.ID]; ok {
		return fmt.Errorf("rejection %s already recorded", rej.ID)
	}
	cp := *rej
	s.rejections[rej.ID] = &cp
	return nil
}

// ListRejections returns rejections newest first. A zero limit means no limit.
func (s *Store) ListRejections(ctx context.Context, limit int) ([]*model.Rejection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]*model.Rejection, 0, len(s.rejections))
	for _, r := range s.rejections {
		cp := *r
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, 0, limit), nil
}

func (s *Store) Close() error {
	return nil
}

func matches(rec *model.ActivityRecord, f model.ActivityFilter) bool {
	if f.Since != nil && rec.ReceivedAt.Before(*f.Since) {
		return false
	}
	var actorID, targetID string
	if rec.Activity != nil {
		actorID, targetID = rec.Activity.Actor.ID, rec.Activity.Target.ID
	}
	if f.TargetID != "" && targetID != f.TargetID {
		return false
	}
	if f.ActorID != "" && actorID != f.ActorID {
		return false
	}
	return true
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
