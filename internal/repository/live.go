package repository

import (
	"context"
	"errors"
	"fmt"

	"pantrypal-api/internal/cache"
	"pantrypal-api/internal/logging"
	"pantrypal-api/internal/model"
)

// ErrNotifierClosed is reported to watchers when the change feed ends
// while they are still listening.
var ErrNotifierClosed = errors.New("change notifier closed")

// LiveStore turns an ItemRepository into a live store. Writes publish to the
// owner's change topic; watchers re-query on every signal.
type LiveStore struct {
	repo     ItemRepository
	notifier cache.Notifier
	log      logging.Logger
}

// NewLiveStore pairs a repository with a change notifier.
func NewLiveStore(repo ItemRepository, notifier cache.Notifier, log logging.Logger) *LiveStore {
	return &LiveStore{repo: repo, notifier: notifier, log: logging.For(log, "live_store")}
}

// Query runs a one-shot read.
func (s *LiveStore) Query(ctx context.Context, q model.ItemQuery) ([]model.Document, error) {
	return s.repo.QueryItems(ctx, q)
}

// Watch subscribes to the user's topic and emits a full snapshot now and
// after every change. Signals that arrive while a query runs are folded
// into the next one.
func (s *LiveStore) Watch(ctx context.Context, q model.ItemQuery) (<-chan model.Snapshot, error) {
	if err := checkQuery(q); err != nil {
		return nil, err
	}

	// Subscribe before the first read so no write falls between them.
	signals, err := s.notifier.Subscribe(ctx, cache.ItemsTopic(q.UserID))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan model.Snapshot, 1)
	go s.pump(ctx, q, signals, out)
	return out, nil
}

func (s *LiveStore) pump(ctx context.Context, q model.ItemQuery, signals <-chan struct{}, out chan<- model.Snapshot) {
	defer close(out)

	emit := func() bool {
		docs, err := s.repo.QueryItems(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			s.log.Warn("live query failed", "user_id", q.UserID, "error", err)
			s.send(ctx, out, model.Snapshot{Err: err})
			return false
		}
		return s.send(ctx, out, model.Snapshot{Docs: docs})
	}

	if !emit() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-signals:
			if !ok {
				if ctx.Err() == nil {
					s.send(ctx, out, model.Snapshot{Err: ErrNotifierClosed})
				}
				return
			}
			drain(signals)
			if !emit() {
				return
			}
		}
	}
}

func (s *LiveStore) send(ctx context.Context, out chan<- model.Snapshot, snap model.Snapshot) bool {
	select {
	case out <- snap:
		return true
	case <-ctx.Done():
		return false
	}
}

// drain discards signals already queued.
func drain(signals <-chan struct{}) {
	for {
		select {
		case _, ok := <-signals:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// Create stores a new item and notifies the owner's watchers.
func (s *LiveStore) Create(ctx context.Context, userID string, fields model.Fields) (string, error) {
	id, err := s.repo.CreateItem(ctx, userID, fields)
	if err != nil {
		return "", err
	}
	s.publish(ctx, userID)
	return id, nil
}

// Update merges fields into the user's item and notifies watchers.
func (s *LiveStore) Update(ctx context.Context, userID, id string, fields model.Fields) error {
	if err := s.repo.UpdateItem(ctx, userID, id, fields); err != nil {
		return err
	}
	s.publish(ctx, userID)
	return nil
}

// Delete removes the user's item and notifies watchers.
func (s *LiveStore) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.DeleteItem(ctx, userID, id); err != nil {
		return err
	}
	s.publish(ctx, userID)
	return nil
}

// Stats returns repository statistics.
func (s *LiveStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	return s.repo.GetStats(ctx)
}

// publish failures are logged only; the write already succeeded.
func (s *LiveStore) publish(ctx context.Context, userID string) {
	if err := s.notifier.Publish(context.WithoutCancel(ctx), cache.ItemsTopic(userID)); err != nil {
		s.log.Warn("change publish failed", "user_id", userID, "error", err)
	}
}

// Close closes the underlying repository.
func (s *LiveStore) Close() error {
	return s.repo.Close()
}
