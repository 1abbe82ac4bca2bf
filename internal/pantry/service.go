package pantry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pantrypal-api/internal/clock"
	"pantrypal-api/internal/logging"
	"pantrypal-api/internal/model"
)

var (
	// ErrAuthRequired is returned by mutations attempted with no user set.
	ErrAuthRequired = errors.New("no authenticated user")

	// ErrSubscriptionClosed is recorded when the store ends a live query
	// without reporting an error.
	ErrSubscriptionClosed = errors.New("item subscription closed by store")
)

// Store is the source of truth for pantry items.
type Store interface {
	// Query runs a one-shot read of the query.
	Query(ctx context.Context, q model.ItemQuery) ([]model.Document, error)

	// Watch opens a live query. Every emission is a full ordered snapshot.
	// The channel closes after a snapshot carrying an error, or when ctx ends.
	Watch(ctx context.Context, q model.ItemQuery) (<-chan model.Snapshot, error)

	// Update merges fields into the user's item.
	Update(ctx context.Context, userID, id string, fields model.Fields) error

	// Delete removes the user's item.
	Delete(ctx context.Context, userID, id string) error
}

// State is the observable state of a Service.
type State struct {
	Items   []model.PantryItem
	Stats   model.PantryStats
	Loading bool
	Err     error
}

func baselineState() State {
	return State{Items: []model.PantryItem{}, Stats: model.EmptyStats()}
}

func (st State) clone() State {
	items := make([]model.PantryItem, len(st.Items))
	copy(items, st.Items)
	st.Items = items
	return st
}

// Service keeps one user's items in sync with the store and holds the
// derived stats. It is the only writer of its state.
type Service struct {
	store Store
	norm  *Normalizer
	clock clock.Clock
	log   logging.Logger

	mu       sync.Mutex
	user     *model.User
	state    State
	gen      uint64
	cancel   context.CancelFunc
	faulted  bool
	closed   bool
	watchers map[chan State]struct{}

	wg sync.WaitGroup
}

// NewService creates a service with no user set.
func NewService(store Store, norm *Normalizer, c clock.Clock, log logging.Logger) *Service {
	if c == nil {
		c = clock.Real{}
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	if norm == nil {
		norm = NewNormalizer(c, log)
	}
	return &Service{
		store:    store,
		norm:     norm,
		clock:    c,
		log:      log,
		state:    baselineState(),
		watchers: make(map[chan State]struct{}),
	}
}

// SetUser binds the service to user. A nil user tears down the live query
// and resets to the empty baseline. A new user replaces the subscription.
// Setting the current user again only re-subscribes after a fault.
func (s *Service) SetUser(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if user == nil {
		s.teardownLocked()
		s.user = nil
		s.state = baselineState()
		s.publishLocked()
		return
	}

	if s.user != nil && s.user.ID == user.ID && s.cancel != nil && !s.faulted {
		s.user = user
		return
	}

	if s.user == nil || s.user.ID != user.ID {
		s.state = baselineState()
	}
	s.teardownLocked()
	s.user = user
	s.state.Loading = true
	s.state.Err = nil

	s.openLocked(user)
	s.publishLocked()
}

func (s *Service) openLocked(user *model.User) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.faulted = false

	s.wg.Add(1)
	go s.subscribe(ctx, s.gen, model.UserItemsQuery(user.ID))

	s.log.Info("subscription opened", "user_id", user.ID)
}

// teardownLocked cancels the live query. Anything it still delivers is
// ignored because the generation moves on.
func (s *Service) teardownLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.faulted = false
}

func (s *Service) subscribe(ctx context.Context, gen uint64, q model.ItemQuery) {
	defer s.wg.Done()

	snaps, err := s.store.Watch(ctx, q)
	if err != nil {
		s.fail(gen, fmt.Errorf("opening item subscription: %w", err))
		return
	}

	for snap := range snaps {
		if snap.Err != nil {
			s.fail(gen, snap.Err)
			return
		}
		s.apply(gen, snap.Docs, "snapshot")
	}

	if ctx.Err() == nil {
		s.fail(gen, ErrSubscriptionClosed)
	}
}

// apply replaces the held items with docs and recomputes stats, unless
// gen is no longer current.
func (s *Service) apply(gen uint64, docs []model.Document, source string) bool {
	rep := s.norm.NormalizeAll(docs)
	stats := Aggregate(rep.Items, s.clock.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return false
	}
	s.state.Items = rep.Items
	s.state.Stats = stats
	s.state.Err = nil
	s.state.Loading = false
	s.publishLocked()

	s.log.Debug("items replaced", "source", source, "items", len(rep.Items), "rejected", len(rep.Rejected))
	return true
}

// fail records a subscription fault. Items and stats are kept.
func (s *Service) fail(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return
	}
	s.state.Err = err
	s.state.Loading = false
	s.faulted = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.publishLocked()

	s.log.Error("subscription failed", "error", err)
}

// Refresh re-reads the user's items once. On failure the error is recorded
// in the state and returned; items and stats are kept. A result that
// arrives after the user changed is dropped. If the live query had failed,
// Refresh also opens a new one.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	user := s.user
	if user == nil {
		s.state = baselineState()
		s.publishLocked()
		s.mu.Unlock()
		return nil
	}
	if s.faulted && !s.closed {
		s.teardownLocked()
		s.openLocked(user)
	}
	s.state.Loading = true
	s.state.Err = nil
	s.publishLocked()
	s.mu.Unlock()

	docs, err := s.store.Query(ctx, model.UserItemsQuery(user.ID))

	s.mu.Lock()
	if s.user == nil || s.user.ID != user.ID {
		s.mu.Unlock()
		s.log.Debug("refresh result dropped", "user_id", user.ID)
		return nil
	}
	if err != nil {
		err = fmt.Errorf("refreshing items: %w", err)
		s.state.Err = err
		s.state.Loading = false
		s.publishLocked()
		s.mu.Unlock()
		s.log.Error("refresh failed", "user_id", user.ID, "error", err)
		return err
	}
	gen := s.gen
	s.mu.Unlock()

	if !s.apply(gen, docs, "refresh") {
		// A new subscription started meanwhile; it owns the state now.
		s.log.Debug("refresh result dropped", "user_id", user.ID)
	}
	return nil
}

// DeleteItem removes an item from the store, then drops it from the held
// items. Stats are left for the next snapshot to settle.
func (s *Service) DeleteItem(ctx context.Context, id string) error {
	user := s.currentUser()
	if user == nil {
		return ErrAuthRequired
	}

	if err := s.store.Delete(ctx, user.ID, id); err != nil {
		return fmt.Errorf("deleting item %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil || s.user.ID != user.ID {
		return nil
	}
	kept := make([]model.PantryItem, 0, len(s.state.Items))
	for _, item := range s.state.Items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	s.state.Items = kept
	s.publishLocked()
	return nil
}

// UpdateItem writes a partial change through to the store. The held state
// is not touched; the change shows up with the next snapshot.
func (s *Service) UpdateItem(ctx context.Context, id string, upd model.ItemUpdate) error {
	user := s.currentUser()
	if user == nil {
		return ErrAuthRequired
	}

	fields := upd.Fields()
	if exp, ok := fields["expirationDate"].(time.Time); ok {
		fields["expirationDate"] = model.TimestampFromTime(exp)
	}
	fields["updatedAt"] = model.TimestampFromTime(s.clock.Now())

	if err := s.store.Update(ctx, user.ID, id, fields); err != nil {
		return fmt.Errorf("updating item %s: %w", id, err)
	}
	return nil
}

// User returns the bound user, or nil.
func (s *Service) User() *model.User {
	return s.currentUser()
}

func (s *Service) currentUser() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// State returns a copy of the current state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Watch returns a channel carrying the latest state after every change,
// starting with the current one. Slow readers only see the newest state.
// The channel closes when ctx ends or the service is closed.
func (s *Service) Watch(ctx context.Context) <-chan State {
	ch := make(chan State, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch
	}
	s.watchers[ch] = struct{}{}
	ch <- s.state.clone()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.watchers[ch]; ok {
			delete(s.watchers, ch)
			close(ch)
		}
	}()
	return ch
}

func (s *Service) publishLocked() {
	for ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- s.state.clone()
	}
}

// Close tears down the subscription and closes every watch channel.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.teardownLocked()
	for ch := range s.watchers {
		close(ch)
	}
	s.watchers = nil
	s.mu.Unlock()

	s.wg.Wait()
}
