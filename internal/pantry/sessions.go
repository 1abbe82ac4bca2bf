package pantry

import (
	"sort"
	"sync"
	"time"

	"pantrypal-api/internal/clock"
	"pantrypal-api/internal/logging"
	"pantrypal-api/internal/model"
)

// HubConfig controls how long idle sessions are kept.
type HubConfig struct {
	// IdleTimeout is how long a session may go unused before it is closed.
	IdleTimeout time.Duration

	// ReapInterval is how often idle sessions are looked for.
	ReapInterval time.Duration
}

// DefaultHubConfig returns the default session lifetimes.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		IdleTimeout:  30 * time.Minute,
		ReapInterval: time.Minute,
	}
}

type session struct {
	svc      *Service
	lastUsed time.Time
	inUse    int
}

// Hub keeps one Service per signed-in user and closes the idle ones.
type Hub struct {
	store Store
	norm  *Normalizer
	clock clock.Clock
	log   logging.Logger
	cfg   HubConfig

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool

	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
	running  bool
}

// NewHub creates a hub. Call Start to run the idle reaper.
func NewHub(store Store, norm *Normalizer, c clock.Clock, log logging.Logger, cfg HubConfig) *Hub {
	def := DefaultHubConfig()
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.ReapInterval == 0 {
		cfg.ReapInterval = def.ReapInterval
	}
	if c == nil {
		c = clock.Real{}
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	if norm == nil {
		norm = NewNormalizer(c, log)
	}
	return &Hub{
		store:    store,
		norm:     norm,
		clock:    c,
		log:      log,
		cfg:      cfg,
		sessions: make(map[string]*session),
		stopCh:   make(chan struct{}),
	}
}

// Acquire returns the user's service, creating and subscribing it when
// needed. The returned release func marks the caller done with it; a
// session is never reaped while held. After Close it returns a closed,
// signed-out service that never subscribes.
func (h *Hub) Acquire(user *model.User) (*Service, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		svc := NewService(h.store, h.norm, h.clock, h.log)
		svc.Close()
		return svc, func() {}
	}

	sess, ok := h.sessions[user.ID]
	if !ok {
		sess = &session{svc: NewService(h.store, h.norm, h.clock, h.log)}
		h.sessions[user.ID] = sess
		h.log.Info("session opened", "user_id", user.ID)
	}
	// A no-op while healthy; re-subscribes after a fault.
	sess.svc.SetUser(user)
	sess.lastUsed = h.clock.Now()
	sess.inUse++

	var once sync.Once
	return sess.svc, func() {
		once.Do(func() {
			h.mu.Lock()
			sess.inUse--
			sess.lastUsed = h.clock.Now()
			h.mu.Unlock()
		})
	}
}

// Release closes the user's session, for example on sign-out.
func (h *Hub) Release(userID string) {
	h.mu.Lock()
	sess, ok := h.sessions[userID]
	delete(h.sessions, userID)
	h.mu.Unlock()

	if ok {
		sess.svc.SetUser(nil)
		sess.svc.Close()
		h.log.Info("session released", "user_id", userID)
	}
}

// Start begins the idle reaper.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running || h.closed {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.ticker = time.NewTicker(h.cfg.ReapInterval)
	h.mu.Unlock()

	h.log.Info("session reaper started", "interval", h.cfg.ReapInterval, "idle_timeout", h.cfg.IdleTimeout)
	go h.run()
}

func (h *Hub) run() {
	for {
		select {
		case <-h.ticker.C:
			h.ReapIdle()
		case <-h.stopCh:
			return
		}
	}
}

// ReapIdle closes sessions unused for longer than the idle timeout and
// returns how many were closed.
func (h *Hub) ReapIdle() int {
	cutoff := h.clock.Now().Add(-h.cfg.IdleTimeout)

	h.mu.Lock()
	var idle []*session
	for id, sess := range h.sessions {
		if sess.inUse == 0 && sess.lastUsed.Before(cutoff) {
			idle = append(idle, sess)
			delete(h.sessions, id)
		}
	}
	h.mu.Unlock()

	for _, sess := range idle {
		sess.svc.Close()
	}
	if len(idle) > 0 {
		h.log.Info("idle sessions closed", "count", len(idle))
	}
	return len(idle)
}

// HubStats describes the open sessions.
type HubStats struct {
	Active  int      `json:"active"`
	InUse   int      `json:"in_use"`
	UserIDs []string `json:"user_ids"`
}

// Stats reports the open sessions.
func (h *Hub) Stats() HubStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := HubStats{Active: len(h.sessions), UserIDs: make([]string, 0, len(h.sessions))}
	for id, sess := range h.sessions {
		if sess.inUse > 0 {
			st.InUse++
		}
		st.UserIDs = append(st.UserIDs, id)
	}
	sort.Strings(st.UserIDs)
	return st
}

// Close stops the reaper and closes every session.
func (h *Hub) Close() {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		if h.ticker != nil {
			h.ticker.Stop()
		}
		close(h.stopCh)
		sessions := h.sessions
		h.sessions = make(map[string]*session)
		h.mu.Unlock()

		for _, sess := range sessions {
			sess.svc.Close()
		}
		h.log.Info("session hub closed", "sessions", len(sessions))
	})
}
