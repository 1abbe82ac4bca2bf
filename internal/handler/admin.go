package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"pantrypal-api/internal/pantry"
	"pantrypal-api/pkg/response"
)

// StoreStats reports item store statistics.
type StoreStats interface {
	Stats(ctx context.Context) (map[string]interface{}, error)
}

// UserCounter counts registered accounts.
type UserCounter interface {
	CountUsers(ctx context.Context) (int64, error)
}

// SessionStats reports open pantry sessions.
type SessionStats interface {
	Stats() pantry.HubStats
}

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	store     StoreStats
	users     UserCounter
	sessions  SessionStats
	dbType    string // item store type: sqlite, postgres, mongodb
	cacheType string
	startTime time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(store StoreStats, users UserCounter, sessions SessionStats, dbType, cacheType string) *AdminHandler {
	return &AdminHandler{
		store:     store,
		users:     users,
		sessions:  sessions,
		dbType:    dbType,
		cacheType: cacheType,
		startTime: time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.dbType
	stats["cache_type"] = h.cacheType

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
		"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
		"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
		"heap_alloc_mb":  float64(memStats.HeapAlloc) / 1024 / 1024,
		"heap_inuse_mb":  float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":         memStats.NumGC,
		"goroutines":     runtime.NumGoroutine(),
	}

	stats["sessions"] = h.sessions.Stats()

	if count, err := h.users.CountUsers(ctx); err == nil {
		stats["users"] = map[string]interface{}{"total": count, "status": "connected"}
	} else {
		stats["users"] = map[string]interface{}{"status": "error", "error": err.Error()}
	}

	if storeStats, err := h.store.Stats(ctx); err == nil {
		stats["item_store"] = storeStats
	} else {
		stats["item_store"] = map[string]interface{}{"status": "error", "error": err.Error()}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"num_cpu":    runtime.NumCPU(),
		"gomaxprocs": runtime.GOMAXPROCS(0),
	}

	response.OK(w, stats)
}

// VerifyLogin handles POST /api/v1/admin/login. The login key middleware
// has already checked the key by the time this runs.
func (h *AdminHandler) VerifyLogin(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]bool{"valid": true})
}
