package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/theOGognf/finagg/internal/errors"
	"github.com/theOGognf/finagg/internal/ratelimit"
	"github.com/theOGognf/finagg/internal/store"
)

// GuardSource exposes guard state; *api.Guards satisfies it.
type GuardSource interface {
	Snapshots() []ratelimit.GuardSnapshot
	Limits(name string) ([]ratelimit.Spec, error)
}

// GuardReport pairs a guard's configured limits with its live state. State
// is nil until the guard has been used.
type GuardReport struct {
	Name   string                   `json:"name"`
	Limits []ratelimit.Spec         `json:"limits"`
	State  *ratelimit.GuardSnapshot `json:"state,omitempty"`
}

// RateLimitHandlers serves /v1/ratelimits.
type RateLimitHandlers struct {
	Guards   GuardSource
	Families []string
}

// List reports every family.
func (h *RateLimitHandlers) List(w http.ResponseWriter, r *http.Request) {
	reports := make([]GuardReport, 0, len(h.Families))
	for _, name := range h.Families {
		report, err := h.report(name)
		if err != nil {
			apperrors.RespondWithError(w, r, err)
			return
		}
		reports = append(reports, report)
	}
	writeJSON(w, http.StatusOK, map[string]any{"guards": reports})
}

// Get reports the family named in the URL.
func (h *RateLimitHandlers) Get(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(chi.URLParam(r, "guard"))
	known := false
	for _, family := range h.Families {
		if family == name {
			known = true
			break
		}
	}
	if !known {
		apperrors.RespondWithError(w, r, apperrors.NewNotFoundError("unknown guard: "+name))
		return
	}

	report, err := h.report(name)
	if err != nil {
		apperrors.RespondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *RateLimitHandlers) report(name string) (GuardReport, error) {
	limits, err := h.Guards.Limits(name)
	if err != nil {
		return GuardReport{}, err
	}
	report := GuardReport{Name: name, Limits: limits}
	for _, snapshot := range h.Guards.Snapshots() {
		if snapshot.Name == name {
			snapshot := snapshot
			report.State = &snapshot
			break
		}
	}
	return report, nil
}

// CacheBackend is the part of the HTTP cache the server exposes.
type CacheBackend interface {
	Prune(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (store.CacheStats, error)
}

// CacheHandlers serves /v1/cache. Cache may be nil when caching is off.
type CacheHandlers struct {
	Cache CacheBackend
}

// Stats reports cache statistics.
func (h *CacheHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	if h.Cache == nil {
		apperrors.RespondWithError(w, r, apperrors.NewServiceUnavailableError("HTTP cache is disabled"))
		return
	}
	stats, err := h.Cache.Stats(r.Context())
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "cache stats failed"))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Prune deletes expired entries.
func (h *CacheHandlers) Prune(w http.ResponseWriter, r *http.Request) {
	if h.Cache == nil {
		apperrors.RespondWithError(w, r, apperrors.NewServiceUnavailableError("HTTP cache is disabled"))
		return
	}
	removed, err := h.Cache.Prune(r.Context())
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapDatabaseError(r.Context(), err, "cache prune failed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}
