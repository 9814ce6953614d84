package cooldown

import (
	"time"

	"DipSentinel/internal/model"
)

// Registry remembers when each alert kind last fired. The zero value is ready
// to use and never suppresses.
// Not safe for concurrent use; the owning loop serializes access.
type Registry struct {
	Cooldown time.Duration
	Clock    func() time.Time

	last map[model.AlertKind]time.Time
}

// NewRegistry creates a registry that lets a kind fire again after cooldown.
func NewRegistry(cooldown time.Duration) *Registry {
	return &Registry{
		Cooldown: cooldown,
		Clock:    time.Now,
		last:     make(map[model.AlertKind]time.Time),
	}
}

func (r *Registry) now() time.Time {
	if r.Clock == nil {
		return time.Now()
	}
	return r.Clock()
}

// Allow reports whether kind may fire now.
func (r *Registry) Allow(kind model.AlertKind) bool {
	at, ok := r.last[kind]
	if !ok {
		return true
	}
	return r.now().Sub(at) >= r.Cooldown
}

// Record stamps kind as fired now and returns the stamp.
func (r *Registry) Record(kind model.AlertKind) time.Time {
	at := r.now()
	if r.last == nil {
		r.last = make(map[model.AlertKind]time.Time)
	}
	r.last[kind] = at
	return at
}

// TryFire records kind and returns true if it was allowed.
func (r *Registry) TryFire(kind model.AlertKind) (time.Time, bool) {
	if !r.Allow(kind) {
		return time.Time{}, false
	}
	return r.Record(kind), true
}

// LastFired returns when kind last fired.
func (r *Registry) LastFired(kind model.AlertKind) (time.Time, bool) {
	at, ok := r.last[kind]
	return at, ok
}
