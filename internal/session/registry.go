package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"idphoto/internal/infra"
)

// Registry owns every live session. Sessions that are Running are never
// swept.
type Registry struct {
	recolorer Recolorer
	releaser  Releaser
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(recolorer Recolorer, releaser Releaser) *Registry {
	return &Registry{
		recolorer: recolorer,
		releaser:  releaser,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

func (r *Registry) Create() *Session {
	s := New(uuid.NewString(), r.recolorer, r.releaser)
	s.now = r.now
	s.createdAt = r.now()
	s.updatedAt = s.createdAt
	s.seenAt = s.createdAt
	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
	return s
}

// Get looks a session up and touches it, so sessions that are only being
// read stay alive.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		s.Touch()
	}
	return s, ok
}

// Delete removes a session and releases its previews.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep deletes sessions neither changed nor looked up for longer than maxIdle and returns how
// many were removed.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		updated, running := s.idleSince()
		if running || updated.After(cutoff) {
			continue
		}
		expired = append(expired, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	return len(expired)
}

// RunJanitor sweeps on every tick until ctx is done.
func (r *Registry) RunJanitor(ctx context.Context, interval, maxIdle time.Duration, logger *infra.Logger) {
	if interval <= 0 || maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(maxIdle); n > 0 && logger != nil {
				logger.Info().Int("removed", n).Int("remaining", r.Len()).Msg("session: swept idle sessions")
			}
		}
	}
}
