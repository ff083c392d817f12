// Package session keeps open form controllers in memory, keyed by an opaque
// id handed to the client.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"facility-form-backend/internal/form"
	"facility-form-backend/internal/logger"
	"facility-form-backend/internal/metrics"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("form session not found")

// Registry holds form sessions. Sessions expire after ttl without access.
type Registry struct {
	forms *cache.Cache
	dir   form.Directory
	ttl   time.Duration
	log   *zap.Logger
}

// NewRegistry creates a registry whose controllers load agents from dir.
func NewRegistry(dir form.Directory, ttl time.Duration, log *zap.Logger) *Registry {
	log = logger.OrNop(log)
	c := cache.New(ttl, ttl/2)
	c.OnEvicted(func(id string, v any) {
		if ctrl, ok := v.(*form.Controller); ok {
			ctrl.Close()
		}
		metrics.FormsActive.Dec()
		log.Debug("form session closed", zap.String("session_id", id))
	})
	return &Registry{forms: c, dir: dir, ttl: ttl, log: log}
}

// Open starts a new form. The controller outlives ctx; its directory load is
// stopped when the session is closed or expires.
func (r *Registry) Open(ctx context.Context) (string, *form.Controller) {
	id := uuid.NewString()
	ctrl := form.New(context.WithoutCancel(ctx), r.dir, r.log.With(zap.String("session_id", id)))
	r.forms.Set(id, ctrl, r.ttl)

	metrics.FormsOpened.Inc()
	metrics.FormsActive.Inc()
	r.log.Debug("form session opened", zap.String("session_id", id))
	return id, ctrl
}

// Get returns the controller for id and extends its lifetime. A session
// that expires or is closed while Get runs is reported as not found rather
// than stored again.
func (r *Registry) Get(id string) (*form.Controller, error) {
	v, found := r.forms.Get(id)
	if !found {
		return nil, ErrNotFound
	}
	// Replace fails unless the entry is still present and unexpired.
	if err := r.forms.Replace(id, v, r.ttl); err != nil {
		return nil, ErrNotFound
	}
	return v.(*form.Controller), nil
}

// Close discards a session.
func (r *Registry) Close(id string) error {
	if _, found := r.forms.Get(id); !found {
		return ErrNotFound
	}
	r.forms.Delete(id)
	return nil
}

// Len reports how many sessions are open, including expired ones not yet
// swept.
func (r *Registry) Len() int {
	return r.forms.ItemCount()
}
