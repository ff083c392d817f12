// Package directory serves the list of agents known to the ledger and
// resolves typed reporter names or keys against it.
package directory

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"facility-form-backend/internal/ledger"
)

// Agent is an identity that can be authorized as a reporter.
type Agent = ledger.Agent

// Source fetches the full agent list.
type Source interface {
	FetchAgents(ctx context.Context) ([]Agent, error)
}

// Identity exposes the current user's public key.
type Identity interface {
	PublicKey() string
}

const agentsKey = "agents"

// Service caches the agent directory so concurrent form sessions share one
// fetch per TTL window.
type Service struct {
	source Source
	self   Identity
	cache  *cache.Cache
	ttl    time.Duration
	log    *zap.Logger

	// fetchMu collapses concurrent misses into a single upstream request.
	fetchMu sync.Mutex
}

// NewService creates a directory service.
func NewService(source Source, self Identity, ttl time.Duration, log *zap.Logger) *Service {
	return &Service{
		source: source,
		self:   self,
		cache:  cache.New(ttl, 2*ttl),
		ttl:    ttl,
		log:    log,
	}
}

// SelfKey returns the current user's public key.
func (s *Service) SelfKey() string {
	return s.self.PublicKey()
}

// Agents returns every known agent, including the current user.
func (s *Service) Agents(ctx context.Context) ([]Agent, error) {
	if cached, ok := s.cache.Get(agentsKey); ok {
		return clone(cached.([]Agent)), nil
	}

	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	if cached, ok := s.cache.Get(agentsKey); ok {
		return clone(cached.([]Agent)), nil
	}

	agents, err := s.source.FetchAgents(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Debug("agent directory refreshed", zap.Int("agents", len(agents)))
	s.cache.Set(agentsKey, agents, s.ttl)
	return clone(agents), nil
}

// Invalidate drops the cached directory.
func (s *Service) Invalidate() {
	s.cache.Delete(agentsKey)
}

// Filter returns the agents whose key is not selfKey.
func Filter(agents []Agent, selfKey string) []Agent {
	out := make([]Agent, 0, len(agents))
	for _, a := range agents {
		if a.Key != selfKey {
			out = append(out, a)
		}
	}
	return out
}

// Resolve finds the first agent whose name or key equals value exactly.
// Matching is case-sensitive and never partial. An empty value matches
// nothing.
func Resolve(agents []Agent, value string) (Agent, bool) {
	if value == "" {
		return Agent{}, false
	}
	for _, a := range agents {
		if a.Name == value || a.Key == value {
			return a, true
		}
	}
	return Agent{}, false
}

func clone(agents []Agent) []Agent {
	out := make([]Agent, len(agents))
	copy(out, agents)
	return out
}
