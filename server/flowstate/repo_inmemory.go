package flowstate

import (
	"errors"
	"sync"
	"time"

	apperrors "github.com/jrsteele09/go-token-handoff/internal/errors"
)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu    sync.RWMutex
	flows map[string]*MagicLinkFlow
}

var _ Repo = (*InMemoryRepo)(nil)

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		flows: make(map[string]*MagicLinkFlow),
	}
}

// Upsert stores or replaces a flow
func (r *InMemoryRepo) Upsert(flowID string, flow *MagicLinkFlow) error {
	if flowID == "" {
		return errors.New("flow id cannot be empty")
	}
	if flow == nil {
		return errors.New("flow cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *flow
	r.flows[flowID] = &stored
	return nil
}

func (r *InMemoryRepo) Get(flowID string) (*MagicLinkFlow, error) {
	if flowID == "" {
		return nil, apperrors.ErrFlowNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	flow, exists := r.flows[flowID]
	if !exists {
		return nil, apperrors.ErrFlowNotFound
	}

	out := *flow
	return &out, nil
}

func (r *InMemoryRepo) Delete(flowID string) error {
	if flowID == "" {
		return errors.New("flow id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.flows, flowID)
	return nil
}

// DeleteExpired drops every flow created before cutoff and reports how many went
func (r *InMemoryRepo) DeleteExpired(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, flow := range r.flows {
		if flow.CreatedAt.Before(cutoff) {
			delete(r.flows, id)
			removed++
		}
	}
	return removed
}
