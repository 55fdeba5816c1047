package session

import (
	"context"
	"sync"

	"budget/internal/core"
)

// MemoryPersister keeps the session for the lifetime of the process only.
type MemoryPersister struct {
	mu      sync.Mutex
	session core.Session
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

func (p *MemoryPersister) Load(context.Context) (core.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session.Clone(), nil
}

func (p *MemoryPersister) Save(_ context.Context, s core.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = s.Clone()
	return nil
}

func (p *MemoryPersister) Clear(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = core.Session{}
	return nil
}
