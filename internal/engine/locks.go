package engine

import (
	"sync"

	"github.com/google/uuid"
)

// projectLocks hands out one mutex per project id, serializing the
// check-then-insert sequence of dependency creation within a project.
// Entries are never removed.
type projectLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newProjectLocks() *projectLocks {
	return &projectLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// lock acquires the mutex for a project and returns its unlock func.
func (p *projectLocks) lock(projectID uuid.UUID) func() {
	p.mu.Lock()
	m, ok := p.locks[projectID]
	if !ok {
		m = &sync.Mutex{}
		p.locks[projectID] = m
	}
	p.mu.Unlock()

	m.Lock()
	return m.Unlock
}
