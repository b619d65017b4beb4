package program

import (
	"context"
	"sync"

	"github.com/casehub/backend/internal/domain/program"
	"github.com/casehub/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// memoryProgramRepository is a version-checked in-memory program.Repository
type memoryProgramRepository struct {
	mu       sync.Mutex
	programs map[uuid.UUID]program.Program
	updates  int
	failNext error // returned once by the next Update
}

func newMemoryProgramRepository() *memoryProgramRepository {
	return &memoryProgramRepository{programs: make(map[uuid.UUID]program.Program)}
}

func (r *memoryProgramRepository) FindByID(_ context.Context, id uuid.UUID) (*program.Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.programs[id]
	if !ok {
		return nil, shared.NewNotFoundError("program", id.String())
	}
	p.ClearDomainEvents()
	return &p, nil
}

func (r *memoryProgramRepository) ExistsByCode(_ context.Context, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.programs {
		if p.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryProgramRepository) Create(_ context.Context, p *program.Program) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *p
	stored.ClearDomainEvents()
	r.programs[p.ID] = stored
	return nil
}

func (r *memoryProgramRepository) Update(_ context.Context, p *program.Program) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failNext; err != nil {
		r.failNext = nil
		return err
	}
	stored, ok := r.programs[p.ID]
	if !ok {
		return shared.NewNotFoundError("program", p.ID.String())
	}
	if stored.Version != p.Version-1 {
		return shared.ErrConcurrentModification
	}
	next := *p
	next.ClearDomainEvents()
	r.programs[p.ID] = next
	r.updates++
	return nil
}

func (r *memoryProgramRepository) get(id uuid.UUID) program.Program {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.programs[id]
}

func (r *memoryProgramRepository) updateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}

var _ program.Repository = (*memoryProgramRepository)(nil)
