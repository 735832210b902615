package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository keeps state in process memory. Nothing survives a restart.
type MemoryRepository struct {
	mu        sync.RWMutex
	selection string
	attempts  []*AttemptModel
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Selections() SelectionRepository { return memorySelections{r} }
func (r *MemoryRepository) Attempts() AttemptRepository     { return memoryAttempts{r} }
func (r *MemoryRepository) Close() error                    { return nil }
func (r *MemoryRepository) Ping(ctx context.Context) error  { return nil }

type memorySelections struct{ r *MemoryRepository }

func (s memorySelections) Load(ctx context.Context) (string, error) {
	s.r.mu.RLock()
	defer s.r.mu.RUnlock()
	if s.r.selection == "" {
		return "", ErrNotFound
	}
	return s.r.selection, nil
}

func (s memorySelections) Save(ctx context.Context, key string) error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.selection = key
	return nil
}

type memoryAttempts struct{ r *MemoryRepository }

func (a memoryAttempts) Save(ctx context.Context, attempt *AttemptModel) error {
	a.r.mu.Lock()
	defer a.r.mu.Unlock()

	cp := *attempt
	for i, existing := range a.r.attempts {
		if existing.ID == attempt.ID {
			a.r.attempts[i] = &cp
			return nil
		}
	}
	a.r.attempts = append(a.r.attempts, &cp)
	return nil
}

func (a memoryAttempts) FindBySignature(ctx context.Context, signature string) (*AttemptModel, error) {
	a.r.mu.RLock()
	defer a.r.mu.RUnlock()

	for _, attempt := range a.r.attempts {
		if signature != "" && attempt.Signature == signature {
			cp := *attempt
			return &cp, nil
		}
	}
	return nil, nil
}

func (a memoryAttempts) FindRecent(ctx context.Context, wallet string, limit int) ([]*AttemptModel, error) {
	a.r.mu.RLock()
	defer a.r.mu.RUnlock()
	return recentAttempts(a.r.attempts, wallet, limit), nil
}

// recentAttempts filters by wallet and returns copies, newest first.
func recentAttempts(attempts []*AttemptModel, wallet string, limit int) []*AttemptModel {
	out := make([]*AttemptModel, 0, len(attempts))
	for _, attempt := range attempts {
		if wallet != "" && attempt.Wallet != wallet {
			continue
		}
		cp := *attempt
		out = append(out, &cp)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
