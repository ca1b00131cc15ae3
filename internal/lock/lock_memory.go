package lock

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"hmdamart/pkg/platform/sentinel"
)

// InMemoryLocker holds keys for the lifetime of this process.
type InMemoryLocker struct {
	mu   sync.Mutex
	held map[string]uuid.UUID
}

func NewInMemory() *InMemoryLocker {
	return &InMemoryLocker{held: make(map[string]uuid.UUID)}
}

func (l *InMemoryLocker) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, fmt.Errorf("lock %q held: %w", key, sentinel.ErrConflict)
	}
	token := uuid.New()
	l.held[key] = token

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.held[key] == token {
				delete(l.held, key)
			}
		})
		return nil
	}, nil
}

// Held reports whether key is currently locked.
func (l *InMemoryLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}
