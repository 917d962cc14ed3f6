// Package lock сериализует изменения в пределах одного проекта.
package lock

import (
	"context"
	"sync"
)

// Locker захватывает именованную блокировку. unlock освобождает ее и
// безопасен для повторного вызова.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// ProjectKey возвращает ключ блокировки проекта.
func ProjectKey(projectID string) string {
	return "project:" + projectID
}

type entry struct {
	ch   chan struct{}
	refs int
}

// MemoryLocker - блокировки внутри одного процесса.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*entry)}
}

// Lock ждет освобождения ключа или отмены ctx.
func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, e, true) })
	}, nil
}

func (l *MemoryLocker) release(key string, e *entry, held bool) {
	if held {
		<-e.ch
	}
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}
