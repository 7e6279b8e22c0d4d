// Package lock выдаёт эксклюзивные блокировки по ключу заказа.
package lock

import (
	"context"
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
)

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

// Keyed выдаёт блокировки внутри одного процесса. Записи удаляются, когда ключ никому не нужен.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

var _ domain.Locker = (*Keyed)(nil)

// NewKeyed создаёт in-process locker.
func NewKeyed() *Keyed {
	return &Keyed{locks: make(map[string]*keyedEntry)}
}

// Lock ждёт освобождения ключа или отмены ctx.
func (k *Keyed) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e)
		return nil, fmt.Errorf("%w: %w: %v", domain.ErrTransient, domain.ErrLockNotAcquired, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			k.release(key, e)
		})
	}, nil
}

// Len возвращает число ключей, по которым есть владельцы или ожидающие.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func (k *Keyed) release(key string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}
