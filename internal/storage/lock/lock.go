// Package lock serializes read-modify-write cycles on collection files.
package lock

import (
	"context"

	"github.com/im7mortal/kmutex"
)

// Locker acquires an exclusive lock for a collection. The returned release
// function must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, collection string) (release func(), err error)
}

// Local serializes writers within one process.
type Local struct {
	km *kmutex.Kmutex
}

// NewLocal constructs an in-process keyed locker.
func NewLocal() *Local {
	return &Local{km: kmutex.New()}
}

// Lock blocks until the collection lock is held.
func (l *Local) Lock(ctx context.Context, collection string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.km.Lock(collection)
	return func() { l.km.Unlock(collection) }, nil
}
