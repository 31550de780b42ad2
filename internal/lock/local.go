package lock

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// LocalLock 进程内闸门
type LocalLock struct {
	sem    *semaphore.Weighted
	slots  int64
	closed atomic.Bool
	once   sync.Once
}

// NewLocalLock 创建容量为 slots 的进程内闸门，slots < 1 时按 1 处理
func NewLocalLock(slots int) *LocalLock {
	if slots < 1 {
		slots = 1
	}
	return &LocalLock{
		sem:   semaphore.NewWeighted(int64(slots)),
		slots: int64(slots),
	}
}

// Acquire 实现 Gate
func (l *LocalLock) Acquire(ctx context.Context) (func(), error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			l.sem.Release(1)
		}
	}, nil
}

// Slots 实现 Gate
func (l *LocalLock) Slots() int { return int(l.slots) }

// Mode 实现 Gate
func (l *LocalLock) Mode() string { return ModeLocal }

// Close 实现 Gate；已持有的槽位仍可正常释放
func (l *LocalLock) Close() error {
	l.once.Do(func() { l.closed.Store(true) })
	return nil
}
