package ratelimiting

import (
	"context"
	"slices"
	"sync"
	"time"
)

// RequestLimiter gates outbound operations against an upstream quota
type RequestLimiter interface {
	Limit(ctx context.Context, maxOperationTime time.Duration, operation func(ctx context.Context)) bool
}

// windowLimitRequestLimiter lets at most limit operations finish within any sliding window
type windowLimitRequestLimiter struct {
	window    time.Duration
	nowFunc   func() time.Time
	afterFunc func(time.Duration) <-chan time.Time

	slots chan struct{}

	mutex sync.Mutex
	// Completion times of the last limit operations, oldest first
	finished []time.Time
}

func NewWindowLimitRequestLimiter(
	limit int,
	window time.Duration,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
) *windowLimitRequestLimiter {
	slots := make(chan struct{}, limit)
	finished := make([]time.Time, limit)
	longAgo := nowFunc().Add(-window)
	for i := range limit {
		slots <- struct{}{}
		finished[i] = longAgo
	}

	return &windowLimitRequestLimiter{
		window:    window,
		nowFunc:   nowFunc,
		afterFunc: afterFunc,
		slots:     slots,
		finished:  finished,
	}
}

// Limit runs operation once the window has room for it.
// Returns false without running operation if ctx ends first, or if its deadline
// leaves less than the required wait plus maxOperationTime.
func (l *windowLimitRequestLimiter) Limit(ctx context.Context, maxOperationTime time.Duration, operation func(ctx context.Context)) bool {
	select {
	case <-l.slots:
		defer func() {
			l.slots <- struct{}{}
		}()
	case <-ctx.Done():
		return false
	}

	oldest, wait, ok := l.claimOldest(ctx, maxOperationTime)
	if !ok {
		return false
	}

	if wait > 0 {
		select {
		case <-ctx.Done():
			l.record(oldest)
			return false
		case <-l.afterFunc(wait):
		}
	}

	operation(ctx)

	l.record(l.nowFunc())
	return true
}

func (l *windowLimitRequestLimiter) claimOldest(ctx context.Context, maxOperationTime time.Duration) (time.Time, time.Duration, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	oldest := l.finished[0]
	wait := l.window - l.nowFunc().Sub(oldest)

	if deadline, ok := ctx.Deadline(); ok {
		if max(wait, 0)+maxOperationTime > deadline.Sub(l.nowFunc()) {
			return time.Time{}, 0, false
		}
	}

	l.finished = l.finished[1:]
	return oldest, wait, true
}

func (l *windowLimitRequestLimiter) record(finishedAt time.Time) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	i, _ := slices.BinarySearchFunc(l.finished, finishedAt, func(a, b time.Time) int {
		return a.Compare(b)
	})
	l.finished = slices.Insert(l.finished, i, finishedAt)
}
