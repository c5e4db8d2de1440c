package session

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"idphoto/internal/recolor"
)

type limited struct {
	next Recolorer
	sem  *semaphore.Weighted
}

// Limit caps how many Recolor calls run at once across all sessions. Callers
// over the cap wait for a slot or for their context to end. n <= 0 returns
// next unchanged.
func Limit(next Recolorer, n int64) Recolorer {
	if n <= 0 {
		return next
	}
	return &limited{next: next, sem: semaphore.NewWeighted(n)}
}

func (l *limited) Recolor(ctx context.Context, source, template string) recolor.Outcome {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return recolor.Failed(recolor.KindTransport, fmt.Sprintf("generation was not started: %v", err))
	}
	defer l.sem.Release(1)
	return l.next.Recolor(ctx, source, template)
}
