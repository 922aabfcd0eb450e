package hold

import (
	"context"
	"log"
	"time"
)

// RunSweeper expires stale holds on a fixed interval until the context
// is cancelled. Holds are process-local, so this runs as a goroutine
// inside the api-server rather than as a separate worker binary.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("shutdown signal received, stopping hold sweeper")
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				log.Printf("hold sweep removed %d expired reservations", n)
			}
		}
	}
}
