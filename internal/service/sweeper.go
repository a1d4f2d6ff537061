package service

import (
	"context"
	"time"

	"github.com/iliyamo/bidmaster/internal/utils"
)

// Expirer is the part of AuctionService the sweeper drives.
type Expirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

// RunSweeper calls ExpireDue every interval until ctx is cancelled.  A
// non-positive interval disables the sweeper and returns immediately.
// Errors are logged and the loop keeps going.
func RunSweeper(ctx context.Context, e Expirer, interval time.Duration) {
	if interval <= 0 {
		utils.Info("expiry sweeper disabled", nil)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	utils.Info("expiry sweeper started", map[string]any{"interval": interval.String()})
	for {
		select {
		case <-ctx.Done():
			utils.Info("expiry sweeper stopped", nil)
			return
		case <-ticker.C:
			n, err := e.ExpireDue(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				utils.Error("expiry sweep failed", map[string]any{"error": err.Error(), "finished": n})
				continue
			}
			if n > 0 {
				utils.Info("expired auctions settled", map[string]any{"finished": n})
			}
		}
	}
}
