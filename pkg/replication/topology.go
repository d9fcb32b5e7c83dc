package replication

import (
	"context"
	"time"

	"github.com/vectrix-io/vectrixdb/pkg/health"
)

// topologyRefreshInterval matches spec.md §5's "periodic timers:
// snapshot/admin, topology refresh" — a background timer independent
// of the commit thread.
const topologyRefreshInterval = 10 * time.Second

// StartTopologyRefresh launches a background timer that TCP-probes
// every configured peer and logs reachability, using pkg/health's
// generic checker rather than hand-rolled dialing. It runs until ctx is
// canceled.
func (c *Core) StartTopologyRefresh(ctx context.Context) {
	ticker := time.NewTicker(topologyRefreshInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.refreshTopology(ctx)
			}
		}
	}()
}

func (c *Core) refreshTopology(ctx context.Context) {
	peers, err := c.ListPeers()
	if err != nil {
		return
	}
	for _, p := range peers {
		if p.NodeID == c.nodeID {
			continue
		}
		checker := health.NewTCPChecker(p.Endpoint)
		result := checker.Check(ctx)
		if !result.Healthy {
			c.logger.Warn().Str("peer", p.NodeID).Str("reason", result.Message).Msg("peer unreachable")
		}
	}
}
