package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/polyswarm/go-polyswarmd/buildinfo"
	"github.com/polyswarm/go-polyswarmd/internal/chains"
)

const statusProbeTimeout = time.Second * 5

type chainStatus struct {
	Reachable bool   `json:"reachable"`
	Syncing   bool   `json:"syncing"`
	Block     uint64 `json:"block"`
}

// Status reports reachability of every backing service. Always 200; the
// payload carries per-service health.
func (c *Controller) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cls := context.WithTimeout(r.Context(), statusProbeTimeout)
	defer cls()

	result := map[string]interface{}{
		"community": c.community,
		"build":     buildinfo.GetSummary(),
	}
	if c.artifact != nil {
		result["artifact_services"] = map[string]interface{}{
			"artifact_service": map[string]interface{}{
				"reachable": c.artifact.Status(ctx) == nil,
			},
		}
	}
	result[chains.HomeName] = probeChain(ctx, c.set.Home)
	if c.set.Side != nil {
		result[chains.SideName] = probeChain(ctx, c.set.Side)
	}
	writeOK(w, result)
}

func probeChain(ctx context.Context, chain *chains.Chain) chainStatus {
	var status chainStatus
	block, err := chain.Client.BlockNumber(ctx)
	if err != nil {
		return status
	}
	status.Reachable = true
	status.Block = block
	progress, err := chain.Client.SyncProgress(ctx)
	if err == nil && progress != nil {
		status.Syncing = true
	}
	return status
}
