package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const probeTimeout = 3 * time.Second

// HealthTarget is one external dependency shown in GET /health. A nil
// Check means the integration was never configured.
type HealthTarget struct {
	Name  string
	Check func(ctx context.Context) error
}

type healthResponse struct {
	Status   string          `json:"status"`
	Services map[string]bool `json:"services"`
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Seed every entry up front so the probe goroutines are the only
		// concurrent writers, all under mu.
		services := make(map[string]bool, len(deps.Targets))
		for _, target := range deps.Targets {
			services[target.Name] = false
		}
		var mu sync.Mutex

		g, ctx := errgroup.WithContext(r.Context())
		for _, target := range deps.Targets {
			if target.Check == nil {
				continue
			}
			target := target
			g.Go(func() error {
				probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
				defer cancel()

				err := target.Check(probeCtx)
				if err != nil {
					log.Debug().Err(err).Str("service", target.Name).Msg("health probe failed")
				}
				mu.Lock()
				services[target.Name] = err == nil
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			httpError(w, http.StatusInternalServerError, "health probes failed: %v", err)
			return
		}

		status := "ok"
		for _, up := range services {
			if !up {
				status = "degraded"
				break
			}
		}

		writeJSON(w, http.StatusOK, healthResponse{Status: status, Services: services})
	}
}
