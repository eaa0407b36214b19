package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/dvillareal/automarket-backend/api/responses"
	"github.com/dvillareal/automarket-backend/pkg/config"
	pkgerrors "github.com/dvillareal/automarket-backend/pkg/errors"
	"github.com/dvillareal/automarket-backend/pkg/logger"
)

const readinessTimeout = 5 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-AutoMarket-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when every backing dependency answers a ping.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-AutoMarket-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}

// ReadinessDeps assembles the dependency map for HealthReady.
func ReadinessDeps(dbP, redisP, pubsubP pinger) map[string]pinger {
	return map[string]pinger{
		"database": dbP,
		"redis":    redisP,
		"pubsub":   pubsubP,
	}
}
