package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/crewsync/api/responses"
	"github.com/angelmondragon/crewsync/internal/connectivity"
	"github.com/angelmondragon/crewsync/pkg/config"
	pkgerrors "github.com/angelmondragon/crewsync/pkg/errors"
	"github.com/angelmondragon/crewsync/pkg/logger"
)

const readyTimeout = 2 * time.Second

// Pinger reports whether a dependency is usable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StateSource exposes the connectivity snapshot.
type StateSource interface {
	State() connectivity.State
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Crewsync-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady fails only when local storage is unusable. Being offline is a
// normal state for this agent and is reported, not failed.
func HealthReady(cfg *config.Config, logg *logger.Logger, store Pinger, conn StateSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Crewsync-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		if store != nil {
			if err := store.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "store ping failed"))
				return
			}
		}
		body := map[string]any{"status": "ready", "store": "ok"}
		if conn != nil {
			body["connectivity"] = conn.State().State
		}
		responses.WriteSuccess(w, body)
	}
}
