package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/auricjewels/auric-backend/api/responses"
	"github.com/auricjewels/auric-backend/pkg/config"
	"github.com/auricjewels/auric-backend/pkg/db"
	pkgerrors "github.com/auricjewels/auric-backend/pkg/errors"
	"github.com/auricjewels/auric-backend/pkg/logger"
	pkgredis "github.com/auricjewels/auric-backend/pkg/redis"
)

const envHeader = "X-Auric-Env"

type pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness only when the stateful dependencies answer a
// ping. Nil pingers are skipped so dev bootstraps without the full stack.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{}
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = "down"
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, "readiness check failed").WithDetails(checks))
				return
			}
			checks[name] = "up"
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}

// ReadinessDeps assembles the named ping set for HealthReady. Nil clients
// are left out instead of becoming typed-nil interface values.
func ReadinessDeps(dbClient *db.Client, redisClient *pkgredis.Client) map[string]pinger {
	deps := map[string]pinger{}
	if dbClient != nil {
		deps["database"] = dbClient
	}
	if redisClient != nil {
		deps["redis"] = redisClient
	}
	return deps
}
