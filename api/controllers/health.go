package controllers

import (
	"context"
	"net/http"

	"github.com/paperhouse/warehouse-backend/api/responses"
	"github.com/paperhouse/warehouse-backend/pkg/config"
	pkgerrors "github.com/paperhouse/warehouse-backend/pkg/errors"
	"github.com/paperhouse/warehouse-backend/pkg/logger"
)

const envHeader = "X-Warehouse-Env"

type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness of the API's backing stores.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		checks := map[string]string{}
		for name, dep := range deps {
			if dep == nil {
				checks[name] = "skipped"
				continue
			}
			if err := dep.Ping(r.Context()); err != nil {
				checks[name] = "down"
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable").WithDetails(checks))
				return
			}
			checks[name] = "up"
		}
		checks["status"] = "ready"
		responses.WriteSuccess(w, checks)
	}
}
