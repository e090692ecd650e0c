package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"tenant-provisioner/internal/config"
	"tenant-provisioner/internal/registry"
	"tenant-provisioner/internal/saga"
)

type API struct {
	Orchestrator *saga.Orchestrator
	Registry     *registry.Registry
	Cfg          *config.Config
	Log          *logrus.Logger
	Routers      *chi.Mux
}

func NewAPI(orch *saga.Orchestrator, reg *registry.Registry, cfg *config.Config, log *logrus.Logger) *API {
	return &API{
		Orchestrator: orch,
		Registry:     reg,
		Cfg:          cfg,
		Log:          log,
		Routers:      chi.NewRouter(),
	}
}
