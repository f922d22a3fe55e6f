package controllers

import (
	"net/http"

	"github.com/rzbill/tailview/internal/runtime"
	"github.com/rzbill/tailview/internal/session"
	logpkg "github.com/rzbill/tailview/pkg/log"
)

// routeRegistrar is implemented by every controller.
type routeRegistrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// ControllerRegistry groups the controllers mounted on one mux.
type ControllerRegistry struct {
	controllers []routeRegistrar
}

func NewControllerRegistry(rt *runtime.Runtime, sess *session.Session, logger logpkg.Logger) *ControllerRegistry {
	return &ControllerRegistry{controllers: []routeRegistrar{
		NewGeneralController(rt),
		NewViewerController(sess, logger),
	}}
}

// RegisterAllRoutes mounts every controller on mux.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	for _, c := range r.controllers {
		c.RegisterRoutes(mux)
	}
}
