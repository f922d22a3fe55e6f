package controllers

import (
	"net/http"

	"github.com/rzbill/tailview/internal/runtime"
)

// GeneralController serves process-level endpoints that do not touch the
// viewer session.
type GeneralController struct {
	rt *runtime.Runtime
}

func NewGeneralController(rt *runtime.Runtime) *GeneralController {
	return &GeneralController{rt: rt}
}

func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/healthz", c.health)
	mux.HandleFunc("/v1/stats", c.stats)
}

type healthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Error   string `json:"error,omitempty"`
}

// health answers 200 while the store serves reads and 503 otherwise.
func (c *GeneralController) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Backend: c.rt.Config().Store.Backend}
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		resp.Status, resp.Error = "not_serving", err.Error()
		respond(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, resp)
}

type statsResponse struct {
	Backend string                  `json:"backend"`
	Path    string                  `json:"path,omitempty"`
	Count   uint64                  `json:"count"`
	Store   runtime.MetricsSnapshot `json:"store"`
}

func (c *GeneralController) stats(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	cfg := c.rt.Config()
	n, err := c.rt.Store().Count(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, statsResponse{Backend: cfg.Store.Backend, Path: cfg.StorePath(), Count: n, Store: c.rt.Metrics()})
}
