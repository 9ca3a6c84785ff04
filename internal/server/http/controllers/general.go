package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/restatedev/pubsub/internal/runtime"
	topicsvc "github.com/restatedev/pubsub/internal/services/topics"
)

// GeneralController handles health and namespace endpoints.
type GeneralController struct {
	rt  *runtime.Runtime
	svc *topicsvc.Service
}

// NewGeneralController creates a new general controller.
func NewGeneralController(rt *runtime.Runtime, svc *topicsvc.Service) *GeneralController {
	return &GeneralController{rt: rt, svc: svc}
}

// RegisterRoutes registers health and namespace routes with the given mux.
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/healthz", c.handleHealth)
	mux.HandleFunc("/v1/namespaces", c.handleListNamespaces)
	mux.HandleFunc("/v1/ns/create", c.handleNSCreate)
}

func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_serving"})
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (c *GeneralController) handleListNamespaces(w http.ResponseWriter, r *http.Request) {
	list, err := c.svc.ListNamespaces(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list namespaces")
		return
	}
	writeJSON(w, map[string]any{"namespaces": list})
}

type nsCreateReq struct {
	Namespace string `json:"namespace"`
}

func (c *GeneralController) handleNSCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req nsCreateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := c.svc.EnsureNamespace(r.Context(), req.Namespace); err != nil {
		writeServiceError(w, err)
		return
	}
	writeCreated(w)
}
