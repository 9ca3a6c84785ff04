package controllers

import (
	"net/http"

	"github.com/restatedev/pubsub/internal/runtime"
	topicsvc "github.com/restatedev/pubsub/internal/services/topics"
)

// ControllerRegistry manages all HTTP controllers.
type ControllerRegistry struct {
	general *GeneralController
	topics  *TopicsController
}

// NewControllerRegistry initializes all controllers with the provided
// runtime and service.
func NewControllerRegistry(rt *runtime.Runtime, svc *topicsvc.Service) *ControllerRegistry {
	return &ControllerRegistry{
		general: NewGeneralController(rt, svc),
		topics:  NewTopicsController(rt, svc),
	}
}

// RegisterAllRoutes registers all controller routes with the given mux.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.topics.RegisterRoutes(mux)
}
