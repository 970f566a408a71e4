// Package apis is the HTTP surface of the service. Handlers parse and
// validate requests, call into the domain services and map apperrors status
// codes onto the wire; they hold no business logic of their own.
package apis

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/makerhub/makerhub/internal/common/httpx"
	"github.com/makerhub/makerhub/internal/hubsrv/introductions"
	"github.com/makerhub/makerhub/internal/hubsrv/notify"
	"github.com/makerhub/makerhub/internal/hubsrv/store"
	"github.com/makerhub/makerhub/internal/hubsrv/usage"
)

var validate = validator.New()

type Handler struct {
	store    store.Store
	tracker  *usage.Tracker
	registry *introductions.Registry
	mqtt     *notify.MQTTDispatcher
	webhooks *notify.WebhookDispatcher
}

func NewHandler(s store.Store, tracker *usage.Tracker, registry *introductions.Registry, mqtt *notify.MQTTDispatcher, webhooks *notify.WebhookDispatcher) *Handler {
	return &Handler{
		store:    s,
		tracker:  tracker,
		registry: registry,
		mqtt:     mqtt,
		webhooks: webhooks,
	}
}

func (h *Handler) routes() []httpx.ResponseHandlerParam {
	return []httpx.ResponseHandlerParam{
		// resources and groups
		{Method: http.MethodPost, Path: "/resources", Handler: h.createResource},
		{Method: http.MethodGet, Path: "/resources", Handler: h.listResources},
		{Method: http.MethodGet, Path: "/resources/{resourceId}", Handler: h.getResource},
		{Method: http.MethodPut, Path: "/resources/{resourceId}", Handler: h.updateResource},
		{Method: http.MethodDelete, Path: "/resources/{resourceId}", Handler: h.deleteResource},
		{Method: http.MethodPost, Path: "/groups", Handler: h.createGroup},
		{Method: http.MethodGet, Path: "/groups", Handler: h.listGroups},
		{Method: http.MethodGet, Path: "/groups/{groupId}", Handler: h.getGroup},
		{Method: http.MethodDelete, Path: "/groups/{groupId}", Handler: h.deleteGroup},

		// usage sessions
		{Method: http.MethodPost, Path: "/resources/{resourceId}/usage/start", Handler: h.startSession},
		{Method: http.MethodPost, Path: "/resources/{resourceId}/usage/end", Handler: h.endSession},
		{Method: http.MethodGet, Path: "/resources/{resourceId}/usage/active", Handler: h.getActiveSession},
		{Method: http.MethodGet, Path: "/resources/{resourceId}/usage/history", Handler: h.getUsageHistory},

		// introducers
		{Method: http.MethodPost, Path: "/resources/{resourceId}/introducers/{userId}", Handler: h.addResourceIntroducer},
		{Method: http.MethodDelete, Path: "/resources/{resourceId}/introducers/{userId}", Handler: h.removeResourceIntroducer},
		{Method: http.MethodGet, Path: "/resources/{resourceId}/introducers", Handler: h.listResourceIntroducers},
		{Method: http.MethodPost, Path: "/groups/{groupId}/introducers/{userId}", Handler: h.addGroupIntroducer},
		{Method: http.MethodDelete, Path: "/groups/{groupId}/introducers/{userId}", Handler: h.removeGroupIntroducer},
		{Method: http.MethodGet, Path: "/groups/{groupId}/introducers", Handler: h.listGroupIntroducers},

		// introductions
		{Method: http.MethodPost, Path: "/resources/{resourceId}/introductions", Handler: h.grantResourceIntroduction},
		{Method: http.MethodGet, Path: "/resources/{resourceId}/introductions", Handler: h.listResourceIntroductions},
		{Method: http.MethodPost, Path: "/groups/{groupId}/introductions", Handler: h.grantGroupIntroduction},
		{Method: http.MethodGet, Path: "/groups/{groupId}/introductions", Handler: h.listGroupIntroductions},
		{Method: http.MethodPost, Path: "/introductions/{introductionId}/revoke", Handler: h.revokeIntroduction},
		{Method: http.MethodPost, Path: "/introductions/{introductionId}/unrevoke", Handler: h.unrevokeIntroduction},
		{Method: http.MethodGet, Path: "/introductions/{introductionId}/history", Handler: h.introductionHistory},

		// notification configs
		{Method: http.MethodPut, Path: "/resources/{resourceId}/integrations/mqtt", Handler: h.upsertMQTTConfig},
		{Method: http.MethodGet, Path: "/resources/{resourceId}/integrations/mqtt", Handler: h.getMQTTConfig},
		{Method: http.MethodDelete, Path: "/resources/{resourceId}/integrations/mqtt", Handler: h.deleteMQTTConfig},
		{Method: http.MethodPost, Path: "/resources/{resourceId}/integrations/mqtt/test", Handler: h.testMQTTConfig},
		{Method: http.MethodPost, Path: "/resources/{resourceId}/integrations/webhooks", Handler: h.createWebhookConfig},
		{Method: http.MethodGet, Path: "/resources/{resourceId}/integrations/webhooks", Handler: h.listWebhookConfigs},
		{Method: http.MethodPut, Path: "/resources/{resourceId}/integrations/webhooks/{webhookId}", Handler: h.updateWebhookConfig},
		{Method: http.MethodDelete, Path: "/resources/{resourceId}/integrations/webhooks/{webhookId}", Handler: h.deleteWebhookConfig},
		{Method: http.MethodPost, Path: "/resources/{resourceId}/integrations/webhooks/{webhookId}/test", Handler: h.testWebhookConfig},
	}
}

// Router mounts all API routes behind the actor-context middleware.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(ActorContext)
	for _, route := range h.routes() {
		r.Method(route.Method, route.Path, httpx.WrapHttpRsp(route.Handler))
	}
	return r
}
