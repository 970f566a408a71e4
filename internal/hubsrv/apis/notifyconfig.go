package apis

import (
	"net/http"

	"github.com/makerhub/makerhub/internal/common/httpx"
	"github.com/makerhub/makerhub/internal/hubsrv/store"
)

type mqttConfigRequest struct {
	Host              string `json:"host" validate:"required"`
	Port              int    `json:"port" validate:"gte=1,lte=65535"`
	Username          string `json:"username"`
	Password          string `json:"password"`
	ClientID          string `json:"clientId"`
	TopicTemplate     string `json:"topicTemplate" validate:"required"`
	InUseTemplate     string `json:"inUseTemplate" validate:"required"`
	NotInUseTemplate  string `json:"notInUseTemplate" validate:"required"`
	RetryEnabled      bool   `json:"retryEnabled"`
	MaxRetries        int    `json:"maxRetries" validate:"gte=0"`
	RetryDelaySeconds int    `json:"retryDelaySeconds" validate:"gte=0"`
}

type webhookConfigRequest struct {
	Name              string `json:"name"`
	URL               string `json:"url" validate:"required,url"`
	Method            string `json:"method" validate:"omitempty,oneof=GET POST PUT PATCH DELETE"`
	Headers           string `json:"headers"`
	InUseTemplate     string `json:"inUseTemplate" validate:"required"`
	NotInUseTemplate  string `json:"notInUseTemplate" validate:"required"`
	Active            bool   `json:"active"`
	RetryEnabled      bool   `json:"retryEnabled"`
	MaxRetries        int    `json:"maxRetries" validate:"gte=0"`
	RetryDelaySeconds int    `json:"retryDelaySeconds" validate:"gte=0"`
	SigningSecret     string `json:"signingSecret"`
	SignatureHeader   string `json:"signatureHeader"`
}

func (h *Handler) requireManager(r *http.Request) error {
	actor, err := actorFromRequest(r)
	if err != nil {
		return err
	}
	if !actor.CanManageResources {
		return httpx.ErrUnAuthorized("manage permission required")
	}
	return nil
}

func (h *Handler) upsertMQTTConfig(r *http.Request) (*httpx.Response, error) {
	if err := h.requireManager(r); err != nil {
		return nil, err
	}
	resourceID, err := uuidParam(r, "resourceId")
	if err != nil {
		return nil, err
	}
	var req mqttConfigRequest
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}
	cfg := &store.MQTTConfig{
		ResourceID:        resourceID,
		Host:              req.Host,
		Port:              req.Port,
		Username:          req.Username,
		Password:          req.Password,
		ClientID:          req.ClientID,
		TopicTemplate:     req.TopicTemplate,
		InUseTemplate:     req.InUseTemplate,
		NotInUseTemplate:  req.NotInUseTemplate,
		RetryEnabled:      req.RetryEnabled,
		MaxRetries:        req.MaxRetries,
		RetryDelaySeconds: req.RetryDelaySeconds,
	}
	if err := h.store.UpsertMQTTConfig(r.Context(), cfg); err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: cfg}, nil
}

func (h *Handler) getMQTTConfig(r *http.Request) (*httpx.Response, error) {
	if err := h.requireManager(r); err != nil {
		return nil, err
	}
	resourceID, err := uuidParam(r, "resourceId")
	if err != nil {
		return nil, err
	}
	cfg, aerr := h.store.GetMQTTConfig(r.Context(), resourceID)
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: cfg}, nil
}

func (h *Handler) deleteMQTTConfig(r *http.Request) (*httpx.Response, error) {
	if err := h.requireManager(r); err != nil {
		return nil, err
	}
	resourceID, err := uuidParam(r, "resourceId")
	if err != nil {
		return nil, err
	}
	if err := h.store.DeleteMQTTConfig(r.Context(), resourceID); err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusNoContent}, nil
}

type connectionTestRsp struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *Handler) testMQTTConfig(r *http.Request) (*httpx.Response, error) {
	if err := h.requireManager(r); err != nil {
		return nil, err
	}
	resourceID, err := uuidParam(r, "resourceId")
	if err != nil {
		return nil, err
	}
	cfg, aerr := h.store.GetMQTTConfig(r.Context(), resourceID)
	if aerr != nil {
		return nil, aerr
	}
	rsp := &connectionTestRsp{Success: true, Message: "connection established"}
	if err := h.mqtt.TestConnection(r.Context(), cfg); err != nil {
		rsp.Success = false
		rsp.Message = err.Error()
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: rsp}, nil
}

func (h *Handler) createWebhookConfig(r *http.Request) (*httpx.Response, error) {
	if err := h.requireManager(r); err != nil {
		return nil, err
	}
	resourceID, err := uuidParam(r, "resourceId")
	if err != nil {
		return nil, err
	}
	_, cfg, verr := h.webhookConfigFromBody(r)
	if verr != nil {
		return nil, verr
	}
	cfg.ResourceID = resourceID
	if err := h.store.CreateWebhookConfig(r.Context(), cfg); err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusCreated, Response: cfg}, nil
}

func (h *Handler) listWebhookConfigs(r *http.Request) (*httpx.Response, error) {
	if err := h.requireManager(r); err != nil {
		return nil, err
	}
	resourceID, err := uuidParam(r, "resourceId")
	if err != nil {
		return nil, err
	}
	configs, aerr := h.store.ListWebhookConfigs(r.Context(), resourceID)
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: configs}, nil
}

func (h *Handler) updateWebhookConfig(r *http.Request) (*httpx.Response, error) {
	if err := h.requireManager(r); err != nil {
		return nil, err
	}
	resourceID, err := uuidParam(r, "resourceId")
	if err != nil {
		return nil, err
	}
	webhookID, err := uuidParam(r, "webhookId")
	if err != nil {
		return nil, err
	}
	_, cfg, verr := h.webhookConfigFromBody(r)
	if verr != nil {
		return nil, verr
	}
	cfg.ID = webhookID
	cfg.ResourceID = resourceID
	if err := h.store.UpdateWebhookConfig(r.Context(), cfg); err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: cfg}, nil
}

func (h *Handler) deleteWebhookConfig(r *http.Request) (*httpx.Response, error) {
	if err := h.requireManager(r); err != nil {
		return nil, err
	}
	webhookID, err := uuidParam(r, "webhookId")
	if err != nil {
		return nil, err
	}
	if err := h.store.DeleteWebhookConfig(r.Context(), webhookID); err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusNoContent}, nil
}

func (h *Handler) testWebhookConfig(r *http.Request) (*httpx.Response, error) {
	if err := h.requireManager(r); err != nil {
		return nil, err
	}
	webhookID, err := uuidParam(r, "webhookId")
	if err != nil {
		return nil, err
	}
	cfg, aerr := h.store.GetWebhookConfig(r.Context(), webhookID)
	if aerr != nil {
		return nil, aerr
	}
	rsp := &connectionTestRsp{Success: true, Message: "webhook delivered"}
	if err := h.webhooks.TestWebhook(r.Context(), cfg); err != nil {
		rsp.Success = false
		rsp.Message = err.Error()
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: rsp}, nil
}

func (h *Handler) webhookConfigFromBody(r *http.Request) (*webhookConfigRequest, *store.WebhookConfig, error) {
	var req webhookConfigRequest
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, nil, httpx.ErrInvalidRequest(err.Error())
	}
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	return &req, &store.WebhookConfig{
		Name:              req.Name,
		URL:               req.URL,
		Method:            method,
		Headers:           req.Headers,
		InUseTemplate:     req.InUseTemplate,
		NotInUseTemplate:  req.NotInUseTemplate,
		Active:            req.Active,
		RetryEnabled:      req.RetryEnabled,
		MaxRetries:        req.MaxRetries,
		RetryDelaySeconds: req.RetryDelaySeconds,
		SigningSecret:     req.SigningSecret,
		SignatureHeader:   req.SignatureHeader,
	}, nil
}
