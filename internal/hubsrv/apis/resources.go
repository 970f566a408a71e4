package apis

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/makerhub/makerhub/internal/common/httpx"
	"github.com/makerhub/makerhub/internal/hubsrv/store"
)

type resourceRequest struct {
	Name        string     `json:"name" validate:"required"`
	Description string     `json:"description"`
	GroupID     *uuid.UUID `json:"groupId"`
}

type groupRequest struct {
	Name string `json:"name" validate:"required"`
}

func (h *Handler) createResource(r *http.Request) (*httpx.Response, error) {
	actor, err := actorFromRequest(r)
	if err != nil {
		return nil, err
	}
	if !actor.CanManageResources {
		return nil, httpx.ErrUnAuthorized("manage permission required")
	}
	var req resourceRequest
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}
	resource := &store.Resource{
		Name:        req.Name,
		Description: req.Description,
		GroupID:     req.GroupID,
	}
	if err := h.store.CreateResource(r.Context(), resource); err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   "/resources/" + resource.ID.String(),
		Response:   resource,
	}, nil
}

func (h *Handler) getResource(r *http.Request) (*httpx.Response, error) {
	resourceID, err := uuidParam(r, "resourceId")
	if err != nil {
		return nil, err
	}
	resource, aerr := h.store.GetResource(r.Context(), resourceID)
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: resource}, nil
}

func (h *Handler) updateResource(r *http.Request) (*httpx.Response, error) {
	actor, err := actorFromRequest(r)
	if err != nil {
		return nil, err
	}
	if !actor.CanManageResources {
		return nil, httpx.ErrUnAuthorized("manage permission required")
	}
	resourceID, err := uuidParam(r, "resourceId")
	if err != nil {
		return nil, err
	}
	var req resourceRequest
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}
	resource := &store.Resource{
		ID:          resourceID,
		Name:        req.Name,
		Description: req.Description,
		GroupID:     req.GroupID,
	}
	if err := h.store.UpdateResource(r.Context(), resource); err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: resource}, nil
}

func (h *Handler) deleteResource(r *http.Request) (*httpx.Response, error) {
	actor, err := actorFromRequest(r)
	if err != nil {
		return nil, err
	}
	if !actor.CanManageResources {
		return nil, httpx.ErrUnAuthorized("manage permission required")
	}
	resourceID, err := uuidParam(r, "resourceId")
	if err != nil {
		return nil, err
	}
	if err := h.store.DeleteResource(r.Context(), resourceID); err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusNoContent}, nil
}

func (h *Handler) listResources(r *http.Request) (*httpx.Response, error) {
	page, limit := pageParams(r, 50)
	resources, err := h.store.ListResources(r.Context(), page, limit)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: resources}, nil
}

func (h *Handler) createGroup(r *http.Request) (*httpx.Response, error) {
	actor, err := actorFromRequest(r)
	if err != nil {
		return nil, err
	}
	if !actor.CanManageResources {
		return nil, httpx.ErrUnAuthorized("manage permission required")
	}
	var req groupRequest
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(err.Error())
	}
	group := &store.ResourceGroup{Name: req.Name}
	if err := h.store.CreateGroup(r.Context(), group); err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   "/groups/" + group.ID.String(),
		Response:   group,
	}, nil
}

func (h *Handler) getGroup(r *http.Request) (*httpx.Response, error) {
	groupID, err := uuidParam(r, "groupId")
	if err != nil {
		return nil, err
	}
	group, aerr := h.store.GetGroup(r.Context(), groupID)
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: group}, nil
}

func (h *Handler) deleteGroup(r *http.Request) (*httpx.Response, error) {
	actor, err := actorFromRequest(r)
	if err != nil {
		return nil, err
	}
	if !actor.CanManageResources {
		return nil, httpx.ErrUnAuthorized("manage permission required")
	}
	groupID, err := uuidParam(r, "groupId")
	if err != nil {
		return nil, err
	}
	if err := h.store.DeleteGroup(r.Context(), groupID); err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusNoContent}, nil
}

func (h *Handler) listGroups(r *http.Request) (*httpx.Response, error) {
	groups, err := h.store.ListGroups(r.Context())
	if err != nil {
		return nil, err
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: groups}, nil
}

func pageParams(r *http.Request, defaultLimit int) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = defaultLimit
	}
	return page, limit
}
