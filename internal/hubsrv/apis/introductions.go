package apis

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/makerhub/makerhub/internal/common/httpx"
	"github.com/makerhub/makerhub/internal/hubsrv/store"
)

type grantIntroductionRequest struct {
	ReceiverUserID string `json:"receiverUserId" validate:"required,uuid"`
}

type revokeRequest struct {
	Comment string `json:"comment"`
}

func (h *Handler) addResourceIntroducer(r *http.Request) (*httpx.Response, error) {
	return h.addIntroducer(r, "resourceId", store.ScopeResource)
}

func (h *Handler) addGroupIntroducer(r *http.Request) (*httpx.Response, error) {
	return h.addIntroducer(r, "groupId", store.ScopeGroup)
}

func (h *Handler) addIntroducer(r *http.Request, param string, kind store.ScopeKind) (*httpx.Response, error) {
	actor, err := actorFromRequest(r)
	if err != nil {
		return nil, err
	}
	scopeID, err := uuidParam(r, param)
	if err != nil {
		return nil, err
	}
	userID, err := uuidParam(r, "userId")
	if err != nil {
		return nil, err
	}
	intr, aerr := h.registry.AddIntroducer(r.Context(), store.Scope{Kind: kind, ID: scopeID}, actor, userID)
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{StatusCode: http.StatusCreated, Response: intr}, nil
}

func (h *Handler) removeResourceIntroducer(r *http.Request) (*httpx.Response, error) {
	return h.removeIntroducer(r, "resourceId", store.ScopeResource)
}

func (h *Handler) removeGroupIntroducer(r *http.Request) (*httpx.Response, error) {
	return h.removeIntroducer(r, "groupId", store.ScopeGroup)
}

func (h *Handler) removeIntroducer(r *http.Request, param string, kind store.ScopeKind) (*httpx.Response, error) {
	actor, err := actorFromRequest(r)
	if err != nil {
		return nil, err
	}
	scopeID, err := uuidParam(r, param)
	if err != nil {
		return nil, err
	}
	userID, err := uuidParam(r, "userId")
	if err != nil {
		return nil, err
	}
	if aerr := h.registry.RemoveIntroducer(r.Context(), store.Scope{Kind: kind, ID: scopeID}, actor, userID); aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{StatusCode: http.StatusNoContent}, nil
}

func (h *Handler) listResourceIntroducers(r *http.Request) (*httpx.Response, error) {
	return h.listIntroducers(r, "resourceId", store.ScopeResource)
}

func (h *Handler) listGroupIntroducers(r *http.Request) (*httpx.Response, error) {
	return h.listIntroducers(r, "groupId", store.ScopeGroup)
}

func (h *Handler) listIntroducers(r *http.Request, param string, kind store.ScopeKind) (*httpx.Response, error) {
	scopeID, err := uuidParam(r, param)
	if err != nil {
		return nil, err
	}
	introducers, aerr := h.registry.ListIntroducers(r.Context(), store.Scope{Kind: kind, ID: scopeID})
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: introducers}, nil
}

func (h *Handler) grantResourceIntroduction(r *http.Request) (*httpx.Response, error) {
	actor, err := actorFromRequest(r)
	if err != nil {
		return nil, err
	}
	resourceID, err := uuidParam(r, "resourceId")
	if err != nil {
		return nil, err
	}
	receiverID, err := receiverFromBody(r)
	if err != nil {
		return nil, err
	}
	intro, aerr := h.registry.GrantIntroduction(r.Context(), resourceID, actor, receiverID)
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{StatusCode: http.StatusCreated, Response: intro}, nil
}

func (h *Handler) grantGroupIntroduction(r *http.Request) (*httpx.Response, error) {
	actor, err := actorFromRequest(r)
	if err != nil {
		return nil, err
	}
	groupID, err := uuidParam(r, "groupId")
	if err != nil {
		return nil, err
	}
	receiverID, err := receiverFromBody(r)
	if err != nil {
		return nil, err
	}
	intro, aerr := h.registry.GrantGroupIntroduction(r.Context(), groupID, actor, receiverID)
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{StatusCode: http.StatusCreated, Response: intro}, nil
}

func (h *Handler) listResourceIntroductions(r *http.Request) (*httpx.Response, error) {
	return h.listIntroductions(r, "resourceId", store.ScopeResource)
}

func (h *Handler) listGroupIntroductions(r *http.Request) (*httpx.Response, error) {
	return h.listIntroductions(r, "groupId", store.ScopeGroup)
}

func (h *Handler) listIntroductions(r *http.Request, param string, kind store.ScopeKind) (*httpx.Response, error) {
	scopeID, err := uuidParam(r, param)
	if err != nil {
		return nil, err
	}
	intros, aerr := h.registry.ListIntroductions(r.Context(), store.Scope{Kind: kind, ID: scopeID})
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: intros}, nil
}

func (h *Handler) revokeIntroduction(r *http.Request) (*httpx.Response, error) {
	return h.appendIntroductionAction(r, true)
}

func (h *Handler) unrevokeIntroduction(r *http.Request) (*httpx.Response, error) {
	return h.appendIntroductionAction(r, false)
}

func (h *Handler) appendIntroductionAction(r *http.Request, revoke bool) (*httpx.Response, error) {
	actor, err := actorFromRequest(r)
	if err != nil {
		return nil, err
	}
	introductionID, err := uuidParam(r, "introductionId")
	if err != nil {
		return nil, err
	}
	var req revokeRequest
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	if revoke {
		if aerr := h.registry.Revoke(r.Context(), introductionID, actor, req.Comment); aerr != nil {
			return nil, aerr
		}
	} else {
		if aerr := h.registry.Unrevoke(r.Context(), introductionID, actor, req.Comment); aerr != nil {
			return nil, aerr
		}
	}
	return &httpx.Response{StatusCode: http.StatusNoContent}, nil
}

func (h *Handler) introductionHistory(r *http.Request) (*httpx.Response, error) {
	introductionID, err := uuidParam(r, "introductionId")
	if err != nil {
		return nil, err
	}
	items, aerr := h.registry.History(r.Context(), introductionID)
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{StatusCode: http.StatusOK, Response: items}, nil
}

func receiverFromBody(r *http.Request) (uuid.UUID, error) {
	var req grantIntroductionRequest
	if err := httpx.GetRequestData(r, &req); err != nil {
		return uuid.Nil, err
	}
	if err := validate.Struct(req); err != nil {
		return uuid.Nil, httpx.ErrInvalidRequest(err.Error())
	}
	id, err := uuid.Parse(req.ReceiverUserID)
	if err != nil {
		return uuid.Nil, httpx.ErrInvalidRequest("invalid receiverUserId")
	}
	return id, nil
}
